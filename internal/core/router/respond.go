package router

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/cespare/xxhash/v2"
)

type errorBody struct {
	Error string `json:"error"`
}

func etag(b []byte) string {
	return fmt.Sprintf(`"%016x"`, xxhash.Sum64(b))
}

// writeBody sends b with a content ETag and answers 304 when the client
// already holds it.
func writeBody(w http.ResponseWriter, r *http.Request, status int, contentType string, b []byte) {
	tag := etag(b)
	w.Header().Set("ETag", tag)
	w.Header().Set("Content-Type", contentType)
	if status == http.StatusOK && matchesETag(r.Header.Get("If-None-Match"), tag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.WriteHeader(status)
	if r.Method != http.MethodHead {
		_, _ = w.Write(b)
	}
}

func matchesETag(header, tag string) bool {
	for p := range strings.SplitSeq(header, ",") {
		p = strings.TrimSpace(p)
		if p == "*" || strings.TrimPrefix(p, "W/") == tag {
			return true
		}
	}
	return false
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "encode response: "+err.Error())
		return
	}
	writeBody(w, r, status, "application/json", b)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Error: msg})
}
