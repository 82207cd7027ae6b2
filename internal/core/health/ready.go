package health

import (
	"encoding/json"
	"net/http"
)

func Liveness() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}
}

// Check reports whether one dependency is ready and a short detail.
type Check interface {
	Name() string
	Ready() (bool, string)
}

// CheckFunc adapts a function to Check.
type CheckFunc struct {
	N string
	F func() (bool, string)
}

func (c CheckFunc) Name() string          { return c.N }
func (c CheckFunc) Ready() (bool, string) { return c.F() }

// Readiness is 200 only when every check passes.
func Readiness(checks ...Check) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		type resp struct {
			Status string            `json:"status"`
			Checks map[string]string `json:"checks,omitempty"`
		}
		out := resp{Status: "ready", Checks: map[string]string{}}
		ready := true
		for _, c := range checks {
			ok, detail := c.Ready()
			if !ok {
				ready = false
			}
			if detail == "" {
				detail = "ok"
				if !ok {
					detail = "not ready"
				}
			}
			out.Checks[c.Name()] = detail
		}
		w.Header().Set("Content-Type", "application/json")
		if !ready {
			out.Status = "not_ready"
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(out)
	}
}
