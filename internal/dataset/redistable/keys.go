package redistable

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"
)

const defaultNamespace = "urbansphere"

// TableKey is the Redis key of one table document. The readable part is
// sanitised; the hash suffix keeps tables whose names sanitise alike apart.
func TableKey(ns, table string) string {
	t := strings.TrimSpace(table)
	return fmt.Sprintf("%s:dataset:%s:t=%016x", nsOrDefault(ns), sanitize(t), xxhash.Sum64String(t))
}

// IndexKey is the hash listing every table of a namespace with its sequence.
func IndexKey(ns string) string {
	return nsOrDefault(ns) + ":dataset-index"
}

// WatermarkKey is the hash of table -> highest sequence ever applied. Unlike
// the index it keeps deleted tables, so a late put cannot resurrect them.
func WatermarkKey(ns string) string {
	return nsOrDefault(ns) + ":dataset-seq"
}

func nsOrDefault(ns string) string {
	ns = sanitize(strings.TrimSpace(ns))
	if ns == "" {
		return defaultNamespace
	}
	return ns
}

func sanitize(s string) string {
	if s == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(s))
	var prev rune
	for _, r := range s {
		var out rune
		switch {
		case isASCIIWhitespace(r):
			out = '_'
		case isAlphaNum(r) || r == '_' || r == '-' || r == '.':
			out = r
		default:
			out = '-'
		}
		if (out == '_' || out == '-') && out == prev {
			continue
		}
		b.WriteRune(out)
		prev = out
	}
	return b.String()
}

func isASCIIWhitespace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\v' || r == '\f'
}

func isAlphaNum(r rune) bool {
	return (r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z') ||
		(r < 128 && unicode.IsDigit(r))
}
