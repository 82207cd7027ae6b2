package analysis

import (
	"strings"

	"github.com/mohammed-shakir/urbansphere/internal/compose"
	"github.com/mohammed-shakir/urbansphere/internal/core/model"
)

// Search returns the records whose region name contains text, ignoring case.
// Empty text returns every record and reports false (nothing to highlight).
// The base collection is never modified.
func Search(c model.CompositeCollection, text string) (model.CompositeCollection, bool) {
	q := strings.ToLower(strings.TrimSpace(text))
	return compose.Filter(c, func(r model.FeatureRecord) bool {
		return strings.Contains(strings.ToLower(r.RegionName), q)
	}), q != ""
}
