// Package localsource folds local-file documentation sources into a single
// excerpt, the supplemented feature SPEC_FULL.md names from
// original_source/doc2mcp/config.py's LocalSource and its use in
// doc_search.py's local-source branch.
package localsource

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/arcturian/docsearch/internal/textutil"
)

// Read walks path matching any of patterns (default ["*.md", "*.txt"]) and
// concatenates matched file contents, truncating at maxLength characters.
// Returns an empty string if nothing matched or the path is unreadable —
// local-source folding must not fail the overall search.
func Read(path string, patterns []string, maxLength int) string {
	if len(patterns) == 0 {
		patterns = []string{"*.md", "*.txt"}
	}
	var matched []string
	seen := map[string]bool{}
	for _, pattern := range patterns {
		_ = filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
			if err != nil || d == nil || d.IsDir() {
				return nil
			}
			ok, _ := filepath.Match(pattern, d.Name())
			if ok && !seen[p] {
				seen[p] = true
				matched = append(matched, p)
			}
			return nil
		})
	}
	sort.Strings(matched)

	var b strings.Builder
	for _, p := range matched {
		data, err := os.ReadFile(p)
		if err != nil {
			continue
		}
		fmt.Fprintf(&b, "## %s\n\n%s\n\n", p, string(data))
		if maxLength > 0 && b.Len() >= maxLength {
			break
		}
	}
	return textutil.Truncate(b.String(), maxLength)
}
