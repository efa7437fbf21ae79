package docs

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hpungsan/agentos/internal/cache"
)

// Scaffold renders a new document titled after its file name, listing the
// changed files that called for it.
func Scaffold(doc string, triggers []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n## References\n\n", Title(doc))
	if len(triggers) == 0 {
		b.WriteString("_No changed files recorded._\n")
	}
	for _, t := range triggers {
		fmt.Fprintf(&b, "- `%s`\n", t)
	}
	return b.String()
}

// Title derives a heading from a document path: "docs/api-guide.md" becomes
// "api guide"; all-caps names such as CHANGELOG stay as they are.
func Title(doc string) string {
	name := strings.TrimSuffix(filepath.Base(doc), filepath.Ext(doc))
	return strings.NewReplacer("-", " ", "_", " ").Replace(name)
}

// createMissing writes a scaffold for every proposed or core document that
// does not exist. Existing files are never touched.
func (s *Scanner) createMissing(root string, rep *Report) error {
	for i := range rep.Proposals {
		p := &rep.Proposals[i]
		if p.Exists {
			continue
		}
		if err := writeScaffold(root, p.Doc, p.Triggers); err != nil {
			return err
		}
		p.Exists = true
		rep.Created = append(rep.Created, p.Doc)
	}

	if rep.Mode != ModeDeep {
		return nil
	}
	kept := rep.Findings[:0]
	for _, f := range rep.Findings {
		if f.Kind != FindingMissingCoreDoc {
			kept = append(kept, f)
			continue
		}
		if !fileExists(filepath.Join(root, filepath.FromSlash(f.Path))) {
			if err := writeScaffold(root, f.Path, nil); err != nil {
				return err
			}
			rep.Created = append(rep.Created, f.Path)
		}
	}
	rep.Findings = kept
	return nil
}

func writeScaffold(root, doc string, triggers []string) error {
	full := filepath.Join(root, filepath.FromSlash(doc))
	if _, err := os.Stat(full); err == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return fmt.Errorf("create %s: %w", doc, err)
	}
	if err := cache.WriteFileAtomic(full, []byte(Scaffold(doc, triggers)), 0644); err != nil {
		return fmt.Errorf("create %s: %w", doc, err)
	}
	return nil
}
