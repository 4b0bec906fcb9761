// Package dictionary loads the curated keyword role dictionary used for
// first-pass keyword classification.
package dictionary

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/findex-kr/findex/internal/domain"
)

// Entry is one dictionary record. Synonyms share the entry's role.
type Entry struct {
	Keyword  string   `yaml:"keyword"`
	Role     string   `yaml:"role"`
	Category string   `yaml:"category"`
	Synonyms []string `yaml:"synonyms"`
}

type file struct {
	Keywords []Entry `yaml:"keywords"`
}

// Dictionary resolves keywords to retrieval roles. Loaded once at startup
// and read-only afterwards, so no locking is needed.
type Dictionary struct {
	roles map[string]domain.KeywordRole
	size  int
}

// Load reads and indexes the dictionary file. Keywords and synonyms are
// matched case-insensitively.
func Load(path string) (*Dictionary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrDictionaryNotLoaded, err)
	}

	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", domain.ErrDictionaryNotLoaded, path, err)
	}

	d := &Dictionary{
		roles: make(map[string]domain.KeywordRole),
		size:  len(f.Keywords),
	}
	for _, e := range f.Keywords {
		role, err := parseRole(e.Role)
		if err != nil {
			return nil, fmt.Errorf("%w: keyword %q: %v", domain.ErrDictionaryNotLoaded, e.Keyword, err)
		}
		d.roles[normalize(e.Keyword)] = role
		for _, syn := range e.Synonyms {
			d.roles[normalize(syn)] = role
		}
	}
	return d, nil
}

// Lookup resolves a keyword to its role. The second return is false when the
// dictionary does not know the keyword.
func (d *Dictionary) Lookup(keyword string) (domain.KeywordRole, bool) {
	role, ok := d.roles[normalize(keyword)]
	return role, ok
}

// Size returns the number of dictionary entries (synonyms not counted).
func (d *Dictionary) Size() int {
	return d.size
}

func parseRole(s string) (domain.KeywordRole, error) {
	switch domain.KeywordRole(strings.ToLower(strings.TrimSpace(s))) {
	case domain.KeywordRoleContext:
		return domain.KeywordRoleContext, nil
	case domain.KeywordRoleTarget:
		return domain.KeywordRoleTarget, nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
