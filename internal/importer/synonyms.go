package importer

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// SynonymTable maps spreadsheet header variants to canonical field names.
// It is read-only once built and safe for concurrent use.
type SynonymTable struct {
	exact  map[string]string
	folded map[string]string
}

// NewSynonymTable indexes the canonical names and their aliases. Every
// canonical name is an alias of itself.
func NewSynonymTable(canonical []string, aliases map[string]string) SynonymTable {
	t := SynonymTable{
		exact:  make(map[string]string, len(canonical)+len(aliases)),
		folded: make(map[string]string, len(canonical)+len(aliases)),
	}
	for _, name := range canonical {
		t.add(name, name)
	}
	for alias, name := range aliases {
		t.add(alias, name)
	}
	return t
}

func (t SynonymTable) add(alias, canonical string) {
	t.exact[strings.TrimSpace(alias)] = canonical
	if key := FoldHeader(alias); key != "" {
		if _, taken := t.folded[key]; !taken || alias == canonical {
			t.folded[key] = canonical
		}
	}
}

// Lookup resolves a header to its canonical field name.
func (t SynonymTable) Lookup(header string) (string, bool) {
	header = strings.TrimSpace(header)
	if name, ok := t.exact[header]; ok {
		return name, true
	}
	name, ok := t.folded[FoldHeader(header)]
	return name, ok
}

var stripMarks = runes.Remove(runes.In(unicode.Mn))

// FoldHeader reduces a header to a comparison key: accents removed, lower
// case, underscores and dashes read as spaces, whitespace collapsed.
func FoldHeader(header string) string {
	folded, _, err := transform.String(transform.Chain(norm.NFD, stripMarks, norm.NFC), header)
	if err != nil {
		folded = header
	}
	folded = strings.ToLower(folded)
	folded = strings.Map(func(r rune) rune {
		if r == '_' || r == '-' || unicode.IsSpace(r) {
			return ' '
		}
		return r
	}, folded)
	return strings.Join(strings.Fields(folded), " ")
}
