package species

import (
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/faunatrack/server/internal/importer"
)

const (
	FieldCommonName     = "common_name"
	FieldScientificName = "scientific_name"
	FieldDescription    = "description"
)

// Column widths of the species table.
const (
	MaxCommonNameLength     = 100
	MaxScientificNameLength = 150
)

type Species struct {
	ID             string    `json:"id"`
	CommonName     string    `json:"common_name"`
	ScientificName string    `json:"scientific_name"`
	Description    string    `json:"description"`
	CreatedBy      string    `json:"-"`
	CreatedAt      time.Time `json:"-"`
}

var speciesSynonyms = importer.NewSynonymTable(
	[]string{FieldCommonName, FieldScientificName, FieldDescription},
	map[string]string{
		"Nom commun":       FieldCommonName,
		"Nom vernaculaire": FieldCommonName,
		"Espèce":           FieldCommonName,
		"Common name":      FieldCommonName,
		"Nom scientifique": FieldScientificName,
		"Scientific name":  FieldScientificName,
		"Description":      FieldDescription,
		"Notes":            FieldDescription,
	},
)

var SpeciesNormalizer = importer.Normalizer{
	Synonyms: speciesSynonyms,
	Required: []string{FieldCommonName, FieldScientificName},
}

func CoerceSpeciesRow(rec importer.Record) (Species, *importer.RowError) {
	common, rowErr := importer.RequiredString(rec, FieldCommonName)
	if rowErr != nil {
		return Species{}, rowErr
	}
	scientific, rowErr := importer.RequiredString(rec, FieldScientificName)
	if rowErr != nil {
		return Species{}, rowErr
	}
	if rowErr := importer.CheckLength(rec, FieldCommonName, common, MaxCommonNameLength); rowErr != nil {
		return Species{}, rowErr
	}
	if rowErr := importer.CheckLength(rec, FieldScientificName, scientific, MaxScientificNameLength); rowErr != nil {
		return Species{}, rowErr
	}
	return Species{
		CommonName:     common,
		ScientificName: scientific,
		Description:    importer.OptionalString(rec.Cell(FieldDescription)),
	}, nil
}

// nameKey is the comparison key for duplicate scientific names. It is
// stored in scientific_name_key.
func nameKey(name string) string {
	return strings.ToLower(norm.NFC.String(strings.TrimSpace(name)))
}
