package conservation

import (
	"fmt"

	"github.com/faunatrack/server/internal/importer"
)

const dateLayout = importer.DateLayout

// Canonical plan fields, as stored and as accepted in JSON bodies.
const (
	FieldSpecies        = "espece"
	FieldScientificName = "nom_scientifique"
	FieldActivity       = "activite"
	FieldSubActivity    = "sous_activite"
	FieldTasks          = "taches"
	FieldResponsible    = "responsable"
	FieldStartDate      = "date_debut_taches"
	FieldEndDate        = "date_fin_taches"
)

// BudgetFields holds budget_annee_1 through budget_annee_5.
var BudgetFields = func() [BudgetYears]string {
	var fields [BudgetYears]string
	for i := range fields {
		fields[i] = fmt.Sprintf("budget_annee_%d", i+1)
	}
	return fields
}()

// RequiredFields must each have a column in an imported file.
var RequiredFields = []string{
	FieldSpecies,
	FieldScientificName,
	FieldActivity,
	FieldTasks,
	FieldResponsible,
	FieldStartDate,
	FieldEndDate,
}

// MaxFieldLength holds the column width of each bounded text field. Tasks
// are unbounded.
var MaxFieldLength = map[string]int{
	FieldSpecies:        200,
	FieldScientificName: 200,
	FieldActivity:       300,
	FieldSubActivity:    300,
	FieldResponsible:    200,
}

type fieldValue struct {
	field string
	value string
}

// textFields lists the plan's text fields in column order.
func (p Plan) textFields() []fieldValue {
	return []fieldValue{
		{FieldSpecies, p.Species},
		{FieldScientificName, p.ScientificName},
		{FieldActivity, p.Activity},
		{FieldSubActivity, p.SubActivity},
		{FieldTasks, p.Tasks},
		{FieldResponsible, p.Responsible},
	}
}

// TemplateHeaders are the display headers of the downloadable import
// template, in column order.
var TemplateHeaders = []string{
	"Espèce",
	"Nom scientifique",
	"Activité",
	"Sous-activité",
	"Tâches",
	"Responsable",
	"date debut taches",
	"date fin taches",
	"Budget Année 1",
	"Budget Année 2",
	"Budget Année 3",
	"Budget Année 4",
	"Budget Année 5",
}

var planSynonyms = func() importer.SynonymTable {
	canonical := append([]string{
		FieldSpecies, FieldScientificName, FieldActivity, FieldSubActivity,
		FieldTasks, FieldResponsible, FieldStartDate, FieldEndDate,
	}, BudgetFields[:]...)

	aliases := map[string]string{
		"Espèce":            FieldSpecies,
		"Species":           FieldSpecies,
		"Nom commun":        FieldSpecies,
		"Nom scientifique":  FieldScientificName,
		"Scientific name":   FieldScientificName,
		"Activité":          FieldActivity,
		"Activity":          FieldActivity,
		"Sous-activité":     FieldSubActivity,
		"Sub-activity":      FieldSubActivity,
		"Tâches":            FieldTasks,
		"Tâche":             FieldTasks,
		"Tasks":             FieldTasks,
		"Responsable":       FieldResponsible,
		"Responsible":       FieldResponsible,
		"date debut taches": FieldStartDate,
		"Date de début":     FieldStartDate,
		"Date début":        FieldStartDate,
		"Start date":        FieldStartDate,
		"date fin taches":   FieldEndDate,
		"Date de fin":       FieldEndDate,
		"Date fin":          FieldEndDate,
		"End date":          FieldEndDate,
	}
	for i, field := range BudgetFields {
		aliases[fmt.Sprintf("Budget Année %d", i+1)] = field
		aliases[fmt.Sprintf("Budget An %d", i+1)] = field
		aliases[fmt.Sprintf("Budget year %d", i+1)] = field
	}
	return importer.NewSynonymTable(canonical, aliases)
}()

// PlanNormalizer maps plan spreadsheet headers to canonical fields.
var PlanNormalizer = importer.Normalizer{Synonyms: planSynonyms, Required: RequiredFields}
