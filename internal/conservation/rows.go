package conservation

import (
	"github.com/faunatrack/server/internal/importer"
)

// CoercePlanRow validates one normalized row. Text fields are checked
// first for presence and width, then the two dates, then the budgets. Start after end is not
// rejected here.
func CoercePlanRow(rec importer.Record) (Plan, *importer.RowError) {
	var plan Plan
	required := []struct {
		field string
		dst   *string
	}{
		{FieldSpecies, &plan.Species},
		{FieldScientificName, &plan.ScientificName},
		{FieldActivity, &plan.Activity},
		{FieldTasks, &plan.Tasks},
		{FieldResponsible, &plan.Responsible},
	}
	for _, r := range required {
		value, rowErr := importer.RequiredString(rec, r.field)
		if rowErr != nil {
			return Plan{}, rowErr
		}
		*r.dst = value
	}
	plan.SubActivity = importer.OptionalString(rec.Cell(FieldSubActivity))
	for _, fv := range plan.textFields() {
		if rowErr := importer.CheckLength(rec, fv.field, fv.value, MaxFieldLength[fv.field]); rowErr != nil {
			return Plan{}, rowErr
		}
	}

	start, okStart := importer.DateValue(rec.Cell(FieldStartDate))
	end, okEnd := importer.DateValue(rec.Cell(FieldEndDate))
	if !okStart || !okEnd {
		return Plan{}, importer.Rejectf(rec.Line, "invalid dates")
	}
	plan.StartDate, plan.EndDate = start, end

	for i, field := range BudgetFields {
		cell := rec.Cell(field)
		amount, ok := importer.AmountValue(cell)
		if !ok || amount < 0 {
			return Plan{}, importer.Rejectf(rec.Line, "invalid %s %q", field, cell.Raw())
		}
		plan.Budgets[i] = amount
	}

	return plan, nil
}
