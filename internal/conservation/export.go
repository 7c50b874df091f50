package conservation

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"github.com/jszwec/csvutil"
	"github.com/xuri/excelize/v2"
)

// ExportFormat is a download format for templates and plan exports.
type ExportFormat string

const (
	ExportCSV  ExportFormat = "csv"
	ExportXLSX ExportFormat = "xlsx"
)

const (
	contentTypeCSV  = "text/csv; charset=utf-8"
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

func ParseExportFormat(raw string) (ExportFormat, error) {
	switch raw {
	case "", "csv":
		return ExportCSV, nil
	case "xlsx":
		return ExportXLSX, nil
	default:
		return "", fmt.Errorf("%w: unknown format %q", ErrInvalidInput, raw)
	}
}

func (f ExportFormat) ContentType() string {
	if f == ExportXLSX {
		return contentTypeXLSX
	}
	return contentTypeCSV
}

// templateRow is the import template: display headers and one example.
type templateRow struct {
	Species        string `csv:"Espèce"`
	ScientificName string `csv:"Nom scientifique"`
	Activity       string `csv:"Activité"`
	SubActivity    string `csv:"Sous-activité"`
	Tasks          string `csv:"Tâches"`
	Responsible    string `csv:"Responsable"`
	StartDate      string `csv:"date debut taches"`
	EndDate        string `csv:"date fin taches"`
	Budget1        string `csv:"Budget Année 1"`
	Budget2        string `csv:"Budget Année 2"`
	Budget3        string `csv:"Budget Année 3"`
	Budget4        string `csv:"Budget Année 4"`
	Budget5        string `csv:"Budget Année 5"`
}

var exampleTemplateRow = templateRow{
	Species:        "Lion d'Afrique",
	ScientificName: "Panthera leo",
	Activity:       "Suivi des populations",
	SubActivity:    "Comptage aérien",
	Tasks:          "Recensement annuel des groupes",
	Responsible:    "Dr. Martin",
	StartDate:      "2025-01-01",
	EndDate:        "2025-12-31",
	Budget1:        "5000000",
	Budget2:        "5500000",
	Budget3:        "6000000",
	Budget4:        "6500000",
	Budget5:        "7000000",
}

func (r templateRow) cells() []any {
	return []any{
		r.Species, r.ScientificName, r.Activity, r.SubActivity, r.Tasks, r.Responsible,
		r.StartDate, r.EndDate, r.Budget1, r.Budget2, r.Budget3, r.Budget4, r.Budget5,
	}
}

// exportRow is one exported plan, keyed by canonical field names so the
// file can be imported again.
type exportRow struct {
	ID             string `csv:"id"`
	Species        string `csv:"espece"`
	ScientificName string `csv:"nom_scientifique"`
	Activity       string `csv:"activite"`
	SubActivity    string `csv:"sous_activite"`
	Tasks          string `csv:"taches"`
	Responsible    string `csv:"responsable"`
	StartDate      string `csv:"date_debut_taches"`
	EndDate        string `csv:"date_fin_taches"`
	Budget1        string `csv:"budget_annee_1"`
	Budget2        string `csv:"budget_annee_2"`
	Budget3        string `csv:"budget_annee_3"`
	Budget4        string `csv:"budget_annee_4"`
	Budget5        string `csv:"budget_annee_5"`
	BudgetTotal    string `csv:"budget_total"`
	DurationDays   int    `csv:"duree_jours"`
	CreatedAt      string `csv:"created_at"`
}

func newExportRow(p Plan) exportRow {
	return exportRow{
		ID:             p.ID,
		Species:        p.Species,
		ScientificName: p.ScientificName,
		Activity:       p.Activity,
		SubActivity:    p.SubActivity,
		Tasks:          p.Tasks,
		Responsible:    p.Responsible,
		StartDate:      p.StartDate.Format(dateLayout),
		EndDate:        p.EndDate.Format(dateLayout),
		Budget1:        formatAmount(p.Budgets[0]),
		Budget2:        formatAmount(p.Budgets[1]),
		Budget3:        formatAmount(p.Budgets[2]),
		Budget4:        formatAmount(p.Budgets[3]),
		Budget5:        formatAmount(p.Budgets[4]),
		BudgetTotal:    formatAmount(p.BudgetTotal()),
		DurationDays:   p.DurationDays(),
		CreatedAt:      p.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Template renders the import template in the requested format.
func Template(format ExportFormat) ([]byte, error) {
	if format == ExportXLSX {
		return templateXLSX()
	}
	return encodeCSV([]templateRow{exampleTemplateRow})
}

// Export renders plans in the requested format.
func Export(format ExportFormat, plans []Plan) ([]byte, error) {
	if format == ExportXLSX {
		return exportXLSX(plans)
	}
	rows := make([]exportRow, 0, len(plans))
	for _, p := range plans {
		rows = append(rows, newExportRow(p))
	}
	if len(rows) == 0 {
		header, err := csvutil.Header(exportRow{}, "csv")
		if err != nil {
			return nil, fmt.Errorf("export header: %w", err)
		}
		return writeCSVRecords([][]string{header})
	}
	return encodeCSV(rows)
}

func encodeCSV(v any) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := csvutil.NewEncoder(w).Encode(v); err != nil {
		return nil, fmt.Errorf("encode csv: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

func writeCSVRecords(records [][]string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.WriteAll(records); err != nil {
		return nil, fmt.Errorf("write csv: %w", err)
	}
	return buf.Bytes(), nil
}

func templateXLSX() ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Plans"
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return nil, err
	}
	header := make([]any, len(TemplateHeaders))
	for i, h := range TemplateHeaders {
		header[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return nil, err
	}
	example := exampleTemplateRow.cells()
	if err := f.SetSheetRow(sheet, "A2", &example); err != nil {
		return nil, err
	}
	return writeWorkbook(f)
}

func exportXLSX(plans []Plan) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Plans"
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return nil, err
	}

	header, err := csvutil.Header(exportRow{}, "csv")
	if err != nil {
		return nil, err
	}
	headerCells := make([]any, len(header))
	for i, h := range header {
		headerCells[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &headerCells); err != nil {
		return nil, err
	}

	dateStyle, err := f.NewStyle(&excelize.Style{NumFmt: 14})
	if err != nil {
		return nil, err
	}

	for i, p := range plans {
		row := i + 2
		cells := []any{
			p.ID, p.Species, p.ScientificName, p.Activity, p.SubActivity, p.Tasks, p.Responsible,
			p.StartDate, p.EndDate,
			p.Budgets[0], p.Budgets[1], p.Budgets[2], p.Budgets[3], p.Budgets[4],
			p.BudgetTotal(), p.DurationDays(), p.CreatedAt.UTC().Format(time.RFC3339),
		}
		start, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(sheet, start, &cells); err != nil {
			return nil, err
		}
		from, err := excelize.CoordinatesToCellName(8, row)
		if err != nil {
			return nil, err
		}
		to, err := excelize.CoordinatesToCellName(9, row)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellStyle(sheet, from, to, dateStyle); err != nil {
			return nil, err
		}
	}
	return writeWorkbook(f)
}

func writeWorkbook(f *excelize.File) ([]byte, error) {
	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}
