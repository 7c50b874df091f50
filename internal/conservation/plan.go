package conservation

import (
	"time"

	"github.com/shopspring/decimal"
)

// BudgetYears is the length of the planning horizon.
const BudgetYears = 5

// Plan is a conservation action scheduled for one species.
type Plan struct {
	ID             string
	Species        string
	ScientificName string
	Activity       string
	SubActivity    string
	Tasks          string
	Responsible    string
	StartDate      time.Time
	EndDate        time.Time
	Budgets        [BudgetYears]float64
	CreatedBy      string
	CreatedAt      time.Time
}

// BudgetTotal sums the yearly budgets.
func (p Plan) BudgetTotal() float64 {
	return sumDecimal(p.Budgets[:]...).InexactFloat64()
}

// DurationDays is the number of days from start to end. It is negative
// when an imported plan ends before it starts.
func (p Plan) DurationDays() int {
	return int(p.EndDate.Sub(p.StartDate).Hours() / 24)
}

// Label names a plan in schedules and import summaries.
func (p Plan) Label() string {
	return p.Species + " - " + p.Activity
}

// PlanView is the JSON shape of a plan, derived fields included.
type PlanView struct {
	ID             string  `json:"id"`
	Species        string  `json:"espece"`
	ScientificName string  `json:"nom_scientifique"`
	Activity       string  `json:"activite"`
	SubActivity    string  `json:"sous_activite"`
	Tasks          string  `json:"taches"`
	Responsible    string  `json:"responsable"`
	StartDate      string  `json:"date_debut_taches"`
	EndDate        string  `json:"date_fin_taches"`
	Budget1        float64 `json:"budget_annee_1"`
	Budget2        float64 `json:"budget_annee_2"`
	Budget3        float64 `json:"budget_annee_3"`
	Budget4        float64 `json:"budget_annee_4"`
	Budget5        float64 `json:"budget_annee_5"`
	BudgetTotal    float64 `json:"budget_total"`
	DurationDays   int     `json:"duree_jours"`
	CreatedAt      string  `json:"created_at"`
}

func (p Plan) View() PlanView {
	return PlanView{
		ID:             p.ID,
		Species:        p.Species,
		ScientificName: p.ScientificName,
		Activity:       p.Activity,
		SubActivity:    p.SubActivity,
		Tasks:          p.Tasks,
		Responsible:    p.Responsible,
		StartDate:      p.StartDate.Format(dateLayout),
		EndDate:        p.EndDate.Format(dateLayout),
		Budget1:        p.Budgets[0],
		Budget2:        p.Budgets[1],
		Budget3:        p.Budgets[2],
		Budget4:        p.Budgets[3],
		Budget5:        p.Budgets[4],
		BudgetTotal:    p.BudgetTotal(),
		DurationDays:   p.DurationDays(),
		CreatedAt:      p.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func Views(plans []Plan) []PlanView {
	views := make([]PlanView, 0, len(plans))
	for _, p := range plans {
		views = append(views, p.View())
	}
	return views
}

func sumDecimal(values ...float64) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(decimal.NewFromFloat(v))
	}
	return total
}
