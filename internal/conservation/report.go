package conservation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// GanttEntry is one bar of the schedule chart.
type GanttEntry struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Start        string  `json:"start"`
	End          string  `json:"end"`
	Progress     int     `json:"progress"`
	Dependencies string  `json:"dependencies"`
	CustomClass  string  `json:"custom_class"`
	Species      string  `json:"espece"`
	Activity     string  `json:"activite"`
	Responsible  string  `json:"responsable"`
	BudgetTotal  float64 `json:"budget_total"`
}

// BuildGantt maps plans to schedule bars. Progress is not tracked and is
// always zero.
func BuildGantt(plans []Plan) []GanttEntry {
	entries := make([]GanttEntry, 0, len(plans))
	for _, p := range plans {
		entries = append(entries, GanttEntry{
			ID:          p.ID,
			Name:        p.Label(),
			Start:       p.StartDate.Format(dateLayout),
			End:         p.EndDate.Format(dateLayout),
			CustomClass: "bar-task-" + p.ID,
			Species:     p.Species,
			Activity:    p.Activity,
			Responsible: p.Responsible,
			BudgetTotal: p.BudgetTotal(),
		})
	}
	return entries
}

type ReportSummary struct {
	TotalPlans    int     `json:"total_plans"`
	TotalBudget   float64 `json:"total_budget"`
	UniqueSpecies int     `json:"especes_uniques"`
	GeneratedAt   string  `json:"date_generation"`
}

// YearlyBudgets holds the budget sum of each planning year.
type YearlyBudgets [BudgetYears]float64

func (y YearlyBudgets) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, v := range y {
		if i > 0 {
			buf.WriteByte(',')
		}
		value, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		fmt.Fprintf(&buf, `"annee_%d":%s`, i+1, value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// ResponsibleGroups groups plans by responsible party and keeps the order
// in which each party first appears.
type ResponsibleGroups struct {
	order []string
	plans map[string][]PlanView
}

func (g *ResponsibleGroups) add(name string, view PlanView) {
	if g.plans == nil {
		g.plans = make(map[string][]PlanView)
	}
	if _, ok := g.plans[name]; !ok {
		g.order = append(g.order, name)
	}
	g.plans[name] = append(g.plans[name], view)
}

// Names returns the responsible parties in first-seen order.
func (g ResponsibleGroups) Names() []string {
	return append([]string(nil), g.order...)
}

func (g ResponsibleGroups) Plans(name string) []PlanView {
	return g.plans[name]
}

func (g ResponsibleGroups) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range g.order {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(g.plans[name])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

type Report struct {
	Summary       ReportSummary     `json:"resume"`
	YearlyBudgets YearlyBudgets     `json:"budgets_annuels"`
	Responsibles  ResponsibleGroups `json:"responsables"`
	Plans         []PlanView        `json:"plans"`
}

// BuildReport aggregates plans into totals, yearly sums and groups by
// responsible party.
func BuildReport(plans []Plan, now time.Time) Report {
	var (
		total  = decimal.Zero
		yearly [BudgetYears]decimal.Decimal
		groups ResponsibleGroups
		views  = make([]PlanView, 0, len(plans))
	)
	species := make(map[string]struct{})

	for _, p := range plans {
		view := p.View()
		views = append(views, view)
		groups.add(p.Responsible, view)
		species[p.Species] = struct{}{}
		total = total.Add(sumDecimal(p.Budgets[:]...))
		for i, amount := range p.Budgets {
			yearly[i] = yearly[i].Add(decimal.NewFromFloat(amount))
		}
	}

	var yearlyBudgets YearlyBudgets
	for i := range yearly {
		yearlyBudgets[i] = yearly[i].InexactFloat64()
	}

	return Report{
		Summary: ReportSummary{
			TotalPlans:    len(plans),
			TotalBudget:   total.InexactFloat64(),
			UniqueSpecies: len(species),
			GeneratedAt:   now.Format("2006-01-02T15:04:05.000000"),
		},
		YearlyBudgets: yearlyBudgets,
		Responsibles:  groups,
		Plans:         views,
	}
}
