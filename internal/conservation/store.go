package conservation

import (
	"context"
	"fmt"

	"github.com/faunatrack/server/internal/db"
)

const planColumns = `id, espece, nom_scientifique, activite, sous_activite, taches, responsable,
	date_debut_taches, date_fin_taches,
	budget_annee_1, budget_annee_2, budget_annee_3, budget_annee_4, budget_annee_5,
	COALESCE(created_by, ''), created_at`

func insertPlan(ctx context.Context, q db.DBTX, p Plan) error {
	var createdBy any
	if p.CreatedBy != "" {
		createdBy = p.CreatedBy
	}
	_, err := q.ExecContext(ctx, `
		INSERT INTO conservation_plans (
			id, espece, nom_scientifique, activite, sous_activite, taches, responsable,
			date_debut_taches, date_fin_taches,
			budget_annee_1, budget_annee_2, budget_annee_3, budget_annee_4, budget_annee_5,
			created_by, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`,
		p.ID, p.Species, p.ScientificName, p.Activity, p.SubActivity, p.Tasks, p.Responsible,
		db.FormatDate(p.StartDate), db.FormatDate(p.EndDate),
		p.Budgets[0], p.Budgets[1], p.Budgets[2], p.Budgets[3], p.Budgets[4],
		createdBy, db.FormatTimestamp(p.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert conservation plan: %w", err)
	}
	return nil
}

// listPlans returns every plan in insertion order.
func listPlans(ctx context.Context, q db.DBTX) ([]Plan, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+planColumns+` FROM conservation_plans ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("query conservation plans: %w", err)
	}
	defer rows.Close()

	var plans []Plan
	for rows.Next() {
		var (
			p                     Plan
			start, end, createdAt string
		)
		if err := rows.Scan(
			&p.ID, &p.Species, &p.ScientificName, &p.Activity, &p.SubActivity, &p.Tasks, &p.Responsible,
			&start, &end,
			&p.Budgets[0], &p.Budgets[1], &p.Budgets[2], &p.Budgets[3], &p.Budgets[4],
			&p.CreatedBy, &createdAt,
		); err != nil {
			return nil, fmt.Errorf("scan conservation plan: %w", err)
		}
		if p.StartDate, err = db.ParseDate(start); err != nil {
			return nil, fmt.Errorf("plan %s start date: %w", p.ID, err)
		}
		if p.EndDate, err = db.ParseDate(end); err != nil {
			return nil, fmt.Errorf("plan %s end date: %w", p.ID, err)
		}
		if p.CreatedAt, err = db.ParseTimestamp(createdAt); err != nil {
			return nil, fmt.Errorf("plan %s created_at: %w", p.ID, err)
		}
		plans = append(plans, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate conservation plans: %w", err)
	}
	return plans, nil
}
