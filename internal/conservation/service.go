package conservation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/faunatrack/server/internal/db"
	"github.com/faunatrack/server/internal/feed"
	"github.com/faunatrack/server/internal/importer"
	"github.com/faunatrack/server/internal/tabular"
)

var ErrInvalidInput = errors.New("invalid plan")

const ImportFinishedMsg = "import finished"

// Amount is a budget value in a JSON body: a number, a numeric string, an
// empty string or null.
type Amount float64

func (a *Amount) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*a = 0
		return nil
	}
	var raw any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case float64:
		*a = Amount(v)
		return nil
	case string:
		f, ok := importer.AmountValue(tabular.String(v))
		if !ok {
			return fmt.Errorf("invalid amount %q", v)
		}
		*a = Amount(f)
		return nil
	default:
		return fmt.Errorf("invalid amount %s", b)
	}
}

// CreateInput is the body of a single plan submission.
type CreateInput struct {
	Species        string `json:"espece"`
	ScientificName string `json:"nom_scientifique"`
	Activity       string `json:"activite"`
	SubActivity    string `json:"sous_activite"`
	Tasks          string `json:"taches"`
	Responsible    string `json:"responsable"`
	StartDate      string `json:"date_debut_taches"`
	EndDate        string `json:"date_fin_taches"`
	Budget1        Amount `json:"budget_annee_1"`
	Budget2        Amount `json:"budget_annee_2"`
	Budget3        Amount `json:"budget_annee_3"`
	Budget4        Amount `json:"budget_annee_4"`
	Budget5        Amount `json:"budget_annee_5"`
}

type Service struct {
	db           *db.DB
	uow          db.UnitOfWork
	feed         *feed.Hub
	logger       *slog.Logger
	skippedLimit int
	now          func() time.Time
}

func NewService(database *db.DB, uow db.UnitOfWork, hub *feed.Hub, logger *slog.Logger, skippedLimit int) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		db:           database,
		uow:          uow,
		feed:         hub,
		logger:       logger,
		skippedLimit: skippedLimit,
		now:          time.Now,
	}
}

// Create validates and stores one plan. Unlike imports it requires the
// start date to precede the end date.
func (s *Service) Create(ctx context.Context, actorID string, in CreateInput) (Plan, error) {
	plan, err := validateCreate(in)
	if err != nil {
		return Plan{}, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return Plan{}, fmt.Errorf("plan id: %w", err)
	}
	plan.ID = id.String()
	plan.CreatedBy = actorID
	plan.CreatedAt = s.now().UTC()

	err = s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		if err := insertPlan(ctx, tx, plan); err != nil {
			return err
		}
		return db.AppendAuditEvent(ctx, tx, actorID, db.EventPlanCreate, "conservation_plan", plan.ID, map[string]any{
			"espece":       plan.Species,
			"activite":     plan.Activity,
			"budget_total": plan.BudgetTotal(),
		})
	})
	if err != nil {
		return Plan{}, fmt.Errorf("create conservation plan: %w", err)
	}

	s.logger.Info("conservation plan created", "plan_id", plan.ID, "actor_id", actorID)
	s.feed.Publish(feed.Event{Type: feed.TypePlanCreated, EntityID: plan.ID, Count: 1, ActorID: actorID})
	return plan, nil
}

func validateCreate(in CreateInput) (Plan, error) {
	plan := Plan{
		Species:        strings.TrimSpace(in.Species),
		ScientificName: strings.TrimSpace(in.ScientificName),
		Activity:       strings.TrimSpace(in.Activity),
		SubActivity:    strings.TrimSpace(in.SubActivity),
		Tasks:          strings.TrimSpace(in.Tasks),
		Responsible:    strings.TrimSpace(in.Responsible),
		Budgets:        [BudgetYears]float64{float64(in.Budget1), float64(in.Budget2), float64(in.Budget3), float64(in.Budget4), float64(in.Budget5)},
	}

	required := []struct {
		field string
		value string
	}{
		{FieldSpecies, plan.Species},
		{FieldScientificName, plan.ScientificName},
		{FieldActivity, plan.Activity},
		{FieldTasks, plan.Tasks},
		{FieldResponsible, plan.Responsible},
		{FieldStartDate, strings.TrimSpace(in.StartDate)},
		{FieldEndDate, strings.TrimSpace(in.EndDate)},
	}
	for _, r := range required {
		if r.value == "" {
			return Plan{}, fmt.Errorf("%w: missing required field: %s", ErrInvalidInput, r.field)
		}
	}
	for _, fv := range plan.textFields() {
		if limit := MaxFieldLength[fv.field]; limit > 0 && utf8.RuneCountInString(fv.value) > limit {
			return Plan{}, fmt.Errorf("%w: %s too long (max %d characters)", ErrInvalidInput, fv.field, limit)
		}
	}

	start, errStart := time.Parse(dateLayout, strings.TrimSpace(in.StartDate))
	end, errEnd := time.Parse(dateLayout, strings.TrimSpace(in.EndDate))
	if errStart != nil || errEnd != nil {
		return Plan{}, fmt.Errorf("%w: invalid date format (YYYY-MM-DD)", ErrInvalidInput)
	}
	if !start.Before(end) {
		return Plan{}, fmt.Errorf("%w: start date must be before end date", ErrInvalidInput)
	}
	plan.StartDate, plan.EndDate = start, end

	for i, amount := range plan.Budgets {
		if amount < 0 {
			return Plan{}, fmt.Errorf("%w: invalid %s", ErrInvalidInput, BudgetFields[i])
		}
	}
	return plan, nil
}

func (s *Service) List(ctx context.Context) ([]Plan, error) {
	return listPlans(ctx, s.db)
}

func (s *Service) Gantt(ctx context.Context) ([]GanttEntry, error) {
	plans, err := listPlans(ctx, s.db)
	if err != nil {
		return nil, err
	}
	return BuildGantt(plans), nil
}

func (s *Service) Report(ctx context.Context) (Report, error) {
	plans, err := listPlans(ctx, s.db)
	if err != nil {
		return Report{}, err
	}
	return BuildReport(plans, s.now()), nil
}

// Import stores every valid row of an uploaded file in one transaction and
// reports the rows it skipped. Batch-level problems with the file are
// returned unwrapped; a failed write returns importer.ErrImportFailed and
// leaves nothing behind.
func (s *Service) Import(ctx context.Context, actorID, filename string, data []byte) (importer.Summary, error) {
	batch, err := importer.Run(filename, data, PlanNormalizer, CoercePlanRow)
	if err != nil {
		s.logger.Info("conservation import rejected", "file", filename, "error", err)
		return importer.Summary{}, err
	}

	plans := batch.Accepted()
	skipped := batch.Rejections()
	createdAt := s.now().UTC()
	created := make([]string, 0, len(plans))
	for i := range plans {
		id, err := uuid.NewV7()
		if err != nil {
			return importer.Summary{}, fmt.Errorf("%w: plan id: %v", importer.ErrImportFailed, err)
		}
		plans[i].ID = id.String()
		plans[i].CreatedBy = actorID
		plans[i].CreatedAt = createdAt
		created = append(created, plans[i].Species)
	}

	if len(plans) > 0 {
		err = s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
			for _, plan := range plans {
				if err := insertPlan(ctx, tx, plan); err != nil {
					return err
				}
			}
			return db.AppendAuditEvent(ctx, tx, actorID, db.EventPlanImport, "conservation_plan", "", map[string]any{
				"file":    filename,
				"created": len(plans),
				"skipped": len(skipped),
			})
		})
		if err != nil {
			s.logger.Error("conservation import failed", "file", filename, "rows", len(plans), "error", err)
			return importer.Summary{}, fmt.Errorf("%w: %v", importer.ErrImportFailed, err)
		}
		s.feed.Publish(feed.Event{Type: feed.TypePlansImported, Count: len(plans), ActorID: actorID})
	}

	s.logger.Info("conservation import finished", "file", filename, "created", len(plans), "skipped", len(skipped))
	return importer.NewSummary(ImportFinishedMsg, created, skipped, s.skippedLimit), nil
}

// DryRun runs an import without a datastore and reports what it would
// create.
func DryRun(filename string, data []byte, skippedLimit int) (importer.Summary, error) {
	batch, err := importer.Run(filename, data, PlanNormalizer, CoercePlanRow)
	if err != nil {
		return importer.Summary{}, err
	}
	plans := batch.Accepted()
	created := make([]string, 0, len(plans))
	for _, plan := range plans {
		created = append(created, plan.Species)
	}
	return importer.NewSummary(ImportFinishedMsg, created, batch.Rejections(), skippedLimit), nil
}
