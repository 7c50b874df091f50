package species

import (
	"context"
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
)

var (
	ErrInvalidInput = errors.New("invalid species")
	ErrDuplicate    = errors.New("species already exists")
)

const ImportedMsg = "Imported"

type CreateInput struct {
	CommonName     string `json:"common_name"`
	ScientificName string `json:"scientific_name"`
	Description    string `json:"description"`
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
	return &Service{db: database, uow: uow, feed: hub, logger: logger, skippedLimit: skippedLimit, now: time.Now}
}

func (s *Service) List(ctx context.Context) ([]Species, error) {
	return listSpecies(ctx, s.db)
}

func (s *Service) Create(ctx context.Context, actorID string, in CreateInput) (Species, error) {
	sp := Species{
		CommonName:     strings.TrimSpace(in.CommonName),
		ScientificName: strings.TrimSpace(in.ScientificName),
		Description:    strings.TrimSpace(in.Description),
		CreatedBy:      actorID,
		CreatedAt:      s.now().UTC(),
	}
	if sp.CommonName == "" || sp.ScientificName == "" {
		return Species{}, fmt.Errorf("%w: common name and scientific name are required", ErrInvalidInput)
	}
	if utf8.RuneCountInString(sp.CommonName) > MaxCommonNameLength {
		return Species{}, fmt.Errorf("%w: %s too long (max %d characters)", ErrInvalidInput, FieldCommonName, MaxCommonNameLength)
	}
	if utf8.RuneCountInString(sp.ScientificName) > MaxScientificNameLength {
		return Species{}, fmt.Errorf("%w: %s too long (max %d characters)", ErrInvalidInput, FieldScientificName, MaxScientificNameLength)
	}
	id, err := uuid.NewV7()
	if err != nil {
		return Species{}, fmt.Errorf("species id: %w", err)
	}
	sp.ID = id.String()

	err = s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		exists, err := scientificNameExists(ctx, tx, sp.ScientificName)
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("%w: %s", ErrDuplicate, sp.ScientificName)
		}
		if err := insertSpecies(ctx, tx, sp); err != nil {
			return err
		}
		return db.AppendAuditEvent(ctx, tx, actorID, db.EventSpeciesCreate, "species", sp.ID, map[string]any{
			"scientific_name": sp.ScientificName,
		})
	})
	if err != nil {
		return Species{}, err
	}

	s.logger.Info("species created", "species_id", sp.ID, "actor_id", actorID)
	s.feed.Publish(feed.Event{Type: feed.TypeSpeciesCreated, EntityID: sp.ID, Count: 1, ActorID: actorID})
	return sp, nil
}

// Import stores every valid row whose scientific name is new, both to the
// datastore and to the rows before it in the same file.
func (s *Service) Import(ctx context.Context, actorID, filename string, data []byte) (importer.Summary, error) {
	batch, err := importer.Run(filename, data, SpeciesNormalizer, CoerceSpeciesRow)
	if err != nil {
		s.logger.Info("species import rejected", "file", filename, "error", err)
		return importer.Summary{}, err
	}

	createdAt := s.now().UTC()
	var (
		created []string
		skipped []string
	)

	err = s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		created, skipped = nil, nil
		seen := make(map[string]bool)
		for _, outcome := range batch.Outcomes {
			if !outcome.Accepted() {
				skipped = append(skipped, outcome.Reject.Reason)
				continue
			}
			sp := outcome.Value
			key := nameKey(sp.ScientificName)
			duplicate := seen[key]
			if !duplicate {
				exists, err := scientificNameExists(ctx, tx, sp.ScientificName)
				if err != nil {
					return err
				}
				duplicate = exists
			}
			if duplicate {
				skipped = append(skipped, sp.ScientificName+" (already exists)")
				continue
			}
			seen[key] = true

			id, err := uuid.NewV7()
			if err != nil {
				return fmt.Errorf("species id: %w", err)
			}
			sp.ID = id.String()
			sp.CreatedBy = actorID
			sp.CreatedAt = createdAt
			if err := insertSpecies(ctx, tx, sp); err != nil {
				return err
			}
			created = append(created, sp.CommonName)
		}
		if len(created) == 0 {
			return errNothingToCommit
		}
		return db.AppendAuditEvent(ctx, tx, actorID, db.EventSpeciesImport, "species", "", map[string]any{
			"file":    filename,
			"created": len(created),
			"skipped": len(skipped),
		})
	})
	if err != nil && !errors.Is(err, errNothingToCommit) {
		s.logger.Error("species import failed", "file", filename, "error", err)
		return importer.Summary{}, fmt.Errorf("%w: %v", importer.ErrImportFailed, err)
	}

	if len(created) > 0 {
		s.feed.Publish(feed.Event{Type: feed.TypeSpeciesImported, Count: len(created), ActorID: actorID})
	}
	s.logger.Info("species import finished", "file", filename, "created", len(created), "skipped", len(skipped))
	return importer.NewSummary(ImportedMsg, created, skipped, s.skippedLimit), nil
}

// errNothingToCommit rolls back an import transaction that wrote nothing.
var errNothingToCommit = errors.New("nothing to commit")

// DryRun validates a species file without a datastore. Only duplicates
// within the file are detected.
func DryRun(filename string, data []byte, skippedLimit int) (importer.Summary, error) {
	batch, err := importer.Run(filename, data, SpeciesNormalizer, CoerceSpeciesRow)
	if err != nil {
		return importer.Summary{}, err
	}
	var created, skipped []string
	seen := make(map[string]bool)
	for _, outcome := range batch.Outcomes {
		switch {
		case !outcome.Accepted():
			skipped = append(skipped, outcome.Reject.Reason)
		case seen[nameKey(outcome.Value.ScientificName)]:
			skipped = append(skipped, outcome.Value.ScientificName+" (already exists)")
		default:
			seen[nameKey(outcome.Value.ScientificName)] = true
			created = append(created, outcome.Value.CommonName)
		}
	}
	return importer.NewSummary(ImportedMsg, created, skipped, skippedLimit), nil
}
