// Package reporting is the read-only query surface over administrations,
// feed batches and animals. It adds no invariants of its own.
package reporting

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/mamadbah2/amutrack/internal/domain/models"
)

// AdministrationReader queries administration records.
type AdministrationReader interface {
	Find(ctx context.Context, filter models.AdministrationFilter) ([]models.FeedAdministration, error)
}

// AnimalReader queries animals.
type AnimalReader interface {
	FindInWithdrawal(ctx context.Context, ownerID primitive.ObjectID) ([]models.Animal, error)
}

// UserReader resolves supervision relationships.
type UserReader interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	FarmersForVet(ctx context.Context, vetID primitive.ObjectID) ([]models.User, error)
}

// FeedReader loads batches referenced by records.
type FeedReader interface {
	GetByID(ctx context.Context, id, ownerID primitive.ObjectID) (*models.FeedBatch, error)
}

// Service exposes the reporting queries.
type Service struct {
	records AdministrationReader
	animals AnimalReader
	users   UserReader
	feeds   FeedReader
	logger  *zap.Logger
}

// NewService wires a new reporting service instance.
func NewService(records AdministrationReader, animals AnimalReader, users UserReader, feeds FeedReader, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{records: records, animals: animals, users: users, feeds: feeds, logger: logger}
}

// ListAdministrations returns records visible to the caller, narrowed by the
// filter. Farmers see their own, veterinarians their supervised farmers',
// regulators everything.
func (s *Service) ListAdministrations(ctx context.Context, actor models.Identity, filter models.AdministrationFilter) ([]models.FeedAdministration, error) {
	scoped, err := s.scopeFilter(ctx, actor, filter)
	if err != nil {
		return nil, err
	}
	return s.records.Find(ctx, scoped)
}

// PendingQueue lists the records awaiting the veterinarian's decision across
// all farmers assigned to them.
func (s *Service) PendingQueue(ctx context.Context, vet models.Identity) ([]models.FeedAdministration, error) {
	if vet.Role != models.RoleVeterinarian {
		return nil, fmt.Errorf("pending queue is a veterinarian view")
	}

	farmers, err := s.users.FarmersForVet(ctx, vet.ID)
	if err != nil {
		return nil, err
	}
	if len(farmers) == 0 {
		return nil, nil
	}

	farmerIDs := make([]primitive.ObjectID, 0, len(farmers))
	for _, f := range farmers {
		farmerIDs = append(farmerIDs, f.ID)
	}

	return s.records.Find(ctx, models.AdministrationFilter{
		FarmerIDs: farmerIDs,
		Status:    models.StatusPendingApproval,
	})
}

// ActivePrograms lists the farmer's administrations currently running.
func (s *Service) ActivePrograms(ctx context.Context, farmer models.Identity) ([]models.FeedAdministration, error) {
	return s.records.Find(ctx, models.AdministrationFilter{
		FarmerIDs: []primitive.ObjectID{farmer.ID},
		Status:    models.StatusActive,
	})
}

// AnimalsInWithdrawal lists the farmer's animals still under a withdrawal
// period.
func (s *Service) AnimalsInWithdrawal(ctx context.Context, farmer models.Identity) ([]models.Animal, error) {
	return s.animals.FindInWithdrawal(ctx, farmer.ID)
}

// AnimalHistory returns every administration that touched the given tag,
// scoped to the caller's visibility.
func (s *Service) AnimalHistory(ctx context.Context, actor models.Identity, tagID string) ([]models.FeedAdministration, error) {
	scoped, err := s.scopeFilter(ctx, actor, models.AdministrationFilter{AnimalTagID: tagID})
	if err != nil {
		return nil, err
	}
	return s.records.Find(ctx, scoped)
}

// UsageSummaryRow is one line of the regulator compliance export.
type UsageSummaryRow struct {
	FarmerID         string
	FarmerName       string
	FeedName         string
	ActiveIngredient string
	Quantity         float64
	Unit             string
	Status           models.AdministrationStatus
	StartDate        time.Time
}

// UsageSummary flattens the medicated administrations of a period into export
// rows. Rows whose feed cannot be resolved are skipped with a debug log
// rather than failing the whole export.
func (s *Service) UsageSummary(ctx context.Context, start, end time.Time) ([]UsageSummaryRow, error) {
	records, err := s.records.Find(ctx, models.AdministrationFilter{From: start, To: end})
	if err != nil {
		return nil, fmt.Errorf("load administrations for summary: %w", err)
	}

	var rows []UsageSummaryRow
	for _, rec := range records {
		feed, err := s.feeds.GetByID(ctx, rec.FeedID, rec.FarmerID)
		if err != nil {
			s.logger.Debug("skip summary row, feed unresolved",
				zap.String("record_id", rec.ID.Hex()), zap.Error(err))
			continue
		}
		if !feed.PrescriptionRequired {
			continue
		}

		farmerName := ""
		if farmer, err := s.users.GetByID(ctx, rec.FarmerID); err == nil {
			farmerName = farmer.Name
		}

		rows = append(rows, UsageSummaryRow{
			FarmerID:         rec.FarmerID.Hex(),
			FarmerName:       farmerName,
			FeedName:         feed.Name,
			ActiveIngredient: feed.ActiveIngredient,
			Quantity:         rec.QuantityUsed,
			Unit:             feed.Unit,
			Status:           rec.Status,
			StartDate:        rec.StartDate,
		})
	}
	return rows, nil
}

func (s *Service) scopeFilter(ctx context.Context, actor models.Identity, filter models.AdministrationFilter) (models.AdministrationFilter, error) {
	switch actor.Role {
	case models.RoleFarmer:
		filter.FarmerIDs = []primitive.ObjectID{actor.ID}
	case models.RoleVeterinarian:
		farmers, err := s.users.FarmersForVet(ctx, actor.ID)
		if err != nil {
			return filter, err
		}
		ids := make([]primitive.ObjectID, 0, len(farmers))
		for _, f := range farmers {
			ids = append(ids, f.ID)
		}
		if len(ids) == 0 {
			// A vet with no farmers sees nothing rather than everything.
			ids = []primitive.ObjectID{primitive.NilObjectID}
		}
		filter.FarmerIDs = ids
	case models.RoleRegulator:
		// Unscoped.
	default:
		return filter, fmt.Errorf("unknown role %q", actor.Role)
	}
	return filter, nil
}
