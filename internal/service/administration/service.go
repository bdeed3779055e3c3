// Package administration implements the feed administration workflow: a
// farmer creates a record (deducting batch stock), a veterinarian approves or
// rejects it, and the farmer completes or deletes it. Stock flows back to the
// batch through exactly one of the reject and delete-while-pending paths.
package administration

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/mamadbah2/amutrack/internal/domain/models"
	"github.com/mamadbah2/amutrack/internal/metrics"
)

// FeedStore is the slice of the feed repository the workflow needs.
type FeedStore interface {
	GetByID(ctx context.Context, id, ownerID primitive.ObjectID) (*models.FeedBatch, error)
	ConsumeStock(ctx context.Context, id, ownerID primitive.ObjectID, quantity float64) (*models.FeedBatch, error)
	RestoreStock(ctx context.Context, id primitive.ObjectID, quantity float64) error
}

// AdministrationStore persists the workflow's records.
type AdministrationStore interface {
	Insert(ctx context.Context, rec *models.FeedAdministration) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.FeedAdministration, error)
	MarkApproved(ctx context.Context, id, vetID primitive.ObjectID, at time.Time) error
	MarkRejected(ctx context.Context, id, vetID primitive.ObjectID, reason, notes string) error
	MarkCompleted(ctx context.Context, id primitive.ObjectID, at time.Time) error
	ClaimStockRestore(ctx context.Context, id primitive.ObjectID) (bool, error)
	UpdateMutable(ctx context.Context, id primitive.ObjectID, req models.UpdateAdministrationRequest) error
	Delete(ctx context.Context, id primitive.ObjectID) error
}

// AnimalStore mutates animal markers as workflow side effects.
type AnimalStore interface {
	FindByTagIDs(ctx context.Context, ownerID primitive.ObjectID, tagIDs []string) ([]models.Animal, error)
	ClearNewFlag(ctx context.Context, ownerID primitive.ObjectID, tagIDs []string) error
	SetWithdrawal(ctx context.Context, ownerID primitive.ObjectID, tagIDs []string, end time.Time, administrationID primitive.ObjectID) error
	ClearWithdrawal(ctx context.Context, ownerID primitive.ObjectID, tagIDs []string, administrationID primitive.ObjectID, now time.Time) error
}

// UserStore resolves accounts, used for vet assignment lookups.
type UserStore interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
}

// AuditStore appends compliance entries.
type AuditStore interface {
	Append(ctx context.Context, entry models.AuditLog) error
}

// OutboxStore records notification side effects for the dispatcher.
type OutboxStore interface {
	Enqueue(ctx context.Context, event models.OutboxEvent) error
}

// EligibilityChecker screens animals against MRL rules.
type EligibilityChecker interface {
	CheckEligibility(animals []models.Animal, now time.Time) models.EligibilityResult
}

// Service implements the workflow state machine.
type Service struct {
	feeds       FeedStore
	records     AdministrationStore
	animals     AnimalStore
	users       UserStore
	auditLog    AuditStore
	outbox      OutboxStore
	eligibility EligibilityChecker
	logger      *zap.Logger
	now         func() time.Time
}

// NewService wires the workflow service.
func NewService(feeds FeedStore, records AdministrationStore, animals AnimalStore, users UserStore, auditLog AuditStore, outbox OutboxStore, eligibility EligibilityChecker, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		feeds:       feeds,
		records:     records,
		animals:     animals,
		users:       users,
		auditLog:    auditLog,
		outbox:      outbox,
		eligibility: eligibility,
		logger:      logger,
		now:         time.Now,
	}
}

// Create starts an administration. For medicated feed every requested animal
// must pass the MRL screening; one failure refuses the whole request. Stock
// is deducted atomically before the record is inserted, and credited back if
// the insert fails.
func (s *Service) Create(ctx context.Context, actor models.Identity, req models.CreateAdministrationRequest) (*models.FeedAdministration, error) {
	if actor.Role != models.RoleFarmer {
		return nil, fmt.Errorf("only farmers create administrations: %w", ErrForbidden)
	}
	feedID, err := primitive.ObjectIDFromHex(req.FeedID)
	if err != nil {
		return nil, fmt.Errorf("malformed feed id %q: %w", req.FeedID, ErrValidation)
	}
	if req.Quantity <= 0 {
		return nil, fmt.Errorf("quantity must be positive: %w", ErrValidation)
	}
	if len(req.AnimalTagIDs) == 0 {
		return nil, fmt.Errorf("at least one animal is required: %w", ErrValidation)
	}

	now := s.now().UTC()
	startDate := req.StartDate
	if startDate.IsZero() {
		startDate = now
	}

	feed, err := s.feeds.GetByID(ctx, feedID, actor.ID)
	if err != nil {
		return nil, err
	}

	animals, err := s.animals.FindByTagIDs(ctx, actor.ID, req.AnimalTagIDs)
	if err != nil {
		return nil, err
	}
	if missing := missingTags(req.AnimalTagIDs, animals); len(missing) > 0 {
		return nil, fmt.Errorf("animals not found: %s: %w", strings.Join(missing, ", "), models.ErrNotFound)
	}

	// Medicated feed only; anything may receive non-medicated feed.
	if feed.PrescriptionRequired {
		result := s.eligibility.CheckEligibility(animals, now)
		if !result.AllEligible() {
			metrics.TransitionsTotal.WithLabelValues("create", "ineligible").Inc()
			return nil, &IneligibleAnimalsError{Animals: result.Ineligible}
		}
	}

	feed, err = s.feeds.ConsumeStock(ctx, feedID, actor.ID, req.Quantity)
	if err != nil {
		metrics.TransitionsTotal.WithLabelValues("create", "error").Inc()
		return nil, err
	}

	rec := &models.FeedAdministration{
		FarmerID:     actor.ID,
		FeedID:       feedID,
		AnimalTagIDs: req.AnimalTagIDs,
		GroupName:    req.GroupName,
		QuantityUsed: req.Quantity,
		StartDate:    startDate,
		Notes:        req.Notes,
		Status:       models.StatusActive,
	}
	if feed.PrescriptionRequired {
		rec.Status = models.StatusPendingApproval
		if feed.WithdrawalPeriodDays > 0 {
			rec.WithdrawalEndDate = startDate.AddDate(0, 0, feed.WithdrawalPeriodDays)
		}
	}

	if err := s.records.Insert(ctx, rec); err != nil {
		// The deduction already happened; hand the stock straight back.
		if restoreErr := s.feeds.RestoreStock(ctx, feedID, req.Quantity); restoreErr != nil {
			s.logger.Error("compensating restore failed, ledger diverged",
				zap.String("feed_id", feedID.Hex()), zap.Error(restoreErr))
		} else {
			metrics.StockRestoredTotal.WithLabelValues("compensation").Inc()
		}
		metrics.TransitionsTotal.WithLabelValues("create", "error").Inc()
		return nil, err
	}

	if err := s.animals.ClearNewFlag(ctx, actor.ID, req.AnimalTagIDs); err != nil {
		s.logger.Warn("failed clearing new flag", zap.String("record_id", rec.ID.Hex()), zap.Error(err))
	}

	s.enqueue(ctx, models.OutboxConfirmationEmail, rec.ID, actor.ID)
	if feed.PrescriptionRequired {
		s.notifyAssignedVet(ctx, actor.ID, rec.ID)
	}

	s.writeAudit("administration_created", rec, actor, map[string]any{
		"quantity": req.Quantity,
		"status":   rec.Status,
	})
	metrics.TransitionsTotal.WithLabelValues("create", "ok").Inc()

	s.logger.Info("administration created",
		zap.String("record_id", rec.ID.Hex()),
		zap.String("feed_id", feedID.Hex()),
		zap.String("status", string(rec.Status)),
		zap.Float64("quantity", req.Quantity))
	return rec, nil
}

// Approve moves a pending record to active. Eligibility is re-validated
// against the animals' current status; if any has degraded since creation the
// approval is refused and the record stays pending for the vet to reject with
// a reason.
func (s *Service) Approve(ctx context.Context, actor models.Identity, id primitive.ObjectID) (*models.FeedAdministration, error) {
	if actor.Role != models.RoleVeterinarian {
		return nil, fmt.Errorf("only veterinarians approve: %w", ErrForbidden)
	}

	rec, err := s.records.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.Status != models.StatusPendingApproval {
		metrics.TransitionsTotal.WithLabelValues("approve", "wrong_state").Inc()
		return nil, fmt.Errorf("approve from %s: %w", rec.Status, ErrInvalidTransition)
	}

	feed, err := s.feeds.GetByID(ctx, rec.FeedID, rec.FarmerID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()

	animals, err := s.animals.FindByTagIDs(ctx, rec.FarmerID, rec.AnimalTagIDs)
	if err != nil {
		return nil, err
	}
	if feed.PrescriptionRequired {
		result := s.eligibility.CheckEligibility(animals, now)
		if !result.AllEligible() {
			metrics.TransitionsTotal.WithLabelValues("approve", "ineligible").Inc()
			return nil, &IneligibleAnimalsError{Animals: result.Ineligible}
		}
	}

	if err := s.records.MarkApproved(ctx, id, actor.ID, now); err != nil {
		metrics.TransitionsTotal.WithLabelValues("approve", "error").Inc()
		return nil, err
	}
	rec.Status = models.StatusActive
	rec.Approved = true
	rec.ApprovalDate = &now
	rec.ApprovedBy = &actor.ID

	if err := s.animals.ClearNewFlag(ctx, rec.FarmerID, rec.AnimalTagIDs); err != nil {
		s.logger.Warn("failed clearing new flag", zap.String("record_id", id.Hex()), zap.Error(err))
	}

	if feed.PrescriptionRequired && feed.WithdrawalPeriodDays > 0 {
		if err := s.animals.SetWithdrawal(ctx, rec.FarmerID, rec.AnimalTagIDs, rec.WithdrawalEndDate, rec.ID); err != nil {
			s.logger.Error("failed flagging withdrawal", zap.String("record_id", id.Hex()), zap.Error(err))
		}
	}

	s.enqueue(ctx, models.OutboxPrescriptionEmail, rec.ID, rec.FarmerID)

	s.writeAudit("administration_approved", rec, actor, map[string]any{"approvedBy": actor.ID.Hex()})
	metrics.TransitionsTotal.WithLabelValues("approve", "ok").Inc()

	s.logger.Info("administration approved",
		zap.String("record_id", id.Hex()), zap.String("vet_id", actor.ID.Hex()))
	return rec, nil
}

// Reject refuses a pending record and returns its stock to the batch.
func (s *Service) Reject(ctx context.Context, actor models.Identity, id primitive.ObjectID, reason string) (*models.FeedAdministration, error) {
	if actor.Role != models.RoleVeterinarian {
		return nil, fmt.Errorf("only veterinarians reject: %w", ErrForbidden)
	}
	if strings.TrimSpace(reason) == "" {
		return nil, ErrMissingReason
	}

	rec, err := s.records.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.Status != models.StatusPendingApproval {
		metrics.TransitionsTotal.WithLabelValues("reject", "wrong_state").Inc()
		return nil, fmt.Errorf("reject from %s: %w", rec.Status, ErrInvalidTransition)
	}

	notes := rec.Notes
	if notes != "" {
		notes += "\n"
	}
	notes += "Rejected: " + reason

	if err := s.records.MarkRejected(ctx, id, actor.ID, reason, notes); err != nil {
		metrics.TransitionsTotal.WithLabelValues("reject", "error").Inc()
		return nil, err
	}
	rec.Status = models.StatusRejected
	rec.RejectionReason = reason
	rec.RejectedBy = &actor.ID
	rec.Notes = notes

	s.restoreOnce(ctx, rec, "reject")

	s.enqueue(ctx, models.OutboxRejectionEmail, rec.ID, rec.FarmerID)

	s.writeAudit("administration_rejected", rec, actor, map[string]any{"reason": reason})
	metrics.TransitionsTotal.WithLabelValues("reject", "ok").Inc()

	s.logger.Info("administration rejected",
		zap.String("record_id", id.Hex()), zap.String("vet_id", actor.ID.Hex()))
	return rec, nil
}

// Complete closes an active record. Stock stays consumed; only rejection and
// deletion return it.
func (s *Service) Complete(ctx context.Context, actor models.Identity, id primitive.ObjectID) (*models.FeedAdministration, error) {
	rec, err := s.records.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.Role != models.RoleFarmer || rec.FarmerID != actor.ID {
		return nil, ErrForbidden
	}
	if rec.Status != models.StatusActive {
		metrics.TransitionsTotal.WithLabelValues("complete", "wrong_state").Inc()
		return nil, fmt.Errorf("complete from %s: %w", rec.Status, ErrInvalidTransition)
	}

	now := s.now().UTC()
	if err := s.records.MarkCompleted(ctx, id, now); err != nil {
		metrics.TransitionsTotal.WithLabelValues("complete", "error").Inc()
		return nil, err
	}
	rec.Status = models.StatusCompleted
	rec.EndDate = &now

	if err := s.animals.ClearWithdrawal(ctx, rec.FarmerID, rec.AnimalTagIDs, rec.ID, now); err != nil {
		s.logger.Warn("failed clearing withdrawal links", zap.String("record_id", id.Hex()), zap.Error(err))
	}

	s.writeAudit("administration_completed", rec, actor, nil)
	metrics.TransitionsTotal.WithLabelValues("complete", "ok").Inc()

	s.logger.Info("administration completed", zap.String("record_id", id.Hex()))
	return rec, nil
}

// Delete removes a record that is still pending and returns its stock.
// Records past pending must go through Complete instead.
func (s *Service) Delete(ctx context.Context, actor models.Identity, id primitive.ObjectID) error {
	rec, err := s.records.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if actor.Role != models.RoleFarmer || rec.FarmerID != actor.ID {
		return ErrForbidden
	}
	if !rec.Status.Deletable() {
		metrics.TransitionsTotal.WithLabelValues("delete", "wrong_state").Inc()
		return fmt.Errorf("delete from %s, use the complete path: %w", rec.Status, ErrInvalidTransition)
	}

	s.restoreOnce(ctx, rec, "delete")

	if err := s.records.Delete(ctx, id); err != nil {
		metrics.TransitionsTotal.WithLabelValues("delete", "error").Inc()
		return err
	}

	s.writeAudit("administration_deleted", rec, actor, nil)
	metrics.TransitionsTotal.WithLabelValues("delete", "ok").Inc()

	s.logger.Info("administration deleted", zap.String("record_id", id.Hex()))
	return nil
}

// Update patches the mutable fields. Owner and feed references never change.
func (s *Service) Update(ctx context.Context, actor models.Identity, id primitive.ObjectID, req models.UpdateAdministrationRequest) (*models.FeedAdministration, error) {
	rec, err := s.records.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.canAccess(ctx, actor, rec); err != nil {
		return nil, err
	}

	if err := s.records.UpdateMutable(ctx, id, req); err != nil {
		return nil, err
	}
	return s.records.GetByID(ctx, id)
}

// Get fetches a record, enforcing the caller's visibility.
func (s *Service) Get(ctx context.Context, actor models.Identity, id primitive.ObjectID) (*models.FeedAdministration, error) {
	rec, err := s.records.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.canAccess(ctx, actor, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// canAccess allows the owning farmer, the farmer's assigned veterinarian, and
// regulators.
func (s *Service) canAccess(ctx context.Context, actor models.Identity, rec *models.FeedAdministration) error {
	switch actor.Role {
	case models.RoleRegulator:
		return nil
	case models.RoleFarmer:
		if rec.FarmerID == actor.ID {
			return nil
		}
	case models.RoleVeterinarian:
		owner, err := s.users.GetByID(ctx, rec.FarmerID)
		if err != nil {
			return err
		}
		if owner.AssignedVetID != nil && *owner.AssignedVetID == actor.ID {
			return nil
		}
	}
	return ErrForbidden
}

// restoreOnce credits the batch back if this record has not restored yet. The
// claim is an atomic compare-and-set on the record, so the reject and delete
// paths can never both credit.
func (s *Service) restoreOnce(ctx context.Context, rec *models.FeedAdministration, trigger string) {
	claimed, err := s.records.ClaimStockRestore(ctx, rec.ID)
	if err != nil {
		s.logger.Error("stock restore claim failed",
			zap.String("record_id", rec.ID.Hex()), zap.Error(err))
		return
	}
	if !claimed {
		return
	}
	if err := s.feeds.RestoreStock(ctx, rec.FeedID, rec.QuantityUsed); err != nil {
		s.logger.Error("stock restore failed, ledger diverged",
			zap.String("record_id", rec.ID.Hex()),
			zap.String("feed_id", rec.FeedID.Hex()),
			zap.Error(err))
		return
	}
	rec.StockRestored = true
	metrics.StockRestoredTotal.WithLabelValues(trigger).Inc()
}

// notifyAssignedVet enqueues a review request if the farmer has a vet.
func (s *Service) notifyAssignedVet(ctx context.Context, farmerID, recordID primitive.ObjectID) {
	farmer, err := s.users.GetByID(ctx, farmerID)
	if err != nil {
		s.logger.Warn("failed loading farmer for vet notification",
			zap.String("farmer_id", farmerID.Hex()), zap.Error(err))
		return
	}
	if farmer.AssignedVetID == nil {
		return
	}
	s.enqueue(ctx, models.OutboxReviewRequestEmail, recordID, *farmer.AssignedVetID)
}

// enqueue records a side effect for the outbox dispatcher. Failures are
// logged only; the committed transition stands.
func (s *Service) enqueue(ctx context.Context, kind models.OutboxKind, recordID, recipientID primitive.ObjectID) {
	event := models.OutboxEvent{
		ID:               uuid.NewString(),
		Kind:             kind,
		AdministrationID: recordID,
		RecipientID:      recipientID,
	}
	if err := s.outbox.Enqueue(ctx, event); err != nil {
		s.logger.Error("failed enqueueing outbox event",
			zap.String("kind", string(kind)),
			zap.String("record_id", recordID.Hex()),
			zap.Error(err))
	}
}

// writeAudit appends a compliance entry without blocking the request.
func (s *Service) writeAudit(eventType string, rec *models.FeedAdministration, actor models.Identity, changes map[string]any) {
	entry := models.AuditLog{
		EventType:       eventType,
		EntityType:      "feed_administration",
		EntityID:        rec.ID.Hex(),
		FarmerID:        rec.FarmerID,
		PerformedBy:     actor.ID,
		PerformedByRole: actor.Role,
		DataSnapshot:    rec,
		Changes:         changes,
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.auditLog.Append(ctx, entry); err != nil {
			s.logger.Warn("audit append failed",
				zap.String("event_type", eventType),
				zap.String("entity_id", entry.EntityID),
				zap.Error(err))
		}
	}()
}

func missingTags(requested []string, found []models.Animal) []string {
	have := make(map[string]struct{}, len(found))
	for _, a := range found {
		have[a.TagID] = struct{}{}
	}
	var missing []string
	for _, tag := range requested {
		if _, ok := have[tag]; !ok {
			missing = append(missing, tag)
		}
	}
	return missing
}
