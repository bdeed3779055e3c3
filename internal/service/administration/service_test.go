package administration

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/mamadbah2/amutrack/internal/domain/models"
	"github.com/mamadbah2/amutrack/internal/service/eligibility"
)

// --- fakes ---

type feedStoreFake struct {
	mu    sync.Mutex
	feeds map[primitive.ObjectID]*models.FeedBatch
}

func newFeedStoreFake() *feedStoreFake {
	return &feedStoreFake{feeds: make(map[primitive.ObjectID]*models.FeedBatch)}
}

func (f *feedStoreFake) add(feed *models.FeedBatch) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.feeds[feed.ID] = feed
}

func (f *feedStoreFake) GetByID(_ context.Context, id, ownerID primitive.ObjectID) (*models.FeedBatch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	feed, ok := f.feeds[id]
	if !ok || feed.FarmerID != ownerID {
		return nil, fmt.Errorf("feed %s: %w", id.Hex(), models.ErrNotFound)
	}
	clone := *feed
	return &clone, nil
}

// ConsumeStock mirrors the mongo repository's contract: the sufficiency
// check and the decrement happen under one lock.
func (f *feedStoreFake) ConsumeStock(_ context.Context, id, ownerID primitive.ObjectID, quantity float64) (*models.FeedBatch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	feed, ok := f.feeds[id]
	if !ok || feed.FarmerID != ownerID {
		return nil, fmt.Errorf("feed %s: %w", id.Hex(), models.ErrNotFound)
	}
	if !feed.Active || feed.RemainingQuantity < quantity {
		return nil, fmt.Errorf("feed %s: %w", id.Hex(), models.ErrInsufficientStock)
	}
	feed.RemainingQuantity -= quantity
	if feed.RemainingQuantity == 0 {
		feed.Active = false
	}
	clone := *feed
	return &clone, nil
}

func (f *feedStoreFake) RestoreStock(_ context.Context, id primitive.ObjectID, quantity float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	feed, ok := f.feeds[id]
	if !ok {
		return fmt.Errorf("feed %s: %w", id.Hex(), models.ErrNotFound)
	}
	feed.RemainingQuantity += quantity
	feed.Active = true
	return nil
}

func (f *feedStoreFake) remaining(id primitive.ObjectID) float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.feeds[id].RemainingQuantity
}

type recordStoreFake struct {
	mu        sync.Mutex
	recs      map[primitive.ObjectID]*models.FeedAdministration
	insertErr error
}

func newRecordStoreFake() *recordStoreFake {
	return &recordStoreFake{recs: make(map[primitive.ObjectID]*models.FeedAdministration)}
}

func (r *recordStoreFake) Insert(_ context.Context, rec *models.FeedAdministration) error {
	if r.insertErr != nil {
		return r.insertErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	rec.ID = primitive.NewObjectID()
	clone := *rec
	r.recs[rec.ID] = &clone
	return nil
}

func (r *recordStoreFake) GetByID(_ context.Context, id primitive.ObjectID) (*models.FeedAdministration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.recs[id]
	if !ok {
		return nil, fmt.Errorf("administration %s: %w", id.Hex(), models.ErrNotFound)
	}
	clone := *rec
	return &clone, nil
}

func (r *recordStoreFake) MarkApproved(_ context.Context, id, vetID primitive.ObjectID, at time.Time) error {
	return r.transition(id, models.StatusPendingApproval, func(rec *models.FeedAdministration) {
		rec.Status = models.StatusActive
		rec.Approved = true
		rec.ApprovalDate = &at
		rec.ApprovedBy = &vetID
	})
}

func (r *recordStoreFake) MarkRejected(_ context.Context, id, vetID primitive.ObjectID, reason, notes string) error {
	return r.transition(id, models.StatusPendingApproval, func(rec *models.FeedAdministration) {
		rec.Status = models.StatusRejected
		rec.RejectionReason = reason
		rec.RejectedBy = &vetID
		rec.Notes = notes
	})
}

func (r *recordStoreFake) MarkCompleted(_ context.Context, id primitive.ObjectID, at time.Time) error {
	return r.transition(id, models.StatusActive, func(rec *models.FeedAdministration) {
		rec.Status = models.StatusCompleted
		rec.EndDate = &at
	})
}

func (r *recordStoreFake) transition(id primitive.ObjectID, from models.AdministrationStatus, apply func(*models.FeedAdministration)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.recs[id]
	if !ok || rec.Status != from {
		return fmt.Errorf("administration %s not in status %s: %w", id.Hex(), from, models.ErrNotFound)
	}
	apply(rec)
	return nil
}

func (r *recordStoreFake) ClaimStockRestore(_ context.Context, id primitive.ObjectID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.recs[id]
	if !ok || rec.StockRestored {
		return false, nil
	}
	rec.StockRestored = true
	return true, nil
}

func (r *recordStoreFake) UpdateMutable(_ context.Context, id primitive.ObjectID, req models.UpdateAdministrationRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.recs[id]
	if !ok {
		return fmt.Errorf("administration %s: %w", id.Hex(), models.ErrNotFound)
	}
	if req.Notes != nil {
		rec.Notes = *req.Notes
	}
	if req.GroupName != nil {
		rec.GroupName = *req.GroupName
	}
	return nil
}

func (r *recordStoreFake) Delete(_ context.Context, id primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.recs[id]; !ok {
		return fmt.Errorf("administration %s: %w", id.Hex(), models.ErrNotFound)
	}
	delete(r.recs, id)
	return nil
}

type animalStoreFake struct {
	mu      sync.Mutex
	animals map[string]*models.Animal
}

func newAnimalStoreFake() *animalStoreFake {
	return &animalStoreFake{animals: make(map[string]*models.Animal)}
}

func (a *animalStoreFake) add(animal *models.Animal) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.animals[animal.TagID] = animal
}

func (a *animalStoreFake) FindByTagIDs(_ context.Context, ownerID primitive.ObjectID, tagIDs []string) ([]models.Animal, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []models.Animal
	for _, tag := range tagIDs {
		if animal, ok := a.animals[tag]; ok && animal.FarmerID == ownerID {
			out = append(out, *animal)
		}
	}
	return out, nil
}

func (a *animalStoreFake) ClearNewFlag(_ context.Context, ownerID primitive.ObjectID, tagIDs []string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, tag := range tagIDs {
		if animal, ok := a.animals[tag]; ok && animal.FarmerID == ownerID {
			animal.IsNew = false
		}
	}
	return nil
}

func (a *animalStoreFake) SetWithdrawal(_ context.Context, ownerID primitive.ObjectID, tagIDs []string, end time.Time, administrationID primitive.ObjectID) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, tag := range tagIDs {
		if animal, ok := a.animals[tag]; ok && animal.FarmerID == ownerID {
			animal.InWithdrawal = true
			endCopy := end
			animal.WithdrawalEndDate = &endCopy
			animal.ActiveFeedAdministrations = append(animal.ActiveFeedAdministrations, administrationID)
		}
	}
	return nil
}

func (a *animalStoreFake) ClearWithdrawal(_ context.Context, ownerID primitive.ObjectID, tagIDs []string, administrationID primitive.ObjectID, now time.Time) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, tag := range tagIDs {
		animal, ok := a.animals[tag]
		if !ok || animal.FarmerID != ownerID {
			continue
		}
		var kept []primitive.ObjectID
		for _, id := range animal.ActiveFeedAdministrations {
			if id != administrationID {
				kept = append(kept, id)
			}
		}
		animal.ActiveFeedAdministrations = kept
		if animal.InWithdrawal && animal.WithdrawalEndDate != nil && !animal.WithdrawalEndDate.After(now) {
			animal.InWithdrawal = false
		}
	}
	return nil
}

type userStoreFake struct {
	users map[primitive.ObjectID]*models.User
}

func (u *userStoreFake) GetByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	user, ok := u.users[id]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", id.Hex(), models.ErrNotFound)
	}
	clone := *user
	return &clone, nil
}

type auditStoreFake struct {
	mu      sync.Mutex
	entries []models.AuditLog
}

func (a *auditStoreFake) Append(_ context.Context, entry models.AuditLog) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, entry)
	return nil
}

type outboxStoreFake struct {
	mu      sync.Mutex
	events  []models.OutboxEvent
	failErr error
}

func (o *outboxStoreFake) Enqueue(_ context.Context, event models.OutboxEvent) error {
	if o.failErr != nil {
		return o.failErr
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, event)
	return nil
}

func (o *outboxStoreFake) kinds() []models.OutboxKind {
	o.mu.Lock()
	defer o.mu.Unlock()
	var kinds []models.OutboxKind
	for _, e := range o.events {
		kinds = append(kinds, e.Kind)
	}
	return kinds
}

// --- fixtures ---

type fixture struct {
	svc     *Service
	feeds   *feedStoreFake
	records *recordStoreFake
	animals *animalStoreFake
	outbox  *outboxStoreFake

	farmer models.Identity
	vet    models.Identity
	feedID primitive.ObjectID
	now    time.Time
}

func newFixture(t *testing.T, medicated bool, remaining float64) *fixture {
	t.Helper()

	farmerID := primitive.NewObjectID()
	vetID := primitive.NewObjectID()
	feedID := primitive.NewObjectID()
	now := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)

	feeds := newFeedStoreFake()
	feed := &models.FeedBatch{
		ID:                feedID,
		FarmerID:          farmerID,
		Name:              "Grower Mix",
		TotalQuantity:     remaining,
		RemainingQuantity: remaining,
		Unit:              "kg",
		Active:            true,
	}
	if medicated {
		feed.PrescriptionRequired = true
		feed.ActiveIngredient = "oxytetracycline"
		feed.Concentration = 200
		feed.WithdrawalPeriodDays = 7
	}
	feeds.add(feed)

	animals := newAnimalStoreFake()
	animals.add(&models.Animal{ID: primitive.NewObjectID(), TagID: "COW-1", FarmerID: farmerID})
	animals.add(&models.Animal{ID: primitive.NewObjectID(), TagID: "COW-2", FarmerID: farmerID, IsNew: true})

	users := &userStoreFake{users: map[primitive.ObjectID]*models.User{
		farmerID: {ID: farmerID, Name: "Mariama", Email: "mariama@farm.test", Role: models.RoleFarmer, AssignedVetID: &vetID},
		vetID:    {ID: vetID, Name: "Dr. Sow", Email: "sow@vets.test", Role: models.RoleVeterinarian},
	}}

	records := newRecordStoreFake()
	outboxStore := &outboxStoreFake{}

	svc := NewService(feeds, records, animals, users, &auditStoreFake{}, outboxStore, eligibility.NewChecker(nil), nil)
	svc.now = func() time.Time { return now }

	return &fixture{
		svc:     svc,
		feeds:   feeds,
		records: records,
		animals: animals,
		outbox:  outboxStore,
		farmer:  models.Identity{ID: farmerID, Role: models.RoleFarmer, Name: "Mariama"},
		vet:     models.Identity{ID: vetID, Role: models.RoleVeterinarian, Name: "Dr. Sow"},
		feedID:  feedID,
		now:     now,
	}
}

func (f *fixture) createRequest(quantity float64) models.CreateAdministrationRequest {
	return models.CreateAdministrationRequest{
		FeedID:       f.feedID.Hex(),
		AnimalTagIDs: []string{"COW-1", "COW-2"},
		Quantity:     quantity,
	}
}

// --- tests ---

func TestCreateMedicatedGoesPendingAndDeductsStock(t *testing.T) {
	f := newFixture(t, true, 100)

	rec, err := f.svc.Create(context.Background(), f.farmer, f.createRequest(60))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if rec.Status != models.StatusPendingApproval {
		t.Errorf("status = %s, want %s", rec.Status, models.StatusPendingApproval)
	}
	if got := f.feeds.remaining(f.feedID); got != 40 {
		t.Errorf("remaining = %.0f, want 40", got)
	}
	wantEnd := f.now.AddDate(0, 0, 7)
	if !rec.WithdrawalEndDate.Equal(wantEnd) {
		t.Errorf("withdrawal end = %v, want %v", rec.WithdrawalEndDate, wantEnd)
	}

	kinds := f.outbox.kinds()
	if len(kinds) != 2 || kinds[0] != models.OutboxConfirmationEmail || kinds[1] != models.OutboxReviewRequestEmail {
		t.Errorf("outbox kinds = %v, want confirmation + review request", kinds)
	}
}

func TestRejectRestoresStockExactlyOnce(t *testing.T) {
	f := newFixture(t, true, 100)

	rec, err := f.svc.Create(context.Background(), f.farmer, f.createRequest(60))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	rejected, err := f.svc.Reject(context.Background(), f.vet, rec.ID, "wrong dosage")
	if err != nil {
		t.Fatalf("Reject: %v", err)
	}
	if rejected.Status != models.StatusRejected {
		t.Errorf("status = %s, want %s", rejected.Status, models.StatusRejected)
	}
	if got := f.feeds.remaining(f.feedID); got != 100 {
		t.Errorf("remaining after reject = %.0f, want 100", got)
	}

	// A second claim must find the flag already set.
	claimed, err := f.records.ClaimStockRestore(context.Background(), rec.ID)
	if err != nil {
		t.Fatalf("ClaimStockRestore: %v", err)
	}
	if claimed {
		t.Error("stock restore claimed twice")
	}

	// Rejecting again is a wrong-state transition, not another restore.
	if _, err := f.svc.Reject(context.Background(), f.vet, rec.ID, "again"); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("second reject err = %v, want ErrInvalidTransition", err)
	}
	if got := f.feeds.remaining(f.feedID); got != 100 {
		t.Errorf("remaining after double reject = %.0f, want 100", got)
	}
}

func TestCreateAfterRestoreSeesCreditedStock(t *testing.T) {
	f := newFixture(t, true, 100)

	rec, err := f.svc.Create(context.Background(), f.farmer, f.createRequest(60))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := f.svc.Reject(context.Background(), f.vet, rec.ID, "wrong dosage"); err != nil {
		t.Fatalf("Reject: %v", err)
	}

	if _, err := f.svc.Create(context.Background(), f.farmer, f.createRequest(30)); err != nil {
		t.Fatalf("Create after restore: %v", err)
	}
	if got := f.feeds.remaining(f.feedID); got != 70 {
		t.Errorf("remaining = %.0f, want 70", got)
	}
}

func TestCreateInsufficientStockLeavesBatchUntouched(t *testing.T) {
	f := newFixture(t, true, 40)

	_, err := f.svc.Create(context.Background(), f.farmer, f.createRequest(150))
	if !errors.Is(err, models.ErrInsufficientStock) {
		t.Fatalf("err = %v, want ErrInsufficientStock", err)
	}
	if got := f.feeds.remaining(f.feedID); got != 40 {
		t.Errorf("remaining = %.0f, want 40", got)
	}
	if len(f.records.recs) != 0 {
		t.Errorf("records created = %d, want 0", len(f.records.recs))
	}
}

func TestCreateNonMedicatedActivatesImmediately(t *testing.T) {
	f := newFixture(t, false, 100)

	// Even an animal under withdrawal may receive non-medicated feed.
	end := f.now.AddDate(0, 0, 3)
	f.animals.add(&models.Animal{
		ID: primitive.NewObjectID(), TagID: "COW-3", FarmerID: f.farmer.ID,
		InWithdrawal: true, WithdrawalEndDate: &end,
	})

	req := f.createRequest(20)
	req.AnimalTagIDs = append(req.AnimalTagIDs, "COW-3")

	rec, err := f.svc.Create(context.Background(), f.farmer, req)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if rec.Status != models.StatusActive {
		t.Errorf("status = %s, want %s", rec.Status, models.StatusActive)
	}

	for _, kind := range f.outbox.kinds() {
		if kind == models.OutboxReviewRequestEmail {
			t.Error("review request enqueued for non-medicated feed")
		}
	}
}

func TestCreateAllOrNothingOnIneligibleAnimal(t *testing.T) {
	f := newFixture(t, true, 100)

	end := f.now.AddDate(0, 0, 5)
	f.animals.add(&models.Animal{
		ID: primitive.NewObjectID(), TagID: "COW-3", FarmerID: f.farmer.ID,
		InWithdrawal: true, WithdrawalEndDate: &end,
	})

	req := f.createRequest(60)
	req.AnimalTagIDs = []string{"COW-1", "COW-3"}

	_, err := f.svc.Create(context.Background(), f.farmer, req)
	var ineligible *IneligibleAnimalsError
	if !errors.As(err, &ineligible) {
		t.Fatalf("err = %v, want IneligibleAnimalsError", err)
	}
	if len(ineligible.Animals) != 1 || ineligible.Animals[0].TagID != "COW-3" {
		t.Errorf("ineligible = %+v, want only COW-3", ineligible.Animals)
	}
	if got := f.feeds.remaining(f.feedID); got != 100 {
		t.Errorf("remaining = %.0f, want 100 (no deduction)", got)
	}
	if len(f.records.recs) != 0 {
		t.Errorf("records created = %d, want 0", len(f.records.recs))
	}
}

func TestApproveFlagsWithdrawalAndEnqueuesPrescription(t *testing.T) {
	f := newFixture(t, true, 100)

	rec, err := f.svc.Create(context.Background(), f.farmer, f.createRequest(60))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	approved, err := f.svc.Approve(context.Background(), f.vet, rec.ID)
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if approved.Status != models.StatusActive || !approved.Approved {
		t.Errorf("approved = %+v, want active and approved", approved)
	}
	if approved.ApprovedBy == nil || *approved.ApprovedBy != f.vet.ID {
		t.Error("approving vet not stamped")
	}

	animals, _ := f.animals.FindByTagIDs(context.Background(), f.farmer.ID, []string{"COW-1", "COW-2"})
	for _, animal := range animals {
		if !animal.InWithdrawal {
			t.Errorf("animal %s not flagged in withdrawal", animal.TagID)
		}
		if animal.WithdrawalEndDate == nil || !animal.WithdrawalEndDate.Equal(rec.WithdrawalEndDate) {
			t.Errorf("animal %s withdrawal end not set to record's", animal.TagID)
		}
		if len(animal.ActiveFeedAdministrations) != 1 || animal.ActiveFeedAdministrations[0] != rec.ID {
			t.Errorf("animal %s not linked to administration", animal.TagID)
		}
		if animal.IsNew {
			t.Errorf("animal %s still marked new", animal.TagID)
		}
	}

	kinds := f.outbox.kinds()
	if kinds[len(kinds)-1] != models.OutboxPrescriptionEmail {
		t.Errorf("last outbox kind = %s, want prescription email", kinds[len(kinds)-1])
	}
}

func TestApproveTwiceFailsSecondTime(t *testing.T) {
	f := newFixture(t, true, 100)

	rec, err := f.svc.Create(context.Background(), f.farmer, f.createRequest(60))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := f.svc.Approve(context.Background(), f.vet, rec.ID); err != nil {
		t.Fatalf("first Approve: %v", err)
	}

	before := len(f.outbox.kinds())
	if _, err := f.svc.Approve(context.Background(), f.vet, rec.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("second approve err = %v, want ErrInvalidTransition", err)
	}
	if after := len(f.outbox.kinds()); after != before {
		t.Errorf("duplicate side effects enqueued: %d -> %d", before, after)
	}
}

func TestApproveRevalidatesEligibility(t *testing.T) {
	f := newFixture(t, true, 100)

	rec, err := f.svc.Create(context.Background(), f.farmer, f.createRequest(60))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	// COW-1 enters a withdrawal period from another treatment before the vet
	// gets to the record.
	end := f.now.AddDate(0, 0, 10)
	f.animals.add(&models.Animal{
		ID: primitive.NewObjectID(), TagID: "COW-1", FarmerID: f.farmer.ID,
		InWithdrawal: true, WithdrawalEndDate: &end,
	})

	_, err = f.svc.Approve(context.Background(), f.vet, rec.ID)
	var ineligible *IneligibleAnimalsError
	if !errors.As(err, &ineligible) {
		t.Fatalf("err = %v, want IneligibleAnimalsError", err)
	}

	got, _ := f.records.GetByID(context.Background(), rec.ID)
	if got.Status != models.StatusPendingApproval {
		t.Errorf("status = %s, want still pending", got.Status)
	}
}

func TestRejectRequiresReason(t *testing.T) {
	f := newFixture(t, true, 100)

	rec, err := f.svc.Create(context.Background(), f.farmer, f.createRequest(60))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := f.svc.Reject(context.Background(), f.vet, rec.ID, "  "); !errors.Is(err, ErrMissingReason) {
		t.Errorf("err = %v, want ErrMissingReason", err)
	}
}

func TestCompleteStampsEndDateWithoutLedgerChange(t *testing.T) {
	f := newFixture(t, false, 100)

	rec, err := f.svc.Create(context.Background(), f.farmer, f.createRequest(20))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	completed, err := f.svc.Complete(context.Background(), f.farmer, rec.ID)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if completed.Status != models.StatusCompleted || completed.EndDate == nil {
		t.Errorf("completed = %+v, want completed with end date", completed)
	}
	if got := f.feeds.remaining(f.feedID); got != 80 {
		t.Errorf("remaining = %.0f, want 80 (completion returns nothing)", got)
	}
}

func TestCompleteOnlyFromActive(t *testing.T) {
	f := newFixture(t, true, 100)

	rec, err := f.svc.Create(context.Background(), f.farmer, f.createRequest(60))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := f.svc.Complete(context.Background(), f.farmer, rec.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("complete pending err = %v, want ErrInvalidTransition", err)
	}
}

func TestDeletePendingRestoresStock(t *testing.T) {
	f := newFixture(t, true, 100)

	rec, err := f.svc.Create(context.Background(), f.farmer, f.createRequest(60))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := f.svc.Delete(context.Background(), f.farmer, rec.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if got := f.feeds.remaining(f.feedID); got != 100 {
		t.Errorf("remaining = %.0f, want 100", got)
	}
	if _, err := f.records.GetByID(context.Background(), rec.ID); !errors.Is(err, models.ErrNotFound) {
		t.Error("record still present after delete")
	}
}

func TestDeleteActiveRefused(t *testing.T) {
	f := newFixture(t, false, 100)

	rec, err := f.svc.Create(context.Background(), f.farmer, f.createRequest(20))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	err = f.svc.Delete(context.Background(), f.farmer, rec.ID)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("err = %v, want ErrInvalidTransition", err)
	}
	if got := f.feeds.remaining(f.feedID); got != 80 {
		t.Errorf("remaining = %.0f, want 80 (unchanged)", got)
	}
	if _, err := f.records.GetByID(context.Background(), rec.ID); err != nil {
		t.Error("record missing after refused delete")
	}
}

func TestConcurrentCreatesNeverOverdraw(t *testing.T) {
	f := newFixture(t, false, 50)

	const attempts = 10
	var wg sync.WaitGroup
	results := make(chan error, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Create(context.Background(), f.farmer, f.createRequest(10))
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var succeeded, refused int
	for err := range results {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, models.ErrInsufficientStock):
			refused++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}

	if succeeded != 5 || refused != 5 {
		t.Errorf("succeeded=%d refused=%d, want 5/5", succeeded, refused)
	}
	if got := f.feeds.remaining(f.feedID); got != 0 {
		t.Errorf("remaining = %.0f, want 0", got)
	}
}

func TestOutboxFailureDoesNotBlockCreate(t *testing.T) {
	f := newFixture(t, true, 100)
	f.outbox.failErr = errors.New("outbox collection unavailable")

	rec, err := f.svc.Create(context.Background(), f.farmer, f.createRequest(60))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if rec.Status != models.StatusPendingApproval {
		t.Errorf("status = %s, want pending despite outbox failure", rec.Status)
	}
}

func TestCompensatingRestoreOnInsertFailure(t *testing.T) {
	f := newFixture(t, true, 100)
	f.records.insertErr = errors.New("write concern failure")

	_, err := f.svc.Create(context.Background(), f.farmer, f.createRequest(60))
	if err == nil {
		t.Fatal("Create succeeded despite insert failure")
	}
	if got := f.feeds.remaining(f.feedID); got != 100 {
		t.Errorf("remaining = %.0f, want 100 (compensated)", got)
	}
}

func TestRoleGuards(t *testing.T) {
	f := newFixture(t, true, 100)

	if _, err := f.svc.Create(context.Background(), f.vet, f.createRequest(10)); !errors.Is(err, ErrForbidden) {
		t.Errorf("vet create err = %v, want ErrForbidden", err)
	}

	rec, err := f.svc.Create(context.Background(), f.farmer, f.createRequest(10))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := f.svc.Approve(context.Background(), f.farmer, rec.ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("farmer approve err = %v, want ErrForbidden", err)
	}
	if _, err := f.svc.Reject(context.Background(), f.farmer, rec.ID, "nope"); !errors.Is(err, ErrForbidden) {
		t.Errorf("farmer reject err = %v, want ErrForbidden", err)
	}

	other := models.Identity{ID: primitive.NewObjectID(), Role: models.RoleFarmer}
	if err := f.svc.Delete(context.Background(), other, rec.ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("stranger delete err = %v, want ErrForbidden", err)
	}
}

func TestCreateUnknownAnimalFails(t *testing.T) {
	f := newFixture(t, true, 100)

	req := f.createRequest(10)
	req.AnimalTagIDs = []string{"COW-1", "GHOST-9"}

	_, err := f.svc.Create(context.Background(), f.farmer, req)
	if !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if got := f.feeds.remaining(f.feedID); got != 100 {
		t.Errorf("remaining = %.0f, want 100", got)
	}
}
