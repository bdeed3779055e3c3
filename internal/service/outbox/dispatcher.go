// Package outbox drains the notification side effects the workflow records
// alongside its transitions. Delivery happens strictly after the transition
// has committed, so a mailer or render failure can only ever cost a retry,
// never a rollback.
package outbox

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/mamadbah2/amutrack/internal/domain/models"
	"github.com/mamadbah2/amutrack/internal/metrics"
	"github.com/mamadbah2/amutrack/pkg/clients/docrender"
	"github.com/mamadbah2/amutrack/pkg/clients/mailer"
)

const defaultBatchSize = 20

// EventStore is the slice of the outbox repository the dispatcher needs.
type EventStore interface {
	FetchPending(ctx context.Context, limit int64) ([]models.OutboxEvent, error)
	MarkSent(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, cause string, maxAttempts int) error
}

// RecordStore loads administrations and records delivery failures on them.
type RecordStore interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.FeedAdministration, error)
	SetEmailError(ctx context.Context, id primitive.ObjectID, message string) error
}

// UserStore resolves recipients.
type UserStore interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
}

// FeedStore loads the batch referenced by a record, for email content.
type FeedStore interface {
	GetByID(ctx context.Context, id, ownerID primitive.ObjectID) (*models.FeedBatch, error)
}

// Dispatcher delivers pending outbox events.
type Dispatcher struct {
	events      EventStore
	records     RecordStore
	users       UserStore
	feeds       FeedStore
	mail        mailer.Client
	renderer    docrender.Client
	logger      *zap.Logger
	maxAttempts int
}

// NewDispatcher wires an outbox dispatcher.
func NewDispatcher(events EventStore, records RecordStore, users UserStore, feeds FeedStore, mail mailer.Client, renderer docrender.Client, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		events:      events,
		records:     records,
		users:       users,
		feeds:       feeds,
		mail:        mail,
		renderer:    renderer,
		logger:      logger,
		maxAttempts: 5,
	}
}

// Drain processes one batch of pending events. Called by the scheduler; each
// event fails or succeeds on its own.
func (d *Dispatcher) Drain(ctx context.Context) {
	events, err := d.events.FetchPending(ctx, defaultBatchSize)
	if err != nil {
		d.logger.Error("failed fetching pending outbox events", zap.Error(err))
		return
	}

	for _, event := range events {
		if err := d.deliver(ctx, event); err != nil {
			d.logger.Warn("outbox delivery failed",
				zap.String("event_id", event.ID),
				zap.String("kind", string(event.Kind)),
				zap.Int("attempts", event.Attempts+1),
				zap.Error(err))
			metrics.OutboxDeliveriesTotal.WithLabelValues(string(event.Kind), "error").Inc()

			if markErr := d.events.MarkFailed(ctx, event.ID, err.Error(), d.maxAttempts); markErr != nil {
				d.logger.Error("failed marking outbox event", zap.String("event_id", event.ID), zap.Error(markErr))
			}
			// Surface the failure on the record so the farmer-facing API shows it.
			if setErr := d.records.SetEmailError(ctx, event.AdministrationID, err.Error()); setErr != nil {
				d.logger.Error("failed recording email error", zap.String("event_id", event.ID), zap.Error(setErr))
			}
			continue
		}

		metrics.OutboxDeliveriesTotal.WithLabelValues(string(event.Kind), "ok").Inc()
		if err := d.events.MarkSent(ctx, event.ID); err != nil {
			d.logger.Error("failed marking outbox event sent", zap.String("event_id", event.ID), zap.Error(err))
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, event models.OutboxEvent) error {
	rec, err := d.records.GetByID(ctx, event.AdministrationID)
	if err != nil {
		return fmt.Errorf("load record: %w", err)
	}
	recipient, err := d.users.GetByID(ctx, event.RecipientID)
	if err != nil {
		return fmt.Errorf("load recipient: %w", err)
	}
	feed, err := d.feeds.GetByID(ctx, rec.FeedID, rec.FarmerID)
	if err != nil {
		return fmt.Errorf("load feed: %w", err)
	}

	msg := mailer.Message{To: recipient.Email}

	switch event.Kind {
	case models.OutboxConfirmationEmail:
		msg.Subject = fmt.Sprintf("Feed administration recorded: %s", feed.Name)
		msg.HTML = fmt.Sprintf("<p>Your administration of %.2f %s of %s on %d animal(s) was recorded with status %s.</p>",
			rec.QuantityUsed, feed.Unit, feed.Name, len(rec.AnimalTagIDs), rec.Status)
		pdf, err := d.render(ctx, "administration_confirmation", rec, feed)
		if err != nil {
			return err
		}
		msg.Attachments = []mailer.Attachment{{Filename: "confirmation.pdf", ContentType: "application/pdf", Content: pdf}}

	case models.OutboxReviewRequestEmail:
		msg.Subject = fmt.Sprintf("Review requested: medicated feed administration %s", rec.ID.Hex())
		msg.HTML = fmt.Sprintf("<p>A medicated administration of %s (%s) awaits your approval for %d animal(s).</p>",
			feed.Name, feed.ActiveIngredient, len(rec.AnimalTagIDs))

	case models.OutboxPrescriptionEmail:
		msg.Subject = fmt.Sprintf("Prescription approved: %s", feed.Name)
		msg.HTML = fmt.Sprintf("<p>Your administration of %s was approved. The withdrawal period ends %s.</p>",
			feed.Name, rec.WithdrawalEndDate.Format("2006-01-02"))
		pdf, err := d.render(ctx, "prescription", rec, feed)
		if err != nil {
			return err
		}
		msg.Attachments = []mailer.Attachment{{Filename: "prescription.pdf", ContentType: "application/pdf", Content: pdf}}

	case models.OutboxRejectionEmail:
		msg.Subject = fmt.Sprintf("Administration rejected: %s", feed.Name)
		msg.HTML = fmt.Sprintf("<p>Your administration of %s was rejected: %s</p>", feed.Name, rec.RejectionReason)

	default:
		return fmt.Errorf("unsupported outbox kind %s", event.Kind)
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if _, err := d.mail.Send(ctxWithTimeout, msg); err != nil {
		return err
	}
	return nil
}

func (d *Dispatcher) render(ctx context.Context, template string, rec *models.FeedAdministration, feed *models.FeedBatch) ([]byte, error) {
	pdf, err := d.renderer.Render(ctx, docrender.RenderRequest{
		Template: template,
		Data: map[string]any{
			"recordId":          rec.ID.Hex(),
			"feedName":          feed.Name,
			"activeIngredient":  feed.ActiveIngredient,
			"quantity":          rec.QuantityUsed,
			"unit":              feed.Unit,
			"animalTagIds":      rec.AnimalTagIDs,
			"startDate":         rec.StartDate,
			"withdrawalEndDate": rec.WithdrawalEndDate,
			"status":            rec.Status,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", template, err)
	}
	return pdf, nil
}
