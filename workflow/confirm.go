package workflow

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"preorder-svc/kafka"
	"preorder-svc/mailer"
	"preorder-svc/middleware"
	"preorder-svc/models"
	"preorder-svc/payment"

	"github.com/IBM/sarama"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Workflow error taxonomy. Handlers map these onto HTTP statuses.
var (
	ErrMissingSignature = errors.New("no signature provided")
	ErrBadSignature     = errors.New("invalid signature")
	ErrNotConfigured    = errors.New("webhook secret not configured")
	ErrMissingMetadata  = errors.New("missing required payment metadata")
	ErrPersistence      = errors.New("failed to record order")
)

// Verifier is the slice of the payment provider the workflow needs.
type Verifier interface {
	VerifyByReference(ctx context.Context, txRef string) (*models.VerifiedTransaction, error)
	VerifyByID(ctx context.Context, providerID string) (*models.VerifiedTransaction, error)
}

// Recorder persists one order record per verified transaction.
type Recorder interface {
	CreateOrder(ctx context.Context, order *models.Order) error
}

// Notifier dispatches the confirmation email.
type Notifier interface {
	SendConfirmation(ctx context.Context, conf mailer.Confirmation) error
}

// Reservations is the durable idempotency and audit ledger.
type Reservations interface {
	Reserve(ctx context.Context, txRef, providerID string, amount float64, customerEmail string) (bool, error)
	Release(ctx context.Context, txRef string) error
	RecordAudit(ctx context.Context, txRef, step, detail string)
}

// ReplayGuard is the short-lived in-flight claim that narrows the
// webhook-vs-poll race window. It may be nil; the ledger alone still
// guarantees at-most-once recording.
type ReplayGuard interface {
	Acquire(ctx context.Context, txRef string) (bool, error)
	Release(ctx context.Context, txRef string) error
}

// WebhookEvent is the push-style confirmation trigger. Its payload is never
// trusted as proof of payment; the workflow always re-verifies with the
// gateway.
type WebhookEvent struct {
	Event string `json:"event"`
	Data  struct {
		ID     int64   `json:"id"`
		TxRef  string  `json:"tx_ref"`
		Status string  `json:"status"`
		Amount float64 `json:"amount"`
	} `json:"data"`
}

// Confirmer coordinates the confirmation workflow: authenticate trigger,
// re-verify with the gateway, extract identity, persist, notify. All
// collaborators are injected.
type Confirmer struct {
	verifier      Verifier
	recorder      Recorder
	notifier      Notifier
	ledger        Reservations
	guard         ReplayGuard
	producer      sarama.SyncProducer
	topic         string
	webhookSecret string
	logger        *zap.Logger
}

func NewConfirmer(
	verifier Verifier,
	recorder Recorder,
	notifier Notifier,
	ledger Reservations,
	guard ReplayGuard,
	producer sarama.SyncProducer,
	topic string,
	webhookSecret string,
	logger *zap.Logger,
) *Confirmer {
	return &Confirmer{
		verifier:      verifier,
		recorder:      recorder,
		notifier:      notifier,
		ledger:        ledger,
		guard:         guard,
		producer:      producer,
		topic:         topic,
		webhookSecret: webhookSecret,
		logger:        logger,
	}
}

// ConfirmWebhook handles a push-style trigger. The signature must exactly
// equal the configured shared secret; anything else aborts before any
// downstream call.
func (c *Confirmer) ConfirmWebhook(ctx context.Context, signature string, event WebhookEvent) (*models.ConfirmResult, error) {
	ctx, span := otel.Tracer("preorder-service").Start(ctx, "ConfirmWebhook")
	defer span.End()

	if signature == "" {
		return nil, ErrMissingSignature
	}
	if c.webhookSecret == "" {
		c.logger.Error("Webhook secret not configured")
		return nil, ErrNotConfigured
	}
	if signature != c.webhookSecret {
		c.logger.Warn("Webhook signature mismatch", zap.String("tx_ref", event.Data.TxRef))
		return nil, ErrBadSignature
	}

	span.SetAttributes(attribute.String("event", event.Event))

	// Only completed charges drive the workflow; every other event is
	// acknowledged without side effects.
	if event.Event != "charge.completed" || event.Data.Status != models.TxStatusSuccessful {
		return &models.ConfirmResult{
			Status: event.Data.Status,
			TxRef:  event.Data.TxRef,
		}, nil
	}

	var tx *models.VerifiedTransaction
	var err error
	if event.Data.ID != 0 {
		tx, err = c.verifier.VerifyByID(ctx, strconv.FormatInt(event.Data.ID, 10))
	} else {
		tx, err = c.verifier.VerifyByReference(ctx, event.Data.TxRef)
	}
	if err != nil {
		return nil, err
	}

	return c.confirm(ctx, tx)
}

// ConfirmByReference handles a pull-style trigger: the client saw the
// gateway redirect and asks for verification by reference.
func (c *Confirmer) ConfirmByReference(ctx context.Context, txRef string) (*models.ConfirmResult, error) {
	ctx, span := otel.Tracer("preorder-service").Start(ctx, "ConfirmByReference")
	defer span.End()

	span.SetAttributes(attribute.String("tx_ref", txRef))

	tx, err := c.verifier.VerifyByReference(ctx, txRef)
	if err != nil {
		return nil, err
	}

	return c.confirm(ctx, tx)
}

func (c *Confirmer) confirm(ctx context.Context, tx *models.VerifiedTransaction) (*models.ConfirmResult, error) {
	ctx, span := otel.Tracer("preorder-service").Start(ctx, "ConfirmPayment")
	defer span.End()

	result := &models.ConfirmResult{
		Status:        tx.Status,
		Amount:        tx.Amount,
		CustomerEmail: tx.CustomerEmail,
		CustomerName:  tx.CustomerName,
		TxRef:         tx.TxRef,
		ProviderID:    tx.ProviderID,
	}

	span.SetAttributes(
		attribute.String("tx_ref", tx.TxRef),
		attribute.String("tx.status", tx.Status),
		attribute.Float64("tx.amount", tx.Amount),
	)

	// Failed and cancelled transactions pass through with no side effects.
	if tx.Status != models.TxStatusSuccessful {
		middleware.RecordConfirmation(tx.Status)
		c.logger.Info("Transaction not successful, no record written",
			zap.String("tx_ref", tx.TxRef),
			zap.String("status", tx.Status),
		)
		return result, nil
	}

	name, email, quantity, err := extractIdentity(tx)
	if err != nil {
		middleware.RecordConfirmation("missing_metadata")
		c.logger.Error("Missing required data in verified transaction",
			zap.String("tx_ref", tx.TxRef),
			zap.Error(err),
		)
		return nil, err
	}
	result.CustomerName = name
	result.CustomerEmail = email

	if c.guard != nil {
		acquired, err := c.guard.Acquire(ctx, tx.TxRef)
		if err != nil {
			// Redis being down must not block confirmations; the
			// ledger still enforces at-most-once.
			c.logger.Warn("Replay guard unavailable", zap.Error(err))
		} else if !acquired {
			// The winner holds the guard. If its persistence later fails,
			// it releases both guard and ledger reservation, so the next
			// delivery of this reference retries from scratch.
			middleware.RecordConfirmation("in_flight")
			c.logger.Info("Confirmation already in flight",
				zap.String("tx_ref", tx.TxRef),
			)
			return result, nil
		} else {
			defer func() {
				if err := c.guard.Release(ctx, tx.TxRef); err != nil {
					c.logger.Warn("Failed to release replay guard", zap.Error(err))
				}
			}()
		}
	}

	fresh, err := c.ledger.Reserve(ctx, tx.TxRef, tx.ProviderID, tx.Amount, email)
	if err != nil {
		middleware.RecordConfirmation("ledger_error")
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if !fresh {
		// Already recorded: replaying the trigger is a success, not an
		// error, and writes nothing.
		middleware.RecordConfirmation("duplicate")
		c.logger.Info("Transaction already confirmed",
			zap.String("tx_ref", tx.TxRef),
		)
		return result, nil
	}

	order := &models.Order{
		Name:           name,
		Email:          email,
		DeviceQuantity: quantity,
		Amount:         tx.Amount,
		OrderID:        tx.TxRef,
		Status:         models.OrderStatusWaiting,
		CreatedAt:      time.Now(),
	}

	if err := c.recorder.CreateOrder(ctx, order); err != nil {
		span.RecordError(err)
		middleware.RecordConfirmation("record_failed")
		c.ledger.RecordAudit(ctx, tx.TxRef, "record", err.Error())
		// Drop the reservation so a later retry can attempt the write
		// again; the payment stays verified but unrecorded until then.
		if relErr := c.ledger.Release(ctx, tx.TxRef); relErr != nil {
			c.logger.Error("Failed to release reservation after record failure",
				zap.String("tx_ref", tx.TxRef),
				zap.Error(relErr),
			)
		}
		c.logger.Error("Failed to record order",
			zap.String("tx_ref", tx.TxRef),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	// The order record is the authoritative state. A notification failure
	// past this point is audited and swallowed, never surfaced as a
	// confirmation failure.
	conf := mailer.Confirmation{
		FirstName:      mailer.FirstName(name),
		OrderID:        tx.TxRef,
		DeviceQuantity: quantity,
		AmountCents:    int64(math.Round(tx.Amount * 100)),
		CustomerEmail:  email,
		OrderDate:      time.Now().Format("January 2, 2006"),
	}
	if err := c.notifier.SendConfirmation(ctx, conf); err != nil {
		middleware.RecordNotification("failed")
		c.ledger.RecordAudit(ctx, tx.TxRef, "notify", err.Error())
		c.logger.Error("Failed to send confirmation email",
			zap.String("tx_ref", tx.TxRef),
			zap.String("email", email),
			zap.Error(err),
		)
	} else {
		middleware.RecordNotification("sent")
	}

	if c.producer != nil {
		event := models.OrderConfirmedEvent{
			TxRef:          tx.TxRef,
			ProviderID:     tx.ProviderID,
			CustomerName:   name,
			CustomerEmail:  email,
			DeviceQuantity: quantity,
			Amount:         tx.Amount,
			EventType:      "order_confirmed",
		}
		if err := kafka.PublishOrderEvent(ctx, c.producer, c.topic, event, c.logger); err != nil {
			c.logger.Error("Failed to publish order_confirmed event", zap.Error(err))
			// Don't fail the request, but log the error
		}
	}

	middleware.RecordConfirmation("confirmed")
	c.logger.Info("Order confirmed",
		zap.String("tx_ref", tx.TxRef),
		zap.String("email", email),
		zap.Int("quantity", quantity),
		zap.Float64("amount", tx.Amount),
	)

	return result, nil
}

// extractIdentity pulls customer name, email and device quantity from the
// verified transaction, preferring the metadata bag over the gateway's
// customer record. A missing field aborts the confirmation; no partial
// record is ever written.
func extractIdentity(tx *models.VerifiedTransaction) (name, email string, quantity int, err error) {
	name = strings.TrimSpace(tx.Meta.CustomerName)
	if name == "" {
		name = strings.TrimSpace(tx.CustomerName)
	}
	email = tx.Meta.CustomerEmail
	if email == "" {
		email = tx.CustomerEmail
	}
	email = payment.NormalizeEmail(email)

	if tx.Meta.DeviceQuantity != "" {
		quantity, err = strconv.Atoi(tx.Meta.DeviceQuantity)
		if err != nil {
			return "", "", 0, fmt.Errorf("%w: bad device_quantity %q", ErrMissingMetadata, tx.Meta.DeviceQuantity)
		}
	}

	if name == "" || email == "" || quantity <= 0 {
		return "", "", 0, ErrMissingMetadata
	}
	return name, email, quantity, nil
}
