package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"preorder-svc/models"

	"github.com/google/uuid"
)

// ErrVerification marks a failed verification call: the gateway was
// unreachable or rejected the request at the envelope level. A transaction
// that verified fine but carries status "failed" is not a verification error.
var ErrVerification = errors.New("payment verification failed")

// ErrNotSupported is returned by providers that do not implement an
// operation (the Stripe integration initiates checkouts only).
var ErrNotSupported = errors.New("operation not supported by provider")

// CreatePaymentRequest captures what a provider needs to open a checkout.
type CreatePaymentRequest struct {
	TxRef    string
	Amount   float64
	Currency string
	Name     string
	Email    string
	Quantity int
	// RedirectURL is where the gateway sends the customer after payment.
	RedirectURL string
	CancelURL   string
}

// CreatePaymentResponse is the redirect target handed back to the client.
type CreatePaymentResponse struct {
	TxRef string
	Link  string
}

// Provider abstracts the payment gateway. Implementations must not trust
// caller-supplied status claims; VerifyByReference is the only source of
// truth for whether a payment succeeded.
type Provider interface {
	Name() string
	CreatePayment(ctx context.Context, req CreatePaymentRequest) (*CreatePaymentResponse, error)
	VerifyByReference(ctx context.Context, txRef string) (*models.VerifiedTransaction, error)
	VerifyByID(ctx context.Context, providerID string) (*models.VerifiedTransaction, error)
}

// NewTxRef generates a fresh transaction reference. References are
// unpredictable and never repeat within or across process lifetimes.
func NewTxRef() string {
	suffix := strings.Split(uuid.NewString(), "-")[0]
	return fmt.Sprintf("NEUROLAB-%d-%s", time.Now().UnixMilli(), suffix)
}

// NormalizeEmail trims and lowercases an address once at intake so the same
// value flows through metadata, the store, and the mailer.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
