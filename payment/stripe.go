package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"preorder-svc/models"

	"go.uber.org/zap"
)

const stripeBaseURL = "https://api.stripe.com/v1"

// StripeClient creates Checkout Sessions through Stripe's form-encoded REST
// API. Verification and webhooks go through Flutterwave; this client only
// initiates checkouts.
type StripeClient struct {
	secretKey string
	baseURL   string
	client    *http.Client
	logger    *zap.Logger
}

func NewStripeClient(secretKey string, logger *zap.Logger) *StripeClient {
	return &StripeClient{
		secretKey: secretKey,
		baseURL:   stripeBaseURL,
		client:    &http.Client{Timeout: 15 * time.Second},
		logger:    logger,
	}
}

// NewStripeClientWithBaseURL is used by tests to point the client at a local
// double.
func NewStripeClientWithBaseURL(secretKey, baseURL string, logger *zap.Logger) *StripeClient {
	c := NewStripeClient(secretKey, logger)
	c.baseURL = baseURL
	return c
}

func (c *StripeClient) Name() string { return "stripe" }

type stripeSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

type stripeError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func (c *StripeClient) CreatePayment(ctx context.Context, req CreatePaymentRequest) (*CreatePaymentResponse, error) {
	unitAmountCents := int64(math.Round(req.Amount / float64(req.Quantity) * 100))

	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("success_url", req.RedirectURL)
	form.Set("cancel_url", req.CancelURL)
	form.Set("customer_email", req.Email)
	form.Set("payment_method_types[0]", "card")
	form.Set("line_items[0][quantity]", strconv.Itoa(req.Quantity))
	form.Set("line_items[0][price_data][currency]", strings.ToLower(req.Currency))
	form.Set("line_items[0][price_data][unit_amount]", strconv.FormatInt(unitAmountCents, 10))
	form.Set("line_items[0][price_data][product_data][name]", "Neurolab Device Preorder")
	form.Set("line_items[0][price_data][product_data][description]",
		fmt.Sprintf("Preorder for %d Neurolab Device(s) - Early Bird Special", req.Quantity))
	form.Set("metadata[customer_name]", req.Name)
	form.Set("metadata[customer_email]", req.Email)
	form.Set("metadata[device_quantity]", strconv.Itoa(req.Quantity))
	form.Set("client_reference_id", req.TxRef)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/checkout/sessions",
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.Header.Set("Authorization", "Bearer "+c.secretKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("stripe request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr stripeError
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error.Message != "" {
			return nil, fmt.Errorf("stripe checkout failed: %s", apiErr.Error.Message)
		}
		return nil, fmt.Errorf("stripe checkout failed with status %d", resp.StatusCode)
	}

	var session stripeSession
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return nil, fmt.Errorf("failed to decode stripe session: %w", err)
	}

	c.logger.Info("Stripe checkout session created",
		zap.String("tx_ref", req.TxRef),
		zap.String("session_id", session.ID),
	)

	return &CreatePaymentResponse{TxRef: req.TxRef, Link: session.URL}, nil
}

func (c *StripeClient) VerifyByReference(ctx context.Context, txRef string) (*models.VerifiedTransaction, error) {
	return nil, ErrNotSupported
}

func (c *StripeClient) VerifyByID(ctx context.Context, providerID string) (*models.VerifiedTransaction, error) {
	return nil, ErrNotSupported
}
