package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"preorder-svc/models"

	"go.uber.org/zap"
)

const flutterwaveBaseURL = "https://api.flutterwave.com/v3"

// FlutterwaveClient talks to the Flutterwave v3 REST API.
type FlutterwaveClient struct {
	secretKey string
	baseURL   string
	client    *http.Client
	logger    *zap.Logger
}

func NewFlutterwaveClient(secretKey string, logger *zap.Logger) *FlutterwaveClient {
	return &FlutterwaveClient{
		secretKey: secretKey,
		baseURL:   flutterwaveBaseURL,
		client:    &http.Client{Timeout: 15 * time.Second},
		logger:    logger,
	}
}

// NewFlutterwaveClientWithBaseURL is used by tests to point the client at a
// local double.
func NewFlutterwaveClientWithBaseURL(secretKey, baseURL string, logger *zap.Logger) *FlutterwaveClient {
	c := NewFlutterwaveClient(secretKey, logger)
	c.baseURL = baseURL
	return c
}

func (c *FlutterwaveClient) Name() string { return "flutterwave" }

type flwCustomer struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

type flwCustomizations struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Logo        string `json:"logo"`
}

type flwPaymentPayload struct {
	TxRef          string                 `json:"tx_ref"`
	Amount         float64                `json:"amount"`
	Currency       string                 `json:"currency"`
	RedirectURL    string                 `json:"redirect_url"`
	PaymentOptions string                 `json:"payment_options"`
	Customer       flwCustomer            `json:"customer"`
	Customizations flwCustomizations      `json:"customizations"`
	Meta           models.TransactionMeta `json:"meta"`
}

type flwEnvelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type flwPaymentData struct {
	Link string `json:"link"`
}

type flwTransactionData struct {
	ID       json.Number `json:"id"`
	TxRef    string      `json:"tx_ref"`
	Status   string      `json:"status"`
	Amount   float64     `json:"amount"`
	Currency string      `json:"currency"`
	Customer flwCustomer `json:"customer"`
	Meta     struct {
		CustomerName   string     `json:"customer_name"`
		CustomerEmail  string     `json:"customer_email"`
		DeviceQuantity flexString `json:"device_quantity"`
	} `json:"meta"`
}

// flexString accepts both JSON strings and numbers; the gateway is not
// consistent about which it echoes back in the metadata bag.
type flexString string

func (s *flexString) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		*s = flexString(str)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return err
	}
	*s = flexString(num.String())
	return nil
}

func (c *FlutterwaveClient) CreatePayment(ctx context.Context, req CreatePaymentRequest) (*CreatePaymentResponse, error) {
	payload := flwPaymentPayload{
		TxRef:          req.TxRef,
		Amount:         req.Amount,
		Currency:       req.Currency,
		RedirectURL:    req.RedirectURL,
		PaymentOptions: "card,banktransfer,ussd",
		Customer: flwCustomer{
			Email: req.Email,
			Name:  req.Name,
		},
		Customizations: flwCustomizations{
			Title:       "Neurolab Device Preorder",
			Description: fmt.Sprintf("Preorder for %d Neurolab Device(s) - Early Bird Special", req.Quantity),
			Logo:        "https://neurolab.cc/logo.png",
		},
		Meta: models.TransactionMeta{
			CustomerName:   req.Name,
			CustomerEmail:  req.Email,
			DeviceQuantity: strconv.Itoa(req.Quantity),
		},
	}

	env, err := c.do(ctx, http.MethodPost, "/payments", payload)
	if err != nil {
		return nil, err
	}
	if env.Status != "success" {
		return nil, fmt.Errorf("flutterwave payment init failed: %s", env.Message)
	}

	var data flwPaymentData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, fmt.Errorf("failed to decode payment link: %w", err)
	}

	c.logger.Info("Flutterwave payment initiated",
		zap.String("tx_ref", req.TxRef),
		zap.Float64("amount", req.Amount),
	)

	return &CreatePaymentResponse{TxRef: req.TxRef, Link: data.Link}, nil
}

func (c *FlutterwaveClient) VerifyByReference(ctx context.Context, txRef string) (*models.VerifiedTransaction, error) {
	path := "/transactions/verify_by_reference?tx_ref=" + url.QueryEscape(txRef)
	return c.verify(ctx, path)
}

func (c *FlutterwaveClient) VerifyByID(ctx context.Context, providerID string) (*models.VerifiedTransaction, error) {
	path := "/transactions/" + url.PathEscape(providerID) + "/verify"
	return c.verify(ctx, path)
}

func (c *FlutterwaveClient) verify(ctx context.Context, path string) (*models.VerifiedTransaction, error) {
	env, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrVerification, err)
	}
	if env.Status != "success" {
		// Envelope-level failure: the gateway could not verify the
		// reference at all.
		return nil, fmt.Errorf("%w: %s", ErrVerification, env.Message)
	}

	var data flwTransactionData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, fmt.Errorf("%w: decoding transaction: %v", ErrVerification, err)
	}

	return &models.VerifiedTransaction{
		TxRef:         data.TxRef,
		ProviderID:    data.ID.String(),
		Status:        data.Status,
		Amount:        data.Amount,
		Currency:      data.Currency,
		CustomerName:  data.Customer.Name,
		CustomerEmail: data.Customer.Email,
		Meta: models.TransactionMeta{
			CustomerName:   data.Meta.CustomerName,
			CustomerEmail:  data.Meta.CustomerEmail,
			DeviceQuantity: string(data.Meta.DeviceQuantity),
		},
	}, nil
}

func (c *FlutterwaveClient) do(ctx context.Context, method, path string, payload any) (*flwEnvelope, error) {
	var body *bytes.Buffer
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal payload: %w", err)
		}
		body = bytes.NewBuffer(data)
	} else {
		body = &bytes.Buffer{}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.secretKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("flutterwave request failed: %w", err)
	}
	defer resp.Body.Close()

	var env flwEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("failed to decode flutterwave response: %w", err)
	}
	return &env, nil
}
