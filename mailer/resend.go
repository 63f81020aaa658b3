package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const resendBaseURL = "https://api.resend.com"

// Confirmation holds everything the confirmation template needs. AmountCents
// is in minor currency units; the template formats it.
type Confirmation struct {
	FirstName      string
	OrderID        string
	DeviceQuantity int
	AmountCents    int64
	CustomerEmail  string
	OrderDate      string
}

// ResendClient dispatches transactional email through the Resend API.
type ResendClient struct {
	apiKey  string
	from    string
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

func NewResendClient(apiKey, from string, logger *zap.Logger) *ResendClient {
	return &ResendClient{
		apiKey:  apiKey,
		from:    from,
		baseURL: resendBaseURL,
		client:  &http.Client{Timeout: 15 * time.Second},
		logger:  logger,
	}
}

// NewResendClientWithBaseURL is used by tests to point the client at a local
// double.
func NewResendClientWithBaseURL(apiKey, from, baseURL string, logger *zap.Logger) *ResendClient {
	c := NewResendClient(apiKey, from, logger)
	c.baseURL = baseURL
	return c
}

type sendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

// SendConfirmation renders the preorder confirmation and dispatches it to the
// customer. Delivery is fire-and-forget from the workflow's perspective; a
// failure here never reverses a recorded order.
func (c *ResendClient) SendConfirmation(ctx context.Context, conf Confirmation) error {
	html, err := RenderConfirmation(conf)
	if err != nil {
		return fmt.Errorf("failed to render confirmation email: %w", err)
	}

	payload := sendRequest{
		From:    c.from,
		To:      []string{conf.CustomerEmail},
		Subject: "Your Neurolab Device Preorder is Confirmed!",
		HTML:    html,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal email request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/emails", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("resend request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Message string `json:"message"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Message != "" {
			return fmt.Errorf("resend send failed: %s", apiErr.Message)
		}
		return fmt.Errorf("resend send failed with status %d", resp.StatusCode)
	}

	c.logger.Info("Confirmation email sent",
		zap.String("to", conf.CustomerEmail),
		zap.String("order_id", conf.OrderID),
	)
	return nil
}

// FirstName takes the first whitespace token of a full name for the email
// greeting.
func FirstName(fullName string) string {
	fields := strings.Fields(fullName)
	if len(fields) == 0 {
		return fullName
	}
	return fields[0]
}
