package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"preorder-svc/models"

	"go.uber.org/zap"
)

const (
	notionBaseURL = "https://api.notion.com/v1"
	notionVersion = "2022-06-28"
)

// ErrOrderNotFound is returned by FindOrderByRef when no page matches the
// transaction reference. Callers surface it as a not-found outcome, not a
// server error.
var ErrOrderNotFound = errors.New("order not found")

// Client reads and writes order records in a Notion database. The database
// is append-only from this service's perspective; later status transitions
// happen out of band.
type Client struct {
	secret     string
	databaseID string
	baseURL    string
	client     *http.Client
	logger     *zap.Logger
}

func NewClient(secret, databaseID string, logger *zap.Logger) *Client {
	return &Client{
		secret:     secret,
		databaseID: databaseID,
		baseURL:    notionBaseURL,
		client:     &http.Client{Timeout: 15 * time.Second},
		logger:     logger,
	}
}

// NewClientWithBaseURL is used by tests to point the client at a local
// double.
func NewClientWithBaseURL(secret, databaseID, baseURL string, logger *zap.Logger) *Client {
	c := NewClient(secret, databaseID, logger)
	c.baseURL = baseURL
	return c
}

// Property schema of the orders database. The names are fixed; a mismatch is
// a persistence error, not something this client papers over.
type titleText struct {
	Text struct {
		Content string `json:"content"`
	} `json:"text"`
}

func newTitleText(content string) titleText {
	var t titleText
	t.Text.Content = content
	return t
}

type pageProperties struct {
	Name struct {
		Title []titleText `json:"title"`
	} `json:"Name"`
	Email struct {
		Email string `json:"email"`
	} `json:"Email"`
	PreOrders struct {
		Number int `json:"number"`
	} `json:"PreOrders"`
	Amount struct {
		Number float64 `json:"number"`
	} `json:"amount"`
	OrderID struct {
		RichText []titleText `json:"rich_text"`
	} `json:"order_id"`
	Status struct {
		Status struct {
			Name string `json:"name"`
		} `json:"status"`
	} `json:"Status"`
}

type createPageRequest struct {
	Parent struct {
		DatabaseID string `json:"database_id"`
	} `json:"parent"`
	Properties pageProperties `json:"properties"`
}

// CreateOrder appends one order record. The caller guarantees at-most-once
// semantics per transaction reference through the confirmation ledger.
func (c *Client) CreateOrder(ctx context.Context, order *models.Order) error {
	var req createPageRequest
	req.Parent.DatabaseID = c.databaseID
	req.Properties.Name.Title = []titleText{newTitleText(order.Name)}
	req.Properties.Email.Email = order.Email
	req.Properties.PreOrders.Number = order.DeviceQuantity
	req.Properties.Amount.Number = order.Amount
	req.Properties.OrderID.RichText = []titleText{newTitleText(order.OrderID)}
	req.Properties.Status.Status.Name = order.Status

	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal page request: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPost, "/pages", body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("notion page create failed: %s", notionErrorMessage(resp))
	}

	var page struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return fmt.Errorf("failed to decode page response: %w", err)
	}

	c.logger.Info("Order recorded",
		zap.String("order_id", order.OrderID),
		zap.String("page_id", page.ID),
	)
	return nil
}

type queryRequest struct {
	Filter struct {
		Property string `json:"property"`
		RichText struct {
			Equals string `json:"equals"`
		} `json:"rich_text"`
	} `json:"filter"`
	PageSize int `json:"page_size"`
}

type queryResponse struct {
	Results []struct {
		Properties struct {
			Name struct {
				Title []struct {
					PlainText string `json:"plain_text"`
				} `json:"title"`
			} `json:"Name"`
			Email struct {
				Email string `json:"email"`
			} `json:"Email"`
			PreOrders struct {
				Number int `json:"number"`
			} `json:"PreOrders"`
			Status struct {
				Status struct {
					Name string `json:"name"`
				} `json:"status"`
			} `json:"Status"`
		} `json:"properties"`
	} `json:"results"`
}

// FindOrderByRef looks up the order whose order_id property exactly equals
// the transaction reference, taking the first match.
func (c *Client) FindOrderByRef(ctx context.Context, txRef string) (*models.Order, error) {
	var req queryRequest
	req.Filter.Property = "order_id"
	req.Filter.RichText.Equals = txRef
	req.PageSize = 1

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal query: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPost, "/databases/"+c.databaseID+"/query", body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("notion query failed: %s", notionErrorMessage(resp))
	}

	var result queryResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode query response: %w", err)
	}

	if len(result.Results) == 0 {
		return nil, ErrOrderNotFound
	}

	props := result.Results[0].Properties
	order := &models.Order{
		Email:          props.Email.Email,
		DeviceQuantity: props.PreOrders.Number,
		OrderID:        txRef,
		Status:         props.Status.Status.Name,
	}
	if len(props.Name.Title) > 0 {
		order.Name = props.Name.Title[0].PlainText
	}
	return order, nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.secret)
	req.Header.Set("Notion-Version", notionVersion)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("notion request failed: %w", err)
	}
	return resp, nil
}

func notionErrorMessage(resp *http.Response) string {
	var apiErr struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Message != "" {
		return fmt.Sprintf("%s (%s)", apiErr.Message, apiErr.Code)
	}
	return resp.Status
}
