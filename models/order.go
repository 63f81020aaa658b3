package models

import (
	"encoding/json"
	"time"
)

// Order statuses as recorded in the structured-data store. The store owns
// later transitions (fulfillment happens out of band); this service only ever
// writes OrderStatusWaiting.
const (
	OrderStatusWaiting = "Waiting"
)

// Transaction statuses reported by the payment gateway.
const (
	TxStatusSuccessful = "successful"
	TxStatusFailed     = "failed"
	TxStatusCancelled  = "cancelled"
)

// CreatePaymentRequest is the client-submitted preorder intent.
type CreatePaymentRequest struct {
	Name     string  `json:"name" binding:"required"`
	Email    string  `json:"email" binding:"required,email"`
	Quantity FlexInt `json:"quantity" binding:"required,gt=0"`
}

// CreatePaymentResponse carries the gateway redirect target back to the
// client. The client must remember TxRef across the redirect; some gateway
// flows do not echo it back.
type CreatePaymentResponse struct {
	Status string `json:"status"`
	TxRef  string `json:"tx_ref"`
	Link   string `json:"link"`
}

// VerifiedTransaction is the normalized result of verifying a transaction
// with the gateway. Meta carries the original intent fields end to end.
type VerifiedTransaction struct {
	TxRef         string
	ProviderID    string
	Status        string
	Amount        float64
	Currency      string
	CustomerName  string
	CustomerEmail string
	Meta          TransactionMeta
}

// TransactionMeta is the metadata bag stashed at payment initiation so the
// intent survives the redirect round trip. The gateway echoes DeviceQuantity
// back as a string, so it is kept as one until the orchestrator parses it.
type TransactionMeta struct {
	CustomerName   string `json:"customer_name"`
	CustomerEmail  string `json:"customer_email"`
	DeviceQuantity string `json:"device_quantity"`
}

// Order is the record persisted in the structured-data store, keyed by
// OrderID (= the transaction reference).
type Order struct {
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	DeviceQuantity int       `json:"device_quantity"`
	Amount         float64   `json:"amount"`
	OrderID        string    `json:"order_id"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
}

// ConfirmResult is what the orchestrator returns to the caller after a
// confirmation run, successful or pass-through.
type ConfirmResult struct {
	Status        string  `json:"status"`
	Amount        float64 `json:"amount"`
	CustomerEmail string  `json:"customer_email"`
	CustomerName  string  `json:"customer_name"`
	TxRef         string  `json:"tx_ref"`
	ProviderID    string  `json:"provider_id"`
}

// TrackOrderRequest asks for the status of a previously recorded order.
type TrackOrderRequest struct {
	TxRef string `json:"tx_ref" binding:"required"`
}

// TrackOrderResponse projects a stored order into the status view shown to
// the customer.
type TrackOrderResponse struct {
	Status         string `json:"status"`
	CustomerName   string `json:"customer_name"`
	CustomerEmail  string `json:"customer_email"`
	DeviceQuantity int    `json:"device_quantity"`
	TxRef          string `json:"tx_ref"`
}

// OrderConfirmedEvent is published to Kafka after a confirmation completes,
// for downstream fulfillment consumers.
type OrderConfirmedEvent struct {
	TxRef          string  `json:"tx_ref"`
	ProviderID     string  `json:"provider_id"`
	CustomerName   string  `json:"customer_name"`
	CustomerEmail  string  `json:"customer_email"`
	DeviceQuantity int     `json:"device_quantity"`
	Amount         float64 `json:"amount"`
	EventType      string  `json:"event_type"`
}

// FlexInt accepts both JSON numbers and numeric strings. Browser form
// submissions send quantity as a string; API clients send a number.
type FlexInt int

func (n *FlexInt) UnmarshalJSON(data []byte) error {
	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		var str string
		if strErr := json.Unmarshal(data, &str); strErr != nil {
			return err
		}
		num = json.Number(str)
	}
	value, err := num.Int64()
	if err != nil {
		return err
	}
	*n = FlexInt(value)
	return nil
}
