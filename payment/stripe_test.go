package payment

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestStripe_CreatePayment(t *testing.T) {
	var gotForm map[string][]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/checkout/sessions" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/x-www-form-urlencoded" {
			t.Errorf("Unexpected content type %q", ct)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("Failed to parse form: %v", err)
		}
		gotForm = r.PostForm
		json.NewEncoder(w).Encode(map[string]any{
			"id":  "cs_test_123",
			"url": "https://checkout.stripe.com/c/pay/cs_test_123",
		})
	}))
	defer server.Close()

	client := NewStripeClientWithBaseURL("sk_test", server.URL, testLogger(t))
	resp, err := client.CreatePayment(context.Background(), CreatePaymentRequest{
		TxRef:       "NEUROLAB-1-abc",
		Amount:      500,
		Currency:    "USD",
		Name:        "Ada Lovelace",
		Email:       "ada@example.com",
		Quantity:    2,
		RedirectURL: "https://neurolab.cc/success",
		CancelURL:   "https://neurolab.cc?canceled=true",
	})
	if err != nil {
		t.Fatalf("Expected success, got: %v", err)
	}

	if resp.Link != "https://checkout.stripe.com/c/pay/cs_test_123" {
		t.Errorf("Unexpected link %s", resp.Link)
	}
	if got := gotForm["line_items[0][price_data][unit_amount]"]; len(got) != 1 || got[0] != "25000" {
		t.Errorf("Expected unit_amount 25000 cents, got %v", got)
	}
	if got := gotForm["line_items[0][quantity]"]; len(got) != 1 || got[0] != "2" {
		t.Errorf("Expected quantity 2, got %v", got)
	}
	if got := gotForm["client_reference_id"]; len(got) != 1 || got[0] != "NEUROLAB-1-abc" {
		t.Errorf("Expected client_reference_id, got %v", got)
	}
	if got := gotForm["metadata[device_quantity]"]; len(got) != 1 || got[0] != "2" {
		t.Errorf("Expected device_quantity metadata, got %v", got)
	}
}

func TestStripe_CreatePayment_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"message": "Invalid API Key", "type": "invalid_request_error"},
		})
	}))
	defer server.Close()

	client := NewStripeClientWithBaseURL("sk_bad", server.URL, testLogger(t))
	_, err := client.CreatePayment(context.Background(), CreatePaymentRequest{TxRef: "r", Amount: 250, Quantity: 1})
	if err == nil {
		t.Fatal("Expected error from API failure")
	}
}

func TestStripe_VerifyNotSupported(t *testing.T) {
	client := NewStripeClient("sk_test", testLogger(t))
	if _, err := client.VerifyByReference(context.Background(), "r"); !errors.Is(err, ErrNotSupported) {
		t.Errorf("Expected ErrNotSupported, got: %v", err)
	}
	if _, err := client.VerifyByID(context.Background(), "1"); !errors.Is(err, ErrNotSupported) {
		t.Errorf("Expected ErrNotSupported, got: %v", err)
	}
}
