package config

import "testing"

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	if cfg.Provider != ProviderFlutterwave {
		t.Errorf("Expected default provider flutterwave, got %s", cfg.Provider)
	}
	if cfg.DeviceUnitPrice != 250 {
		t.Errorf("Expected default unit price 250, got %f", cfg.DeviceUnitPrice)
	}
	if cfg.Currency != "USD" {
		t.Errorf("Expected default currency USD, got %s", cfg.Currency)
	}
	if cfg.KafkaTopic != "order_events" {
		t.Errorf("Expected default topic order_events, got %s", cfg.KafkaTopic)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PAYMENT_PROVIDER", "stripe")
	t.Setenv("DEVICE_UNIT_PRICE", "199.99")
	t.Setenv("FLUTTERWAVE_SECRET_KEY", "sk_test")

	cfg := Load()

	if cfg.Provider != ProviderStripe {
		t.Errorf("Expected provider stripe, got %s", cfg.Provider)
	}
	if cfg.DeviceUnitPrice != 199.99 {
		t.Errorf("Expected unit price 199.99, got %f", cfg.DeviceUnitPrice)
	}
	if cfg.FlutterwaveSecretKey != "sk_test" {
		t.Errorf("Expected secret key from environment")
	}
}

func TestLoad_BadUnitPriceFallsBack(t *testing.T) {
	t.Setenv("DEVICE_UNIT_PRICE", "not-a-number")

	cfg := Load()
	if cfg.DeviceUnitPrice != 250 {
		t.Errorf("Expected fallback unit price 250, got %f", cfg.DeviceUnitPrice)
	}
}

func TestRequire(t *testing.T) {
	if err := Require("A", "set", "B", "also-set"); err != nil {
		t.Errorf("Expected no error when all keys set, got: %v", err)
	}

	err := Require("A", "set", "NOTION_DB", "")
	if err == nil {
		t.Fatal("Expected error for missing key")
	}
	if got := err.Error(); got != "required configuration NOTION_DB is not set" {
		t.Errorf("Unexpected error message: %s", got)
	}
}
