package requestctx

import (
	"context"
	"testing"
)

func TestCustomerIDFromContextRoundTrip(t *testing.T) {
	ctx := WithCustomerID(context.Background(), "customer-42")
	got := CustomerIDFromContext(ctx)
	if got != "customer-42" {
		t.Fatalf("CustomerIDFromContext = %q, want %q", got, "customer-42")
	}
}

func TestCustomerIDFromContextEmpty(t *testing.T) {
	got := CustomerIDFromContext(context.Background())
	if got != "" {
		t.Fatalf("expected empty string, got %q", got)
	}
}

func TestCustomerIDFromContextNil(t *testing.T) {
	got := CustomerIDFromContext(nil)
	if got != "" {
		t.Fatalf("expected empty string for nil context, got %q", got)
	}
}

func TestWithCustomerIDNilContext(t *testing.T) {
	ctx := WithCustomerID(nil, "customer-99")
	if ctx == nil {
		t.Fatalf("expected non-nil context")
	}
	if got := CustomerIDFromContext(ctx); got != "customer-99" {
		t.Fatalf("CustomerIDFromContext = %q, want %q", got, "customer-99")
	}
}

func TestLocaleFromContextRoundTrip(t *testing.T) {
	ctx := WithLocale(context.Background(), "pt-BR")
	if got := LocaleFromContext(ctx); got != "pt-BR" {
		t.Fatalf("LocaleFromContext = %q, want %q", got, "pt-BR")
	}
}

func TestLocaleFromContextEmpty(t *testing.T) {
	if got := LocaleFromContext(context.Background()); got != "" {
		t.Fatalf("expected empty string, got %q", got)
	}
}
