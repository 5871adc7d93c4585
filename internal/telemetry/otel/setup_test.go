package otel

import (
	"context"
	"testing"
)

func TestNewProviders_EmptyEndpoint(t *testing.T) {
	p, err := NewProviders(context.Background(), "", "mynotes-auth")
	if err != nil {
		t.Fatalf("NewProviders: %v", err)
	}
	if p.TracerProvider == nil || p.MeterProvider == nil {
		t.Fatal("providers should be non-nil no-ops")
	}
	if err := p.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown of no-op providers: %v", err)
	}
}

func TestNewProviders_InvalidEndpoint(t *testing.T) {
	if _, err := NewProviders(context.Background(), "http://", "mynotes-auth"); err == nil {
		t.Fatal("NewProviders with hostless endpoint should fail")
	}
}
