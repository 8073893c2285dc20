package strategy

import (
	"context"
	"errors"
	"testing"
	"time"

	"algotrader/internal/domain"
)

// stubStrategy is a minimal Strategy implementation used in registry tests.
type stubStrategy struct {
	name string
}

func (s *stubStrategy) Name() string { return s.name }
func (s *stubStrategy) Intents(_ context.Context, _ domain.PriceSeries, _ map[string]domain.Position, _ time.Time) (map[string]domain.Intent, error) {
	return nil, nil
}

func TestRegistryRegisterAndGet(t *testing.T) {
	r := NewRegistry()
	r.RegisterStrategy(&stubStrategy{name: "test-strategy"})

	got, ok, err := r.Get("test-strategy", nil)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if !ok {
		t.Fatal("Get returned false for registered strategy")
	}
	if got.Name() != "test-strategy" {
		t.Errorf("Get returned strategy with Name() = %q, want %q", got.Name(), "test-strategy")
	}
}

func TestRegistryGet_NotFound(t *testing.T) {
	r := NewRegistry()
	_, ok, err := r.Get("nonexistent", nil)
	if ok || err != nil {
		t.Errorf("Get(nonexistent) = ok %v, err %v; want false, nil", ok, err)
	}
}

func TestRegistryGet_FactoryError(t *testing.T) {
	r := NewRegistry()
	r.Register("broken", func(map[string]string) (Strategy, error) {
		return nil, errors.New("bad params")
	})
	_, ok, err := r.Get("broken", map[string]string{"x": "y"})
	if !ok {
		t.Error("Get should report the name as found")
	}
	if err == nil {
		t.Error("Get should surface the factory error")
	}
}

func TestRegistryList(t *testing.T) {
	r := NewRegistry()
	r.RegisterStrategy(&stubStrategy{name: "beta"})
	r.RegisterStrategy(&stubStrategy{name: "alpha"})

	names := r.List()
	if len(names) != 2 {
		t.Fatalf("List returned %d names, want 2", len(names))
	}
	// List returns sorted names.
	if names[0] != "alpha" || names[1] != "beta" {
		t.Errorf("List returned %v, want [alpha beta]", names)
	}
}

func TestFuncAdapter(t *testing.T) {
	called := false
	s := Func("fn", func(_ context.Context, _ domain.PriceSeries, _ map[string]domain.Position, _ time.Time) (map[string]domain.Intent, error) {
		called = true
		return map[string]domain.Intent{"AAPL": domain.Hold("AAPL")}, nil
	})

	if s.Name() != "fn" {
		t.Errorf("Name() = %q, want %q", s.Name(), "fn")
	}
	out, err := s.Intents(context.Background(), nil, nil, time.Time{})
	if err != nil {
		t.Fatalf("Intents returned error: %v", err)
	}
	if !called || len(out) != 1 {
		t.Errorf("Intents did not delegate: called=%v out=%v", called, out)
	}
}
