package domain

import (
	"testing"
	"time"
)

func day(d int) time.Time {
	return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC)
}

func TestTypesExist(t *testing.T) {
	bar := Bar{}
	if bar.Symbol != "" {
		t.Error("expected empty Symbol for zero-value Bar")
	}
	if !bar.Timestamp.IsZero() {
		t.Error("expected zero Timestamp for zero-value Bar")
	}
	if bar.Open != 0 || bar.High != 0 || bar.Low != 0 || bar.Close != 0 {
		t.Error("expected zero OHLC values for zero-value Bar")
	}

	trade := Trade{}
	if trade.Qty != 0 || trade.Amount != 0 || trade.CostBasis != 0 {
		t.Error("expected zero Qty/Amount/CostBasis for zero-value Trade")
	}

	if MarketUS != "us" {
		t.Error("Market constants have unexpected values")
	}
}

func TestIntentConstructors(t *testing.T) {
	b := Buy("AAPL", 10)
	if b.Action != ActionBuy || b.Quantity == nil || *b.Quantity != 10 {
		t.Errorf("Buy(AAPL, 10) = %+v", b)
	}
	if s := Sell("AAPL", 0); s.Quantity != nil {
		t.Errorf("Sell with zero qty should leave Quantity nil, got %v", *s.Quantity)
	}
	if h := Hold("AAPL"); h.Action != ActionHold {
		t.Errorf("Hold action = %q", h.Action)
	}
}

func TestNewPriceSeriesSortsAndMerges(t *testing.T) {
	ps, err := NewPriceSeries([]Bar{
		{Symbol: "MSFT", Timestamp: day(3), Close: 3},
		{Symbol: "AAPL", Timestamp: day(2), Close: 2},
		{Symbol: "AAPL", Timestamp: day(1), Close: 1},
		{Symbol: "MSFT", Timestamp: day(1), Close: 1},
	})
	if err != nil {
		t.Fatalf("NewPriceSeries: %v", err)
	}

	if syms := ps.Symbols(); len(syms) != 2 || syms[0] != "AAPL" || syms[1] != "MSFT" {
		t.Errorf("Symbols() = %v, want [AAPL MSFT]", syms)
	}
	if ps["AAPL"][0].Close != 1 || ps["AAPL"][1].Close != 2 {
		t.Errorf("AAPL series not sorted: %+v", ps["AAPL"])
	}
	if ps.Len() != 4 {
		t.Errorf("Len() = %d, want 4", ps.Len())
	}

	ts := ps.Timestamps()
	if len(ts) != 3 {
		t.Fatalf("Timestamps() returned %d entries, want 3", len(ts))
	}
	for i, want := range []time.Time{day(1), day(2), day(3)} {
		if !ts[i].Equal(want) {
			t.Errorf("Timestamps()[%d] = %s, want %s", i, ts[i], want)
		}
	}
}

func TestNewPriceSeriesRejectsDuplicates(t *testing.T) {
	_, err := NewPriceSeries([]Bar{
		{Symbol: "AAPL", Timestamp: day(1), Close: 1},
		{Symbol: "AAPL", Timestamp: day(1), Close: 2},
	})
	if err == nil {
		t.Fatal("expected error for duplicate timestamps")
	}
}

func TestValidateOutOfOrder(t *testing.T) {
	ps := PriceSeries{"AAPL": {
		{Symbol: "AAPL", Timestamp: day(2)},
		{Symbol: "AAPL", Timestamp: day(1)},
	}}
	if err := ps.Validate(); err == nil {
		t.Fatal("expected error for out-of-order series")
	}
}

func TestBarAtAndClosesAt(t *testing.T) {
	ps := PriceSeries{
		"AAPL": {{Symbol: "AAPL", Timestamp: day(1), Close: 100}, {Symbol: "AAPL", Timestamp: day(3), Close: 103}},
		"MSFT": {{Symbol: "MSFT", Timestamp: day(2), Close: 200}, {Symbol: "MSFT", Timestamp: day(3), Close: 203}},
	}

	if _, ok := ps.BarAt("AAPL", day(2)); ok {
		t.Error("BarAt(AAPL, day 2) should be missing")
	}
	if b, ok := ps.BarAt("AAPL", day(3)); !ok || b.Close != 103 {
		t.Errorf("BarAt(AAPL, day 3) = %+v, %v", b, ok)
	}
	if _, ok := ps.BarAt("TSLA", day(1)); ok {
		t.Error("BarAt for unknown symbol should be missing")
	}

	prices := ps.ClosesAt(day(2))
	if len(prices) != 1 || prices["MSFT"] != 200 {
		t.Errorf("ClosesAt(day 2) = %v, want map[MSFT:200]", prices)
	}
	prices = ps.ClosesAt(day(3))
	if len(prices) != 2 {
		t.Errorf("ClosesAt(day 3) = %v, want both symbols", prices)
	}
}

func TestWindowExcludesFuture(t *testing.T) {
	ps := PriceSeries{"AAPL": {
		{Symbol: "AAPL", Timestamp: day(1), Close: 1},
		{Symbol: "AAPL", Timestamp: day(2), Close: 2},
		{Symbol: "AAPL", Timestamp: day(4), Close: 4},
	}}

	if w := ps.Window("AAPL", day(3)); len(w) != 2 || w[1].Close != 2 {
		t.Errorf("Window(day 3) = %+v, want first two bars", w)
	}
	if w := ps.Window("AAPL", day(0)); len(w) != 0 {
		t.Errorf("Window before first bar = %+v, want empty", w)
	}
	if w := ps.Window("AAPL", day(4)); len(w) != 3 {
		t.Errorf("Window(day 4) returned %d bars, want 3", len(w))
	}
}
