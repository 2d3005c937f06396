package transform

import (
	"context"
	"errors"
	"testing"

	"MarketFlow/internal/modules/processor/domain/topic"
)

func TestDailyDerivesChange(t *testing.T) {
	out, err := Daily(context.Background(), map[string]any{
		"symbol": " aapl ",
		"open":   "148.0",
		"close":  150.2,
	})
	if err != nil {
		t.Fatalf("daily failed: %v", err)
	}
	rec := out.(map[string]any)
	if rec["symbol"] != "AAPL" {
		t.Fatalf("expected upper-cased symbol, got %v", rec["symbol"])
	}
	if rec["open"] != 148.0 {
		t.Fatalf("expected numeric open, got %#v", rec["open"])
	}
	if rec["change"] != 2.2 {
		t.Fatalf("expected change 2.2, got %v", rec["change"])
	}
	if rec["change_pct"] != 1.4865 {
		t.Fatalf("expected change_pct 1.4865, got %v", rec["change_pct"])
	}
	if rec["interval"] != "1d" {
		t.Fatalf("expected 1d interval, got %v", rec["interval"])
	}
}

func TestTransformsLeaveInputUntouched(t *testing.T) {
	in := map[string]any{"symbol": "msft", "close": 10.0}
	if _, err := RealTime(context.Background(), in); err != nil {
		t.Fatalf("realtime failed: %v", err)
	}
	if in["symbol"] != "msft" {
		t.Fatal("input record was mutated")
	}
	if _, ok := in["interval"]; ok {
		t.Fatal("input record was mutated")
	}
}

func TestHistoricalHandlesArrays(t *testing.T) {
	out, err := Historical(context.Background(), []any{
		map[string]any{"symbol": "ibm", "open": 100.0, "close": 101.0},
		map[string]any{"symbol": "ibm", "open": 101.0, "close": 99.0},
	})
	if err != nil {
		t.Fatalf("historical failed: %v", err)
	}
	items := out.([]any)
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	second := items[1].(map[string]any)
	if second["change"] != -2.0 || second["source"] != "historical" {
		t.Fatalf("unexpected item %#v", second)
	}
}

func TestOptionDerivesMidAndSpread(t *testing.T) {
	out, err := Option(context.Background(), map[string]any{
		"symbol": "tsla",
		"strike": "250",
		"type":   "C",
		"bid":    4.1,
		"ask":    4.5,
	})
	if err != nil {
		t.Fatalf("option failed: %v", err)
	}
	rec := out.(map[string]any)
	if rec["type"] != "call" || rec["strike"] != 250.0 {
		t.Fatalf("unexpected record %#v", rec)
	}
	if rec["mid"] != 4.3 || rec["spread"] != 0.4 {
		t.Fatalf("unexpected mid/spread %v/%v", rec["mid"], rec["spread"])
	}
}

func TestTransformErrors(t *testing.T) {
	ctx := context.Background()
	if _, err := Daily(ctx, "plain string"); !errors.Is(err, ErrUnsupportedPayload) {
		t.Fatalf("expected ErrUnsupportedPayload, got %v", err)
	}
	if _, err := Daily(ctx, []any{1.0}); !errors.Is(err, ErrUnsupportedPayload) {
		t.Fatalf("expected ErrUnsupportedPayload for array item, got %v", err)
	}
	if _, err := Daily(ctx, map[string]any{"symbol": "AAPL"}); !errors.Is(err, ErrMissingField) {
		t.Fatalf("expected missing close, got %v", err)
	}
	if _, err := Option(ctx, map[string]any{"symbol": "AAPL", "type": "call"}); !errors.Is(err, ErrMissingField) {
		t.Fatalf("expected missing strike, got %v", err)
	}
	if _, err := Option(ctx, map[string]any{"symbol": "AAPL", "strike": 1.0, "type": "straddle"}); err == nil {
		t.Fatal("expected unknown option type error")
	}
}

func TestRegistryCoversEveryRole(t *testing.T) {
	reg := Registry()
	for _, role := range topic.Roles() {
		if reg[role] == nil {
			t.Fatalf("no transform for role %s", role)
		}
	}
}
