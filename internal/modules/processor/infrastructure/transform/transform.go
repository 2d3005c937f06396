package transform

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"MarketFlow/internal/modules/processor/domain/topic"
)

var (
	ErrUnsupportedPayload = errors.New("transform: payload must be a JSON object or an array of objects")
	ErrMissingField       = errors.New("transform: required field missing")
)

// Registry returns the transform of every role.
func Registry() map[topic.Role]topic.Transform {
	return map[topic.Role]topic.Transform{
		topic.RoleDaily:      Daily,
		topic.Role15Min:      RealTime,
		topic.RoleOptions:    Option,
		topic.RoleHistorical: Historical,
	}
}

type recordFunc func(rec map[string]any) (map[string]any, error)

// each applies fn to an object or to every object of an array.
func each(doc any, fn recordFunc) (any, error) {
	switch v := doc.(type) {
	case map[string]any:
		return fn(v)
	case []any:
		out := make([]any, 0, len(v))
		for i, item := range v {
			rec, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("item %d: %w", i, ErrUnsupportedPayload)
			}
			res, err := fn(rec)
			if err != nil {
				return nil, fmt.Errorf("item %d: %w", i, err)
			}
			out = append(out, res)
		}
		return out, nil
	default:
		return nil, ErrUnsupportedPayload
	}
}

func copyRecord(rec map[string]any) map[string]any {
	out := make(map[string]any, len(rec)+4)
	for k, v := range rec {
		out[k] = v
	}
	return out
}

// number reads a numeric field that may arrive as a JSON number or string.
func number(rec map[string]any, key string) (float64, bool) {
	switch v := rec[key].(type) {
	case float64:
		return v, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

func normalizeSymbol(rec map[string]any) error {
	sym, ok := rec["symbol"].(string)
	if !ok || strings.TrimSpace(sym) == "" {
		return fmt.Errorf("symbol: %w", ErrMissingField)
	}
	rec["symbol"] = strings.ToUpper(strings.TrimSpace(sym))
	return nil
}

// bar normalises an OHLCV record and derives the move from open to close.
func bar(interval string) recordFunc {
	return func(rec map[string]any) (map[string]any, error) {
		out := copyRecord(rec)
		if err := normalizeSymbol(out); err != nil {
			return nil, err
		}
		for _, key := range []string{"open", "high", "low", "close", "volume"} {
			if v, ok := number(out, key); ok {
				out[key] = v
			}
		}
		closePrice, ok := number(out, "close")
		if !ok {
			return nil, fmt.Errorf("close: %w", ErrMissingField)
		}
		if open, ok := number(out, "open"); ok {
			out["change"] = round(closePrice-open, 4)
			if open != 0 {
				out["change_pct"] = round((closePrice-open)/open*100, 4)
			}
		}
		out["interval"] = interval
		return out, nil
	}
}

func Daily(_ context.Context, doc any) (any, error) {
	return each(doc, bar("1d"))
}

func RealTime(_ context.Context, doc any) (any, error) {
	return each(doc, bar("15m"))
}

func Historical(_ context.Context, doc any) (any, error) {
	daily := bar("1d")
	return each(doc, func(rec map[string]any) (map[string]any, error) {
		out, err := daily(rec)
		if err != nil {
			return nil, err
		}
		out["source"] = "historical"
		return out, nil
	})
}

func Option(_ context.Context, doc any) (any, error) {
	return each(doc, option)
}

func option(rec map[string]any) (map[string]any, error) {
	out := copyRecord(rec)
	if err := normalizeSymbol(out); err != nil {
		return nil, err
	}
	strike, ok := number(out, "strike")
	if !ok {
		return nil, fmt.Errorf("strike: %w", ErrMissingField)
	}
	out["strike"] = strike

	if kind, ok := out["type"].(string); ok {
		switch strings.ToLower(strings.TrimSpace(kind)) {
		case "c", "call", "calls":
			out["type"] = "call"
		case "p", "put", "puts":
			out["type"] = "put"
		default:
			return nil, fmt.Errorf("unknown option type %q", kind)
		}
	}

	bid, hasBid := number(out, "bid")
	ask, hasAsk := number(out, "ask")
	if hasBid && hasAsk {
		out["bid"], out["ask"] = bid, ask
		out["mid"] = round((bid+ask)/2, 4)
		out["spread"] = round(ask-bid, 4)
	}
	return out, nil
}
