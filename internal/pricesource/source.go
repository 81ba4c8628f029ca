// Package pricesource fetches symbol/price snapshots from external market data
// sources and normalizes them into Quotes.
package pricesource

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Quote is one symbol/price pair as reported by a source. Price is invalid
// when the source value could not be parsed; RawPrice keeps the original text.
type Quote struct {
	Symbol   string              `json:"symbol"`
	Price    decimal.NullDecimal `json:"price"`
	RawPrice string              `json:"raw_price"`
	Raw      map[string]string   `json:"raw_data,omitempty"`
}

// UnmarshalJSON accepts the price either as a JSON number or as a string
// such as "$1,234.50" or "#N/A".
func (q *Quote) UnmarshalJSON(b []byte) error {
	var aux struct {
		Symbol   string            `json:"symbol"`
		Price    json.RawMessage   `json:"price"`
		RawPrice string            `json:"raw_price"`
		Raw      map[string]string `json:"raw_data"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}

	*q = Quote{Symbol: aux.Symbol, RawPrice: aux.RawPrice, Raw: aux.Raw}

	raw := bytes.TrimSpace(aux.Price)
	switch {
	case len(raw) == 0 || bytes.Equal(raw, []byte("null")):
	case raw[0] == '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return fmt.Errorf("quote %s: %w", aux.Symbol, err)
		}
		q.Price = ParsePrice(s)
		if q.RawPrice == "" {
			q.RawPrice = strings.TrimSpace(s)
		}
	default:
		d, err := decimal.NewFromString(string(raw))
		if err != nil {
			return fmt.Errorf("quote %s: invalid price %s: %w", aux.Symbol, raw, err)
		}
		q.Price = decimal.NewNullDecimal(d)
		if q.RawPrice == "" {
			q.RawPrice = d.String()
		}
	}
	return nil
}

// Payload is the decoded body of a source response. Sources answer either
// with a bare list of quotes or with an object holding the list under "data";
// both decode into the same Payload.
type Payload struct {
	Quotes []Quote
}

// UnmarshalJSON resolves the list/wrapper union.
func (p *Payload) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return fmt.Errorf("empty payload")
	}

	switch b[0] {
	case '[':
		return json.Unmarshal(b, &p.Quotes)
	case '{':
		var wrapper struct {
			Data *[]Quote `json:"data"`
		}
		if err := json.Unmarshal(b, &wrapper); err != nil {
			return err
		}
		if wrapper.Data == nil {
			return fmt.Errorf("payload object has no \"data\" list")
		}
		p.Quotes = *wrapper.Data
		return nil
	default:
		return fmt.Errorf("payload must be a list or an object, got %q", b[:1])
	}
}

// MarshalJSON always emits the bare list form.
func (p Payload) MarshalJSON() ([]byte, error) {
	if p.Quotes == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(p.Quotes)
}

// Len returns the number of quotes.
func (p *Payload) Len() int {
	if p == nil {
		return 0
	}
	return len(p.Quotes)
}

// Source fetches the current snapshot of quotes.
type Source interface {
	// Name returns the provenance tag stored with captured prices.
	Name() string

	// Fetch returns the current quotes. A nil payload with a non-nil error
	// means nothing could be fetched; an empty payload means the source
	// answered with zero rows.
	Fetch(ctx context.Context) (*Payload, error)
}

// FetchError describes a failed fetch from a source.
type FetchError struct {
	Source     string
	StatusCode int
	Err        error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch from %s failed with status %d: %v", e.Source, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch from %s failed: %v", e.Source, e.Err)
}

// Unwrap returns the underlying error.
func (e *FetchError) Unwrap() error { return e.Err }

// noDataValues are cell contents the sheet shows while a quote is unavailable.
var noDataValues = map[string]struct{}{
	"#N/A":        {},
	"N/A":         {},
	"CARGANDO...": {},
	"LOADING...":  {},
	"LOADING…":    {},
	"#ERROR!":     {},
	"#VALUE!":     {},
}

// IsNoData reports whether raw is a known "no data" marker.
func IsNoData(raw string) bool {
	_, ok := noDataValues[strings.ToUpper(strings.TrimSpace(raw))]
	return ok
}

// CleanPrice strips currency symbols, thousands separators and whitespace.
func CleanPrice(raw string) string {
	s := strings.ReplaceAll(raw, "$", "")
	s = strings.ReplaceAll(s, ",", "")
	return strings.TrimSpace(s)
}

// ParsePrice converts a sheet cell into a decimal. The result is invalid for
// no-data markers and for anything that is not a number after cleaning.
func ParsePrice(raw string) decimal.NullDecimal {
	if IsNoData(raw) {
		return decimal.NullDecimal{}
	}
	s := CleanPrice(raw)
	if s == "" {
		return decimal.NullDecimal{}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(d)
}
