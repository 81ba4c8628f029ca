package services

import (
	"context"
	"sync"

	"orgfolio/internal/models"
	"orgfolio/internal/pricesource"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

// stubSource is a pricesource.Source returning a fixed payload or error.
type stubSource struct {
	mu      sync.Mutex
	name    string
	payload *pricesource.Payload
	err     error
	calls   int
}

func (s *stubSource) Name() string {
	if s.name == "" {
		return "stub"
	}
	return s.name
}

func (s *stubSource) Fetch(ctx context.Context) (*pricesource.Payload, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return s.payload, nil
}

func (s *stubSource) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// quotes builds a payload from symbol/raw price pairs.
func quotes(pairs ...string) *pricesource.Payload {
	p := &pricesource.Payload{Quotes: []pricesource.Quote{}}
	for i := 0; i+1 < len(pairs); i += 2 {
		p.Quotes = append(p.Quotes, pricesource.Quote{
			Symbol:   pairs[i],
			Price:    pricesource.ParsePrice(pairs[i+1]),
			RawPrice: pairs[i+1],
		})
	}
	return p
}

// mockPriceWriter is a testify mock of PricePointWriter.
type mockPriceWriter struct {
	mock.Mock
}

func (m *mockPriceWriter) UpsertPricePoint(ctx context.Context, point *models.PricePoint) error {
	args := m.Called(ctx, point)
	return args.Error(0)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
