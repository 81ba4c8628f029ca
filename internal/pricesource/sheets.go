package pricesource

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const sheetsURLFormat = "https://docs.google.com/spreadsheets/d/e/%s/pub?output=csv"

// SheetsConfig configures a SheetsSource.
type SheetsConfig struct {
	// SheetID is the published document id. Ignored when URL is set.
	SheetID string
	// URL overrides the published CSV address.
	URL           string
	Tag           string
	SymbolColumns []string
	PriceColumns  []string
}

// SheetsSource reads a Google Sheet published to the web as CSV.
type SheetsSource struct {
	httpClient    *http.Client
	url           string
	tag           string
	symbolColumns []string
	priceColumns  []string
}

// NewSheetsSource creates a source for a published sheet. The http client's
// timeout bounds every fetch.
func NewSheetsSource(httpClient *http.Client, cfg SheetsConfig) *SheetsSource {
	url := cfg.URL
	if url == "" {
		url = fmt.Sprintf(sheetsURLFormat, cfg.SheetID)
	}
	tag := cfg.Tag
	if tag == "" {
		tag = "google_sheets"
	}
	return &SheetsSource{
		httpClient:    httpClient,
		url:           url,
		tag:           tag,
		symbolColumns: lowerAll(cfg.SymbolColumns),
		priceColumns:  lowerAll(cfg.PriceColumns),
	}
}

// Name returns the provenance tag.
func (s *SheetsSource) Name() string { return s.tag }

// Fetch downloads the sheet and converts its rows into quotes.
func (s *SheetsSource) Fetch(ctx context.Context) (*Payload, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, &FetchError{Source: s.tag, Err: fmt.Errorf("building request: %w", err)}
	}
	req.Header.Set("Accept", "text/csv")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, &FetchError{Source: s.tag, Err: fmt.Errorf("http request: %w", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{Source: s.tag, StatusCode: resp.StatusCode, Err: errors.New("unexpected status")}
	}

	quotes, err := s.parse(resp.Body)
	if err != nil {
		return nil, &FetchError{Source: s.tag, Err: fmt.Errorf("parsing csv: %w", err)}
	}
	return &Payload{Quotes: quotes}, nil
}

// parse reads a CSV document with a header row. Rows without a symbol or a
// price cell are dropped.
func (s *SheetsSource) parse(r io.Reader) ([]Quote, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return []Quote{}, nil
	}
	if err != nil {
		return nil, err
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}

	symbolIdx := findColumn(header, s.symbolColumns)
	priceIdx := findColumn(header, s.priceColumns)

	quotes := []Quote{}
	if symbolIdx < 0 || priceIdx < 0 {
		return quotes, nil
	}

	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		symbol := cell(record, symbolIdx)
		rawPrice := cell(record, priceIdx)
		if symbol == "" || CleanPrice(rawPrice) == "" {
			continue
		}

		row := make(map[string]string, len(header))
		for i, name := range header {
			if name != "" {
				row[name] = cell(record, i)
			}
		}

		quotes = append(quotes, Quote{
			Symbol:   symbol,
			Price:    ParsePrice(rawPrice),
			RawPrice: rawPrice,
			Raw:      row,
		})
	}
	return quotes, nil
}

// findColumn returns the index of the first header matching any synonym.
func findColumn(header, synonyms []string) int {
	for i, name := range header {
		lower := strings.ToLower(name)
		for _, syn := range synonyms {
			if lower == syn {
				return i
			}
		}
	}
	return -1
}

func cell(record []string, i int) string {
	if i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

func lowerAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(strings.TrimSpace(s))
	}
	return out
}
