package pricesource

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// maxJSONBody caps how much of a JSON response is read.
const maxJSONBody = 8 << 20

// JSONSource reads quotes from an HTTP endpoint answering either with a list
// of {symbol, price} objects or with {"data": [...]}.
type JSONSource struct {
	httpClient *http.Client
	url        string
	tag        string
}

// NewJSONSource creates a JSON endpoint source.
func NewJSONSource(httpClient *http.Client, url, tag string) *JSONSource {
	if tag == "" {
		tag = "json_feed"
	}
	return &JSONSource{httpClient: httpClient, url: url, tag: tag}
}

// Name returns the provenance tag.
func (s *JSONSource) Name() string { return s.tag }

// Fetch downloads and decodes the payload.
func (s *JSONSource) Fetch(ctx context.Context) (*Payload, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, &FetchError{Source: s.tag, Err: fmt.Errorf("building request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, &FetchError{Source: s.tag, Err: fmt.Errorf("http request: %w", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{Source: s.tag, StatusCode: resp.StatusCode, Err: errors.New("unexpected status")}
	}

	var payload Payload
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxJSONBody)).Decode(&payload); err != nil {
		return nil, &FetchError{Source: s.tag, Err: fmt.Errorf("decoding response: %w", err)}
	}
	return &payload, nil
}
