package pricesource

import (
	"fmt"
	"net/http"

	"orgfolio/internal/config"
)

// New builds the source selected by the market configuration. Every request
// is bounded by the configured request timeout.
func New(cfg config.MarketConfig) (Source, error) {
	httpClient := &http.Client{Timeout: cfg.RequestTimeout}

	switch cfg.Source {
	case "sheets":
		return NewSheetsSource(httpClient, SheetsConfig{
			SheetID:       cfg.SheetID,
			URL:           cfg.SourceURL,
			Tag:           cfg.SourceTag,
			SymbolColumns: cfg.SymbolColumns,
			PriceColumns:  cfg.PriceColumns,
		}), nil
	case "json":
		return NewJSONSource(httpClient, cfg.SourceURL, cfg.SourceTag), nil
	default:
		return nil, fmt.Errorf("unknown market source %q", cfg.Source)
	}
}
