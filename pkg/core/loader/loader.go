// Package loader reads per-ticker source documents from DATA_DIR. The data
// layer owns these files; the core reads them and never writes back.
package loader

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"hybrid_valuation/pkg/models"
)

// Cap on source document size to prevent memory exhaustion from malformed
// files.
const maxDocumentSize = 10 * 1024 * 1024

// ErrNotFound is returned when no document exists for a ticker.
var ErrNotFound = fmt.Errorf("source document not found")

// Loader reads SourceDocuments from a directory of {TICKER}.json files.
type Loader struct {
	dir    string
	logger zerolog.Logger
}

// New creates a Loader rooted at dir.
func New(dir string, logger zerolog.Logger) *Loader {
	return &Loader{dir: dir, logger: logger.With().Str("component", "loader").Logger()}
}

// Load reads and parses the document for a ticker.
func (l *Loader) Load(ticker string) (*models.SourceDocument, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	path := filepath.Join(l.dir, ticker+".json")

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, ticker)
		}
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.Size() > maxDocumentSize {
		return nil, fmt.Errorf("source document for %s exceeds size limit (%d > %d bytes)",
			ticker, info.Size(), maxDocumentSize)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var sections map[string]interface{}
	if err := json.Unmarshal(raw, &sections); err != nil {
		return nil, fmt.Errorf("invalid JSON for ticker %s: %w", ticker, err)
	}

	doc := &models.SourceDocument{
		Ticker:   ticker,
		Sections: sections,
	}
	if name, ok := sections["company_name"].(string); ok {
		doc.CompanyName = name
	}
	if collected, ok := sections["collected_at"].(string); ok {
		doc.CollectedAt = collected
	}

	l.logger.Debug().Str("ticker", ticker).Int64("bytes", info.Size()).Msg("source document loaded")
	return doc, nil
}

// ListTickers scans the data directory for available tickers.
func (l *Loader) ListTickers() ([]string, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, fmt.Errorf("data directory not readable: %w", err)
	}
	var tickers []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		tickers = append(tickers, strings.TrimSuffix(e.Name(), ".json"))
	}
	sort.Strings(tickers)
	return tickers, nil
}
