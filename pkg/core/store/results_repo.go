package store

import (
	"context"
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"hybrid_valuation/pkg/models"
)

// ResultsRepo archives valuation results and memos to Postgres.
type ResultsRepo struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewResultsRepo creates the archive repository. A nil pool produces a no-op
// repository so callers never branch on configuration.
func NewResultsRepo(pool *pgxpool.Pool, logger zerolog.Logger) *ResultsRepo {
	return &ResultsRepo{pool: pool, logger: logger.With().Str("component", "results-repo").Logger()}
}

// SaveValuation upserts the latest valuation for a ticker.
func (r *ResultsRepo) SaveValuation(ctx context.Context, result *models.ValuationResult) error {
	if r.pool == nil {
		return nil
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal valuation: %w", err)
	}

	query := `
		INSERT INTO valuations (ticker, verdict, composite_intrinsic_value, upside_pct, calculated_at, result)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (ticker)
		DO UPDATE SET
			verdict = EXCLUDED.verdict,
			composite_intrinsic_value = EXCLUDED.composite_intrinsic_value,
			upside_pct = EXCLUDED.upside_pct,
			calculated_at = EXCLUDED.calculated_at,
			result = EXCLUDED.result
	`
	_, err = r.pool.Exec(ctx, query,
		result.Ticker, string(result.Verdict), result.CompositeIntrinsicValue,
		result.UpsideDownsidePct, result.CalculationTimestamp, payload)
	if err != nil {
		return fmt.Errorf("failed to archive valuation for %s: %w", result.Ticker, err)
	}

	r.logger.Debug().Str("ticker", result.Ticker).Msg("valuation archived")
	return nil
}

// SaveMemo upserts the latest memo for a ticker.
func (r *ResultsRepo) SaveMemo(ctx context.Context, memo *models.InvestmentMemo) error {
	if r.pool == nil {
		return nil
	}
	payload, err := json.Marshal(memo)
	if err != nil {
		return fmt.Errorf("failed to marshal memo: %w", err)
	}

	query := `
		INSERT INTO memos (ticker, rating, conviction, analyzed_at, memo)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (ticker)
		DO UPDATE SET
			rating = EXCLUDED.rating,
			conviction = EXCLUDED.conviction,
			analyzed_at = EXCLUDED.analyzed_at,
			memo = EXCLUDED.memo
	`
	_, err = r.pool.Exec(ctx, query,
		memo.Ticker, string(memo.InvestmentRating), memo.ConvictionLevel,
		memo.AnalysisDate, payload)
	if err != nil {
		return fmt.Errorf("failed to archive memo for %s: %w", memo.Ticker, err)
	}

	r.logger.Debug().Str("ticker", memo.Ticker).Msg("memo archived")
	return nil
}

// LoadValuation returns the archived valuation for a ticker, or nil.
func (r *ResultsRepo) LoadValuation(ctx context.Context, ticker string) (*models.ValuationResult, error) {
	if r.pool == nil {
		return nil, nil
	}
	var payload []byte
	err := r.pool.QueryRow(ctx,
		`SELECT result FROM valuations WHERE ticker = $1`, ticker).Scan(&payload)
	if err != nil {
		return nil, nil // archive miss is not an error
	}
	var result models.ValuationResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, fmt.Errorf("corrupt archived valuation for %s: %w", ticker, err)
	}
	return &result, nil
}
