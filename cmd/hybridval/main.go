// hybridval is the operator CLI: run valuations and analyses from the
// terminal, refresh caches, and batch-value the whole data directory.
package main

import (
	"context"
	"fmt"
	"os"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"hybrid_valuation/pkg/app"
	"hybrid_valuation/pkg/config"
	"hybrid_valuation/pkg/core/pipeline"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func buildApp(ctx context.Context, verbose bool) (*app.App, error) {
	level := zerolog.WarnLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return app.Build(ctx, cfg, logger)
}

func printJSON(v interface{}) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func rootCmd() *cobra.Command {
	var verbose bool

	root := &cobra.Command{
		Use:           "hybridval",
		Short:         "Local-first hybrid equity valuation",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		valueCmd(&verbose),
		analyzeCmd(&verbose),
		refreshCmd(&verbose),
		tickersCmd(&verbose),
		batchCmd(&verbose),
	)
	return root
}

func valueCmd(verbose *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "value TICKER",
		Short: "Compute the multi-method valuation for a ticker",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(cmd.Context(), *verbose)
			if err != nil {
				return err
			}
			defer a.Close()

			result, err := a.Orch.Valuation(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(result)
		},
	}
}

func analyzeCmd(verbose *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "analyze TICKER",
		Short: "Generate the investment memo for a ticker",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(cmd.Context(), *verbose)
			if err != nil {
				return err
			}
			defer a.Close()

			memo, err := a.Orch.Analysis(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(memo)
		},
	}
}

func refreshCmd(verbose *bool) *cobra.Command {
	var scope string
	cmd := &cobra.Command{
		Use:   "refresh TICKER",
		Short: "Invalidate cached stages and recompute",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(cmd.Context(), *verbose)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.Orch.Refresh(cmd.Context(), args[0], pipeline.RefreshScope(scope)); err != nil {
				return err
			}
			result, err := a.Orch.Valuation(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(result)
		},
	}
	cmd.Flags().StringVar(&scope, "scope", string(pipeline.ScopeExtraction),
		"stages to invalidate: extraction, valuation, or analysis")
	return cmd
}

func tickersCmd(verbose *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "tickers",
		Short: "List tickers with source documents available",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(cmd.Context(), *verbose)
			if err != nil {
				return err
			}
			defer a.Close()

			tickers, err := a.Orch.ListTickers()
			if err != nil {
				return err
			}
			for _, t := range tickers {
				fmt.Println(t)
			}
			return nil
		},
	}
}

func batchCmd(verbose *bool) *cobra.Command {
	var workers int
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Value every ticker in the data directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(cmd.Context(), *verbose)
			if err != nil {
				return err
			}
			defer a.Close()

			tickers, err := a.Orch.ListTickers()
			if err != nil {
				return err
			}

			type row struct {
				Ticker  string  `json:"ticker"`
				Verdict string  `json:"verdict,omitempty"`
				Upside  float64 `json:"upside_pct,omitempty"`
				Error   string  `json:"error,omitempty"`
			}
			rows := make([]row, len(tickers))

			g, ctx := errgroup.WithContext(cmd.Context())
			g.SetLimit(workers)
			for i, ticker := range tickers {
				g.Go(func() error {
					result, err := a.Orch.Valuation(ctx, ticker)
					if err != nil {
						rows[i] = row{Ticker: ticker, Error: err.Error()}
						return nil // one bad ticker does not sink the batch
					}
					rows[i] = row{
						Ticker:  ticker,
						Verdict: string(result.Verdict),
						Upside:  result.UpsideDownsidePct,
					}
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}
			return printJSON(rows)
		},
	}
	cmd.Flags().IntVar(&workers, "workers", 4, "concurrent valuations")
	return cmd
}
