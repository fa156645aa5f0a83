package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// tradesCmd prints recent trade records
var tradesCmd = &cobra.Command{
	Use:   "trades",
	Short: "최근 거래 조회",
	Long: `거래 원장의 최근 거래를 출력합니다.

Example:
  go run ./cmd/stratbook trades
  go run ./cmd/stratbook trades --limit 100
  go run ./cmd/stratbook trades --date 2026-10-16`,
	RunE: showTrades,
}

var (
	tradesLimit int
	tradesDate  string
)

func init() {
	rootCmd.AddCommand(tradesCmd)

	tradesCmd.Flags().IntVar(&tradesLimit, "limit", 20, "최대 행 수")
	tradesCmd.Flags().StringVar(&tradesDate, "date", "", "특정 거래일만 (YYYY-MM-DD)")
}

func showTrades(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	printHeader("Trade Ledger")

	if tradesDate != "" {
		trades, err := a.trades.TradesOn(ctx, tradesDate)
		if err != nil {
			return fmt.Errorf("trades on %s: %w", tradesDate, err)
		}
		printTrades(trades)
		return nil
	}

	trades, err := a.trades.RecentTrades(ctx, tradesLimit)
	if err != nil {
		return fmt.Errorf("recent trades: %w", err)
	}
	printTrades(trades)
	return nil
}
