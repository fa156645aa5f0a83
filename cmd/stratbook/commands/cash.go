package commands

import (
	"context"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/wonny/stratbook/internal/attribution"
	"github.com/wonny/stratbook/internal/dates"
	"github.com/wonny/stratbook/internal/marketdata"
)

// cashCmd prints strategy cash
var cashCmd = &cobra.Command{
	Use:   "cash",
	Short: "전략별 현금 조회",
	Long: `전략별 최신 현금을 출력합니다.

Example:
  go run ./cmd/stratbook cash
  go run ./cmd/stratbook cash init
  go run ./cmd/stratbook cash history 1`,
	RunE: showCash,
}

var (
	cashInitCmd = &cobra.Command{
		Use:   "init",
		Short: "현금 기록이 없는 전략에 INITIAL_CASH 기록",
		RunE:  initCash,
	}

	cashHistoryCmd = &cobra.Command{
		Use:   "history [strategy_number]",
		Short: "전략 현금 이력",
		Args:  cobra.ExactArgs(1),
		RunE:  cashHistory,
	}
)

var cashLimit int

func init() {
	rootCmd.AddCommand(cashCmd)
	cashCmd.AddCommand(cashInitCmd)
	cashCmd.AddCommand(cashHistoryCmd)

	cashHistoryCmd.Flags().IntVar(&cashLimit, "limit", 20, "최대 행 수")
}

func showCash(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	records, err := a.trades.LatestCash(ctx)
	if err != nil {
		return fmt.Errorf("latest cash: %w", err)
	}

	printHeader("Strategy Cash")
	if len(records) == 0 {
		fmt.Println("  (no cash recorded, run `stratbook cash init`)")
		return nil
	}

	w := newTable()
	fmt.Fprintln(w, "  #\tSTRATEGY\tDATE\tCASH")
	for _, r := range records {
		name := ""
		if r.StrategyIdx < len(a.strategies.Strategies) {
			name = a.strategies.Strategies[r.StrategyIdx].Name
		}
		fmt.Fprintf(w, "  %d\t%s\t%s\t%s\n", r.StrategyIdx+1, name, r.Date, r.Cash.StringFixed(2))
	}
	w.Flush()
	return nil
}

func initCash(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	loc, err := a.cfg.Location()
	if err != nil {
		return err
	}

	engine := attribution.NewEngine(a.trades, marketdata.StaticSource{}, decimal.NewFromFloat(a.cfg.Cycle.InitialCash), a.log)
	if err := engine.InitializeCash(ctx, len(a.strategies.Strategies), dates.Today(loc)); err != nil {
		return fmt.Errorf("initialize cash: %w", err)
	}

	fmt.Println("✅ Cash initialized")
	return showCash(cmd, args)
}

func cashHistory(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	n, err := strconv.Atoi(args[0])
	if err != nil || n < 1 {
		return fmt.Errorf("strategy number must be 1 or more, got %q", args[0])
	}

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	records, err := a.trades.CashHistory(ctx, n-1, cashLimit)
	if err != nil {
		return fmt.Errorf("cash history: %w", err)
	}

	printHeader(fmt.Sprintf("Strategy %d Cash History", n))
	w := newTable()
	fmt.Fprintln(w, "  DATE\tCASH")
	for _, r := range records {
		fmt.Fprintf(w, "  %s\t%s\n", r.Date, r.Cash.StringFixed(2))
	}
	w.Flush()
	return nil
}
