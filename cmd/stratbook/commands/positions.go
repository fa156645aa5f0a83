package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// positionsCmd prints the position ledgers
var positionsCmd = &cobra.Command{
	Use:   "positions",
	Short: "포지션 장부 조회",
	Long: `통합 장부와 전략별 장부를 출력하고 불일치를 점검합니다.

Example:
  go run ./cmd/stratbook positions`,
	RunE: showPositions,
}

func init() {
	rootCmd.AddCommand(positionsCmd)
}

func showPositions(cmd *cobra.Command, args []string) error {
	a, err := openApp(context.Background())
	if err != nil {
		return err
	}
	defer a.close()

	snap := a.book.Snapshot()

	printHeader("Position Ledgers")
	printPositions("Combined", snap.Combined)
	for i, positions := range snap.Strategies {
		printPositions(fmt.Sprintf("Strategy %d (%s)", i+1, a.strategies.Strategies[i].Name), positions)
	}

	drift := snap.Drift()
	fmt.Println()
	if len(drift) == 0 {
		fmt.Println("✅ Combined ledger matches the strategy ledgers")
		return nil
	}

	fmt.Printf("⚠️  Drift on %d ticker(s):\n", len(drift))
	w := newTable()
	fmt.Fprintln(w, "   TICKER\tCOMBINED\tSTRATEGIES\tDIFF")
	for _, d := range drift {
		fmt.Fprintf(w, "   %s\t%d\t%d\t%d\n", d.Ticker, d.Combined, d.Strategies, d.Difference)
	}
	w.Flush()
	return nil
}
