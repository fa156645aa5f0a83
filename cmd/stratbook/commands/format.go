package commands

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/wonny/stratbook/internal/contracts"
	"github.com/wonny/stratbook/internal/cycle"
	"github.com/wonny/stratbook/internal/reporting"
)

// ═══════════════════════════════════════════════════════════
// Common Formatting Utilities
// 모든 커맨드가 동일한 출력 포맷을 사용하도록 통일
// ═══════════════════════════════════════════════════════════

const (
	rule     = "═══════════════════════════════════════════════════════════"
	thinRule = "───────────────────────────────────────────────────────────"
)

func printHeader(title string) {
	fmt.Println()
	fmt.Println(rule)
	fmt.Printf("  %s\n", title)
	fmt.Println(thinRule)
}

func newTable() *tabwriter.Writer {
	return tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
}

func printCycleResult(r *cycle.Result) {
	title := "Trading Cycle"
	if r.DryRun {
		title += " (dry run)"
	}
	printHeader(title)
	fmt.Printf("  Run ID    : %s\n", r.RunID)
	fmt.Printf("  Date      : %s\n", r.Date)
	fmt.Printf("  Intents   : %d\n", len(r.Intents))
	fmt.Printf("  Placed    : %d\n", r.Placed)
	fmt.Println(thinRule)

	if len(r.Intents) > 0 {
		w := newTable()
		fmt.Fprintln(w, "  TICKER\tACTION\tQTY\tPRE\tLIQ\tSTRATEGIES")
		for _, in := range r.Intents {
			fmt.Fprintf(w, "  %s\t%s\t%d\t%d\t%v\t%v\n", in.Ticker, in.Action, in.Quantity, in.PreTradePosition, in.Liquidation, oneBased(in.Strategies))
		}
		w.Flush()
	}

	if len(r.Fills) > 0 {
		fmt.Println(thinRule)
		w := newTable()
		fmt.Fprintln(w, "  TICKER\tSTATUS\tFILLED\tPRICE\tCOMMISSION")
		for _, f := range r.Fills {
			fmt.Fprintf(w, "  %s\t%s\t%d\t%s\t%s\n", f.Ticker, f.Status, f.RealizedDeltaShares, f.FillPrice.StringFixed(2), f.Commission.StringFixed(2))
		}
		w.Flush()
	}

	if len(r.Drift) > 0 {
		fmt.Println(thinRule)
		fmt.Printf("  ⚠️  Ledger drift on %d ticker(s)\n", len(r.Drift))
	}

	fmt.Println()
	fmt.Printf("✅ Cycle finished in %.2fs\n", r.Duration.Seconds())
}

func printSummary(s *reporting.Summary) {
	printHeader("Strategy Reports")

	w := newTable()
	fmt.Fprintln(w, "  #\tSTRATEGY\tCASH\tNAV")
	for _, rep := range s.Reports {
		if rep == nil {
			continue
		}
		fmt.Fprintf(w, "  %d\t%s\t%s\t%s\n", rep.Strategy+1, rep.Name, rep.Cash.StringFixed(2), rep.NAV.StringFixed(2))
	}
	w.Flush()

	if s.Failures > 0 {
		fmt.Printf("\n⚠️  %d strategy update(s) failed\n", s.Failures)
	}
}

func printPositions(title string, positions map[string]int64) {
	fmt.Printf("\n📊 %s\n", title)
	if len(positions) == 0 {
		fmt.Println("   (empty)")
		return
	}

	tickers := make([]string, 0, len(positions))
	for t := range positions {
		tickers = append(tickers, t)
	}
	sort.Strings(tickers)

	w := newTable()
	for _, t := range tickers {
		fmt.Fprintf(w, "   %s\t%d\n", t, positions[t])
	}
	w.Flush()
}

func printTrades(trades []contracts.TradeRecord) {
	w := newTable()
	fmt.Fprintln(w, "  ID\tDATE\tTICKER\tTYPE\tNET\tPRICE\tPRE\tPOST\tCOMMISSION")
	for _, t := range trades {
		fmt.Fprintf(w, "  %d\t%s\t%s\t%s\t%d\t%s\t%d\t%d\t%s\n",
			t.ID, t.Date, t.Ticker, t.TradeType, t.NetUnits, t.TradePrice.StringFixed(2),
			t.PreTradePosition, t.PostTradePosition, t.Commission.StringFixed(2))
	}
	w.Flush()
}

func oneBased(idx []int) []int {
	out := make([]int, len(idx))
	for i, v := range idx {
		out[i] = v + 1
	}
	return out
}
