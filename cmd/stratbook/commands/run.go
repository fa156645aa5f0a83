package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/stratbook/internal/cycle"
)

// runCmd runs one trading cycle
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "매매 사이클 1회 실행",
	Long: `전략 시트를 읽어 목표 포지션을 합산하고 MOC 주문을 냅니다.

순서:
  1. 게이트웨이 연결 (실패 시 중단)
  2. 전략별 목표 포지션 읽기 및 합산
  3. 주문 계획 (청산 포함) 및 발주
  4. 체결 대기 후 장부/현금 반영
  5. 즉시 보고 (주문 확인, 거래 원장, 첫 전략 체결)
  6. DELAYED_UPDATE_AFTER 후 전략별 NAV/잔고 보고

Ctrl+C 로 대기 중 취소할 수 있습니다. 이미 낸 주문은 취소되지 않습니다.

Example:
  go run ./cmd/stratbook run --dry-run
  go run ./cmd/stratbook run --paper --settle 5s --no-delay`,
	RunE: runCycle,
}

var (
	runDryRun  bool
	runPaper   bool
	runSettle  time.Duration
	runNoDelay bool
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "주문 계획만 출력")
	runCmd.Flags().BoolVar(&runPaper, "paper", false, "모의 게이트웨이 사용")
	runCmd.Flags().DurationVar(&runSettle, "settle", 0, "체결 대기 시간 (기본 SETTLE_WAIT)")
	runCmd.Flags().BoolVar(&runNoDelay, "no-delay", false, "전략별 보고를 지연 없이 바로 실행")
}

func runCycle(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	runner, gw, err := a.runner(ctx, runPaper)
	if err != nil {
		return err
	}
	defer gw.Close()

	delay := a.cfg.Cycle.DelayedUpdateAfter
	if runNoDelay {
		delay = 0
	}

	opts := cycle.Options{DryRun: runDryRun, SettleWait: runSettle}
	result, summary, err := runner.RunAndReport(ctx, opts, delay)
	if result != nil {
		printCycleResult(result)
	}
	if err != nil {
		return fmt.Errorf("trading cycle: %w", err)
	}

	if summary != nil {
		printSummary(summary)
	}
	return nil
}
