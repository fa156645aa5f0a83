package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wonny/stratbook/internal/api"
	"github.com/wonny/stratbook/internal/api/handlers"
	"github.com/wonny/stratbook/internal/cycle"
	"github.com/wonny/stratbook/internal/gateway"
	"github.com/wonny/stratbook/internal/scheduler"
	"github.com/wonny/stratbook/internal/scheduler/jobs"
)

// schedulerCmd represents the scheduler command
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "스케줄러 관리",
	Long: `스케줄러를 시작하거나 작업을 관리합니다.

Subcommands:
  start   - 스케줄러 시작 (상태 API 포함)
  list    - 등록된 작업 목록
  run     - 특정 작업 즉시 실행
  status  - 작업 실행 상태 조회

Example:
  go run ./cmd/stratbook scheduler start
  go run ./cmd/stratbook scheduler list
  go run ./cmd/stratbook scheduler run ledger_drift`,
}

var (
	schedulerStartCmd = &cobra.Command{
		Use:   "start",
		Short: "스케줄러 시작",
		Long: `스케줄러를 시작하고 등록된 모든 작업을 스케줄합니다.

등록되는 작업:
- trading_cycle: CYCLE_SCHEDULE (기본 평일 15:45:00, 시장 시간대)
- delayed_report: trading_cycle 후 DELAYED_UPDATE_AFTER 에 1회
- ledger_drift: 매시간 (장부 불일치 점검)

스케줄러는 Ctrl+C로 종료할 수 있습니다. 대기 중인 보고는 취소됩니다.`,
		RunE: runScheduler,
	}

	schedulerListCmd = &cobra.Command{
		Use:   "list",
		Short: "등록된 작업 목록",
		RunE:  listJobs,
	}

	schedulerRunCmd = &cobra.Command{
		Use:   "run [job_name]",
		Short: "특정 작업 즉시 실행",
		Args:  cobra.ExactArgs(1),
		RunE:  runJob,
	}

	schedulerStatusCmd = &cobra.Command{
		Use:   "status",
		Short: "작업 실행 상태 조회",
		RunE:  showStatus,
	}
)

var (
	schedulerPaper   bool
	schedulerWithAPI bool
)

func init() {
	rootCmd.AddCommand(schedulerCmd)
	schedulerCmd.AddCommand(schedulerStartCmd)
	schedulerCmd.AddCommand(schedulerListCmd)
	schedulerCmd.AddCommand(schedulerRunCmd)
	schedulerCmd.AddCommand(schedulerStatusCmd)

	schedulerCmd.PersistentFlags().BoolVar(&schedulerPaper, "paper", false, "모의 게이트웨이 사용")
	schedulerStartCmd.Flags().BoolVar(&schedulerWithAPI, "api", true, "상태 API 함께 실행")
}

func runScheduler(cmd *cobra.Command, args []string) error {
	fmt.Println("=== stratbook Scheduler ===")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	sched, gw, err := initScheduler(ctx, a)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	defer gw.Close()

	sched.Start()

	fmt.Println("\n✅ Scheduler started successfully")
	fmt.Println("\nRegistered jobs:")
	for _, jobName := range sched.GetAllJobs() {
		fmt.Printf("  - %s\n", jobName)
	}

	var server *api.Server
	if schedulerWithAPI {
		server = newAPIServer(a, handlers.NewJobsHandler(sched))
		go func() {
			if err := server.Start(); err != nil {
				a.log.WithError(err).Error("API server stopped")
			}
		}()
		fmt.Printf("\nStatus API on http://localhost:%s\n", a.cfg.Port)
	}

	fmt.Println("\nPress Ctrl+C to stop")
	<-ctx.Done()

	fmt.Println("\nShutting down scheduler...")
	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), apiShutdownTimeout)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}
	sched.Stop()
	fmt.Println("Scheduler stopped")

	return nil
}

func listJobs(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	sched, gw, err := initScheduler(ctx, a)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	defer gw.Close()

	fmt.Println("Registered jobs:")
	for name, stat := range sched.GetJobStats() {
		fmt.Printf("  - %-16s %s\n", name, stat.Schedule)
	}

	return nil
}

func runJob(cmd *cobra.Command, args []string) error {
	jobName := args[0]

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	sched, gw, err := initScheduler(ctx, a)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	defer gw.Close()
	defer sched.Stop()

	fmt.Printf("Running job: %s\n", jobName)
	result, err := sched.RunJobSync(ctx, jobName)
	if err != nil {
		return fmt.Errorf("run job: %w", err)
	}
	fmt.Printf("✅ Job %s completed in %.2fs\n", jobName, result.Duration.Seconds())

	if pending := sched.Pending(); len(pending) > 0 {
		fmt.Printf("Waiting for %v (Ctrl+C to skip)\n", pending)
		if err := sched.WaitPending(ctx); err != nil {
			return fmt.Errorf("pending jobs: %w", err)
		}
	}

	return nil
}

func showStatus(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	sched, gw, err := initScheduler(ctx, a)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	defer gw.Close()

	stats := sched.GetJobStats()

	fmt.Println("Job Statistics:")
	fmt.Println()

	for jobName, stat := range stats {
		fmt.Printf("📊 %s\n", jobName)
		fmt.Printf("   Schedule: %s\n", stat.Schedule)
		fmt.Printf("   Total Runs: %d\n", stat.TotalRuns)
		fmt.Printf("   Success: %d (%.1f%%)\n", stat.SuccessCount, stat.SuccessRate*100)
		fmt.Printf("   Failures: %d\n", stat.FailureCount)

		if stat.LastRun != nil {
			fmt.Printf("   Last Run: %s\n", stat.LastRun.Format("2006-01-02 15:04:05"))
		}

		if stat.NextRun != nil {
			fmt.Printf("   Next Run: %s\n", stat.NextRun.Format("2006-01-02 15:04:05 MST"))
		}

		fmt.Println()
	}

	// History lives in the scheduler process; a fresh process only knows schedules
	fmt.Println("(run history is kept by the running scheduler, see GET /api/jobs)")

	return nil
}

func initScheduler(ctx context.Context, a *app) (*scheduler.Scheduler, gateway.Gateway, error) {
	loc, err := a.cfg.Location()
	if err != nil {
		return nil, nil, err
	}

	runner, gw, err := a.runner(ctx, schedulerPaper)
	if err != nil {
		return nil, nil, err
	}

	sched := scheduler.New(a.log)
	sched.SetLocation(loc)

	cycleJob := jobs.NewTradingCycleJob(runner, sched, a.cfg.Cycle.Schedule, a.cfg.Cycle.DelayedUpdateAfter, cycle.Options{}, a.log)
	if err := sched.AddJob(cycleJob); err != nil {
		_ = gw.Close()
		return nil, nil, err
	}
	if err := sched.AddJob(jobs.NewLedgerDriftJob(a.book, a.log)); err != nil {
		_ = gw.Close()
		return nil, nil, err
	}

	return sched, gw, nil
}
