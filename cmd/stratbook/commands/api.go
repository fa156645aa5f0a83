package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/stratbook/internal/api"
	"github.com/wonny/stratbook/internal/api/handlers"
)

const apiShutdownTimeout = 30 * time.Second

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "상태 API 서버 시작",
	Long: `읽기 전용 상태 API 서버를 시작합니다.

Endpoints:
  GET  /health                    - Health check
  GET  /metrics                   - Prometheus metrics
  GET  /api/positions             - 통합/전략별 포지션
  GET  /api/positions/drift       - 장부 불일치
  GET  /api/positions/{strategy}  - 전략 포지션 (이름 또는 번호)
  GET  /api/trades?limit=50       - 최근 거래
  GET  /api/cash                  - 전략별 최신 현금

Example:
  go run ./cmd/stratbook api
  go run ./cmd/stratbook api --port 8080`,
	RunE: runAPIServer,
}

var (
	apiPort string
)

func init() {
	rootCmd.AddCommand(apiCmd)

	apiCmd.Flags().StringVar(&apiPort, "port", "", "API 서버 포트 (기본 PORT)")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	fmt.Println("=== stratbook API Server ===")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	if apiPort != "" {
		a.cfg.Port = apiPort
	}

	server := newAPIServer(a, nil)
	fmt.Printf("\n✅ Server running on http://localhost:%s\n", a.cfg.Port)
	fmt.Println("\nPress Ctrl+C to stop")

	if err := server.Run(ctx); err != nil {
		return fmt.Errorf("api server: %w", err)
	}

	a.log.Info("Server stopped")
	return nil
}

// newAPIServer builds the status server; jobs may be nil
func newAPIServer(a *app, jobs *handlers.JobsHandler) *api.Server {
	router := api.NewRouter(api.Handlers{
		Positions: handlers.NewPositionsHandler(a.book, a.strategies, a.log),
		Ledger:    handlers.NewLedgerHandler(a.trades, a.log),
		Jobs:      jobs,
	}, a.cfg.MetricsEnabled, a.log)

	return api.New(a.cfg, a.log, router)
}
