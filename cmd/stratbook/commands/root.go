package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	strategiesFile string
	verbose        bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "stratbook",
	Short: "Multi-strategy position book and MOC order engine",
	Long: `stratbook

여러 전략의 목표 포지션을 합산해 장 마감(MOC) 주문을 내고,
체결 결과를 전략별 장부와 현금/NAV로 배분합니다.

Usage:
  go run ./cmd/stratbook [command]

Examples:
  go run ./cmd/stratbook run --dry-run
  go run ./cmd/stratbook run --paper --no-delay
  go run ./cmd/stratbook scheduler start
  go run ./cmd/stratbook positions
  go run ./cmd/stratbook api`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&strategiesFile, "strategies", "", "strategy list (default STRATEGIES_FILE)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
