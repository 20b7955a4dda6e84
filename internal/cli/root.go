package cli

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	dbPath string
)

var rootCmd = &cobra.Command{
	Use:   "liftlab",
	Short: "LiftLab - experiment statistics and attribution engine",
	Long: `LiftLab runs A/B tests and tells you what the numbers mean.

Single Go binary, embedded SQLite. Create tests, record events (or let
the beacon server collect them), then ask for significance, multi-touch
attribution, campaign ROI, forecasts and recommendations.`,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// .env is optional; real env always wins.
	_ = godotenv.Load()

	rootCmd.PersistentFlags().StringVar(&dbPath, "db", getEnvOrDefault("LIFTLAB_DB_PATH", "./liftlab.db"), "database path")
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
