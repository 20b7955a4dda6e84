package cli

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/liftlab/liftlab/internal/server"
	"github.com/liftlab/liftlab/internal/store"
)

var (
	port      int
	tokenFile string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Start the liftlab HTTP server.

The server provides:
  - Beacon endpoint for tracking impressions and conversions
  - Read-only results API
  - Token-protected admin endpoints for lifecycle and recommendations
  - Health check endpoint

The admin token is printed at startup and written to --token-file.

Example:
  liftlab serve --port 8080`,
	RunE: runServe,
}

func init() {
	defaultPort := 8080
	if p := os.Getenv("LIFTLAB_PORT"); p != "" {
		if parsed, err := strconv.Atoi(p); err == nil {
			defaultPort = parsed
		}
	}

	serveCmd.Flags().IntVarP(&port, "port", "p", defaultPort, "port to listen on")
	serveCmd.Flags().StringVar(&tokenFile, "token-file", ".liftlab-token", "file to write the admin token to")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer logger.Sync()

	s, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer s.Close()

	srv := server.New(s, port, tokenFile, logger)
	return srv.Start()
}
