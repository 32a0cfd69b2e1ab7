// Command cathedralctl inspects and edits a Cathedral store directly.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/cathedral/cathedral/internal/app"
	"github.com/cathedral/cathedral/internal/config"
	"github.com/cathedral/cathedral/internal/kv"
)

var (
	personaName string
	verbose     bool

	// openStore is replaced in tests.
	openStore = func(ctx context.Context, cfg config.Config) (kv.Store, error) {
		store, _, err := app.OpenStore(ctx, cfg)
		return store, err
	}
	loadConfig = config.Load
)

var rootCmd = &cobra.Command{
	Use:   "cathedralctl",
	Short: "Administer Cathedral sessions, memories and history",
	Long: `cathedralctl talks to the configured store (STORE_BACKEND, REDIS_URL,
DATABASE_URL, SQLITE_PATH) without going through the HTTP server.

  cathedralctl sessions list --persona hollow
  cathedralctl memories add --persona rhys "prefers mornings"
  cathedralctl history export --persona hollow --format yaml`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&personaName, "persona", "p", "hollow", "Persona namespace")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log store activity to stderr")
}

// withStores resolves the selected persona and runs fn against its stores.
func withStores(cmd *cobra.Command, fn func(ctx context.Context, st app.Stores) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	p, err := app.Registry(cfg).Get(personaName)
	if err != nil {
		return fmt.Errorf("%w: %q", err, personaName)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	logger := zerolog.Nop()
	if verbose {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr()}).With().Timestamp().Logger()
	}
	return fn(ctx, app.NewStores(store, cfg, p, logger))
}
