package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/coreapi/internal/config"
	"github.com/JakeFAU/coreapi/internal/server"
	"github.com/JakeFAU/coreapi/internal/users"
)

// cfgKeyType is the key for storing the loaded Config in the command context.
type cfgKeyType struct{}

// App is the application surface commands use. *server.App satisfies it; tests
// substitute their own.
type App interface {
	Run(ctx context.Context) error
	Close(ctx context.Context) error
	Users() *users.Store
	Logger() *zap.Logger
}

// newApp is the application factory. It's a variable so tests can replace it.
var newApp = func(ctx context.Context, cfg *config.Config) (App, error) {
	return server.Build(ctx, cfg)
}

func newRootCmd() *cobra.Command {
	var cfgFile string
	cmd := &cobra.Command{
		Use:   "coreapi",
		Short: "Request routing and dispatch service.",
		Long: `coreapi resolves inbound requests against an ordered routing table and
dispatches them to handlers backed by a lazily connected document store.`,
		SilenceUsage: true,

		// Config is loaded once here so every subcommand sees the same values.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), cfgKeyType{}, &cfg))
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML, JSON or TOML)")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newRoutesCmd())
	cmd.AddCommand(newUserCmd())
	return cmd
}

func resolveConfig(ctx context.Context) (*config.Config, error) {
	cfg, ok := ctx.Value(cfgKeyType{}).(*config.Config)
	if !ok || cfg == nil {
		return nil, errors.New("configuration not loaded")
	}
	return cfg, nil
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
