package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/VrindaBansal/mevscope/internal/app"
	"github.com/VrindaBansal/mevscope/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/fx"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the detection engine",
	Long: `Start the engine and run until interrupted. The engine listens for
decoded chain events, keeps per-block state versions, and serves ranked
opportunities over the read API.`,
	RunE: runStart,
}

func init() {
	rootCmd.AddCommand(startCmd)

	startCmd.Flags().String("bind", "", "bind address for API server (overrides config)")
	startCmd.Flags().Int("port", 0, "port for API server (overrides config)")

	viper.BindPFlag("server.host", startCmd.Flags().Lookup("bind"))
	viper.BindPFlag("server.port", startCmd.Flags().Lookup("port"))
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	engine := fx.New(
		fx.Provide(
			func() *config.Config { return cfg },
		),
		app.Module,
		fx.Invoke(func(lifecycle fx.Lifecycle, application *app.Application) {
			lifecycle.Append(fx.Hook{
				OnStart: application.Start,
				OnStop:  application.Stop,
			})
		}),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\nshutdown signal received, stopping engine...")
		cancel()
	}()

	if err := engine.Start(ctx); err != nil {
		return fmt.Errorf("failed to start application: %w", err)
	}

	<-ctx.Done()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), fx.DefaultTimeout)
	defer stopCancel()
	if err := engine.Stop(stopCtx); err != nil {
		fmt.Printf("error during shutdown: %v\n", err)
	}
	return nil
}
