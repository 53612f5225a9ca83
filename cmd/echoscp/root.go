package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kimsuk/fo-dicom/observability"
	"github.com/kimsuk/fo-dicom/server"
	"github.com/kimsuk/fo-dicom/services"
	"github.com/kimsuk/fo-dicom/types"
)

var (
	verbosity      int
	pretty         bool
	configPath     string
	listenAddress  string
	aeTitle        string
	metricsAddress string

	logger zerolog.Logger

	rootCmd = &cobra.Command{
		Use:   "echoscp",
		Short: "DICOM C-ECHO service class provider",
		Long: `echoscp accepts DICOM associations, negotiates presentation contexts and
answers C-ECHO requests. It is meant as a connectivity probe for PACS and
modality setups: point any echoscu at it to verify that association
negotiation and the Verification service work end to end.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger = observability.NewLogger("echoscp", verbosity, pretty)
		},
		RunE:          runServer,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

// Execute runs the root command. Called once from main.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "Increase verbosity (-v INFO, -vv DEBUG, -vvv TRACE)")
	rootCmd.PersistentFlags().BoolVar(&pretty, "pretty", false, "Human readable log output instead of JSON")

	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to a TOML configuration file")
	rootCmd.Flags().StringVarP(&listenAddress, "listen", "l", "", "Listen address, e.g. :11112 (overrides the config file)")
	rootCmd.Flags().StringVarP(&aeTitle, "ae-title", "a", "", "AE title to accept associations under (overrides the config file)")
	rootCmd.Flags().StringVar(&metricsAddress, "metrics-listen", "", "Expose Prometheus metrics on this address, e.g. :9090")

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("echoscp version %s (commit: %s, built: %s)\n", version, commit, date)
	},
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("listen") {
		cfg.ListenAddress = listenAddress
	}
	if cmd.Flags().Changed("ae-title") {
		cfg.AETitle = aeTitle
	}
	if cmd.Flags().Changed("metrics-listen") {
		cfg.MetricsAddress = metricsAddress
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry := services.NewRegistry(observability.Component(logger, "services"))
	registry.RegisterHandler(types.CEchoRQ, services.NewEchoService(observability.Component(logger, "echo")))

	logger.Info().
		Str("listen_address", cfg.ListenAddress).
		Str("ae_title", cfg.AETitle).
		Str("version", version).
		Msg("starting echoscp")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.ListenAndServe(gctx, cfg.ListenAddress, cfg.AETitle, registry, cfg.ServerOptions(logger)...)
	})
	if cfg.MetricsAddress != "" {
		g.Go(func() error {
			return serveMetrics(gctx, cfg.MetricsAddress, observability.Component(logger, "metrics"))
		})
	}

	err = g.Wait()
	switch {
	case err == nil, errors.Is(err, context.Canceled):
		logger.Info().Msg("echoscp stopped")
		return nil
	default:
		return err
	}
}

// serveMetrics exposes the Prometheus registry over HTTP until ctx is done.
func serveMetrics(ctx context.Context, address string, logger zerolog.Logger) error {
	observability.RegisterMetrics()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: address, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	logger.Info().Str("address", address).Msg("metrics endpoint listening")

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return ctx.Err()
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
