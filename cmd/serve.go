package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/prepmate/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the interview API over HTTP",
	Run: func(_ *cobra.Command, _ []string) {
		serve()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "listen address (default :8000)")
	viper.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))
}

func serve() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := newLogger()

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	logger.Info("starting the prepmate server", zap.String("version", version))

	comps, err := buildComponents(ctx, config, logger)
	if err != nil {
		logger.Fatal("building the interview service", zap.Error(err))
	}
	defer comps.Close()

	srv, err := server.New(config.Server, server.Deps{
		Service:     comps.service,
		Transcriber: comps.transcriber,
		Synthesizer: comps.synthesizer,
		Metrics:     comps.metrics,
		Logger:      logger.Named("http"),
	})
	if err != nil {
		logger.Fatal("creating the server", zap.Error(err))
	}

	if err := srv.Run(ctx); err != nil {
		logger.Fatal("serving", zap.Error(err))
	}

	logger.Info("server stopped", zap.Any("metrics", comps.metrics.Snapshot()))
}
