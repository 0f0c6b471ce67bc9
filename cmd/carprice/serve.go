package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"carprice/internal/api"
	"carprice/internal/dataset"
	"carprice/internal/metrics"
	"carprice/internal/stats"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var (
	servePort      int
	serveRateLimit float64
	serveBurst     int
	serveOrigins   []string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve predictions and statistics over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		mw := metrics.NewWrapper(metrics.New())

		data, err := loadReferenceData(ctx, settings, mw)
		if err != nil {
			return err
		}
		pipe, err := buildPipeline(ctx, settings, data.encoder, mw)
		if err != nil {
			return err
		}

		var st *stats.Stats
		if data.stats != nil {
			if st, err = stats.New(data.stats); err != nil {
				log.Warn().Err(err).Msg("Statistics disabled")
				st = nil
			}
		}

		port := settings.HTTPPort
		if cmd.Flags().Changed("port") {
			port = servePort
		}
		server := api.NewServer(pipe, st, dataset.ChoicesFrom(data.reference), mw, api.Options{
			Port:           port,
			PredictTimeout: settings.ModelTimeout + settings.ModelTimeout/2,
			RateLimit:      serveRateLimit,
			Burst:          serveBurst,
			AllowedOrigins: serveOrigins,
		})

		g, gctx := errgroup.WithContext(ctx)
		g.Go(server.Start)
		g.Go(func() error {
			<-gctx.Done()
			log.Info().Msg("Shutdown signal received")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), settings.ShutdownGrace)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("server shutdown: %w", err)
			}
			return nil
		})

		if err := g.Wait(); err != nil {
			return err
		}
		log.Info().Msg("Server stopped")
		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 8080, "HTTP port (overrides config)")
	serveCmd.Flags().Float64Var(&serveRateLimit, "rate-limit", 0, "max predictions per second, 0 for unlimited")
	serveCmd.Flags().IntVar(&serveBurst, "burst", 0, "prediction burst size when rate limited")
	serveCmd.Flags().StringSliceVar(&serveOrigins, "cors-origin", nil, "allowed CORS origins")
	rootCmd.AddCommand(serveCmd)
}
