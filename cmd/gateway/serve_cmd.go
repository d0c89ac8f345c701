package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/axiestudio/chatwidget/internal/server"
	"github.com/axiestudio/chatwidget/pkg/configuration"
	"github.com/axiestudio/chatwidget/pkg/eventbus"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the chat gateway HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			conf := configuration.Use()
			logger := conf.Logger()
			defer conf.Unload()

			pool, err := connectDB(cmd.Context())
			if err != nil {
				return err
			}
			defer pool.Close()

			srv, service := server.New(server.Options{
				Configuration: conf,
				Pool:          pool,
				Logger:        logger,
				EventBus:      eventbus.NewEventPublisher(logger),
			})

			go func() {
				sigCh := make(chan os.Signal, 1)
				signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
				<-sigCh

				shutdownCtx, cancel := context.WithTimeout(context.Background(), conf.ShutdownTimeout)
				defer cancel()
				if err := srv.Shutdown(shutdownCtx); err != nil {
					logger.WithError(err).Error("server shutdown failed")
				}
				service.Flush()
			}()

			logger.Infof("starting chat gateway on %s", conf.SocketAddress)
			return srv.Start(conf.SocketAddress)
		},
	}
}
