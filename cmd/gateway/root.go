package main

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/axiestudio/chatwidget/pkg/configuration"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gateway",
		Short: "Chat widget gateway admin tools",
	}
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newProfilesCmd())
	return cmd
}

func execute() {
	_ = newRootCmd().Execute()
}

func connectDB(ctx context.Context) (*pgxpool.Pool, error) {
	conf := configuration.Use()
	return pgxpool.New(ctx, conf.Database.Opts)
}
