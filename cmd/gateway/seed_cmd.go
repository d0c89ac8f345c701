package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/axiestudio/chatwidget/modules/gateway/domain/entities/chatprofile"
	"github.com/axiestudio/chatwidget/modules/gateway/infrastructure/persistence"
	"github.com/axiestudio/chatwidget/pkg/composables"
)

func newProfilesSeedCmd() *cobra.Command {
	var tenantID string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Insert a local development chat profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			tid, err := uuid.Parse(tenantID)
			if err != nil {
				return fmt.Errorf("invalid --tenant: %w", err)
			}

			profile, err := chatprofile.New(
				tid,
				"Local echo bot",
				"http://localhost:7860/api/v1/run/echo",
				"dev-key",
				chatprofile.AuthHeader,
				chatprofile.WithRequestFormat(chatprofile.FormatGeneric),
			)
			if err != nil {
				return err
			}

			pool, err := connectDB(cmd.Context())
			if err != nil {
				return err
			}
			defer pool.Close()

			ctx := composables.WithPool(cmd.Context(), pool)
			saved, err := persistence.NewChatProfileRepository().Save(ctx, profile)
			if err != nil {
				return err
			}
			return writeJSON(profileOutput{
				ID:            saved.ID(),
				TenantID:      saved.TenantID().String(),
				Name:          saved.Name(),
				Endpoint:      saved.Endpoint(),
				AuthMethod:    string(saved.AuthMethod()),
				RequestFormat: string(saved.RequestFormat()),
				CreatedAt:     saved.CreatedAt(),
			})
		},
	}

	cmd.Flags().StringVar(&tenantID, "tenant", uuid.Nil.String(), "Tenant UUID")
	return cmd
}
