package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/axiestudio/chatwidget/modules/gateway/domain/entities/chatprofile"
	"github.com/axiestudio/chatwidget/modules/gateway/infrastructure/persistence"
	"github.com/axiestudio/chatwidget/pkg/composables"
)

type profileOutput struct {
	ID            int       `json:"id"`
	TenantID      string    `json:"tenant_id"`
	Name          string    `json:"name"`
	Endpoint      string    `json:"endpoint"`
	AuthMethod    string    `json:"auth_method"`
	RequestFormat string    `json:"request_format,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

func newProfilesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profiles",
		Short: "Manage chat widget profiles",
	}
	cmd.AddCommand(newProfilesListCmd())
	cmd.AddCommand(newProfilesAddCmd())
	cmd.AddCommand(newProfilesSeedCmd())
	cmd.AddCommand(newProfilesDeleteCmd())
	return cmd
}

func newProfilesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List configured chat profiles",
		RunE: func(cmd *cobra.Command, args []string) error {
			pool, err := connectDB(cmd.Context())
			if err != nil {
				return err
			}
			defer pool.Close()

			ctx := composables.WithPool(cmd.Context(), pool)
			repo := persistence.NewChatProfileRepository()

			profiles, err := repo.GetAll(ctx)
			if err != nil {
				return err
			}

			out := make([]profileOutput, 0, len(profiles))
			for _, p := range profiles {
				out = append(out, profileOutput{
					ID:            p.ID(),
					TenantID:      p.TenantID().String(),
					Name:          p.Name(),
					Endpoint:      p.Endpoint(),
					AuthMethod:    string(p.AuthMethod()),
					RequestFormat: string(p.RequestFormat()),
					CreatedAt:     p.CreatedAt(),
				})
			}
			return writeJSON(out)
		},
	}
}

func newProfilesAddCmd() *cobra.Command {
	var (
		tenantID      string
		name          string
		endpoint      string
		apiKey        string
		authMethod    string
		requestFormat string
		headers       []string
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a chat profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			tid, err := uuid.Parse(tenantID)
			if err != nil {
				return fmt.Errorf("invalid --tenant: %w", err)
			}

			customHeaders, err := parseHeaders(headers)
			if err != nil {
				return err
			}

			opts := []chatprofile.Option{
				chatprofile.WithRequestFormat(chatprofile.RequestFormat(requestFormat)),
			}
			if len(customHeaders) > 0 {
				opts = append(opts, chatprofile.WithCustomHeaders(customHeaders))
			}
			profile, err := chatprofile.New(tid, name, endpoint, apiKey, chatprofile.AuthMethod(authMethod), opts...)
			if err != nil {
				return err
			}

			pool, err := connectDB(cmd.Context())
			if err != nil {
				return err
			}
			defer pool.Close()

			ctx := composables.WithPool(cmd.Context(), pool)
			repo := persistence.NewChatProfileRepository()

			saved, err := repo.Save(ctx, profile)
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

	cmd.Flags().StringVar(&tenantID, "tenant", "", "Tenant UUID (required)")
	cmd.Flags().StringVar(&name, "name", "", "Profile name (required)")
	cmd.Flags().StringVar(&endpoint, "endpoint", "", "Upstream endpoint URL (required)")
	cmd.Flags().StringVar(&apiKey, "api-key", "", "Upstream API key")
	cmd.Flags().StringVar(&authMethod, "auth", "header", "Auth method: header, bearer, query or body")
	cmd.Flags().StringVar(&requestFormat, "format", "", "Request format pin (empty for auto-detect)")
	cmd.Flags().StringSliceVar(&headers, "header", nil, "Extra header as Name=Value (repeatable)")
	_ = cmd.MarkFlagRequired("tenant")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("endpoint")
	return cmd
}

func newProfilesDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a chat profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid profile id %q: %w", args[0], err)
			}

			pool, err := connectDB(cmd.Context())
			if err != nil {
				return err
			}
			defer pool.Close()

			ctx := composables.WithPool(cmd.Context(), pool)
			repo := persistence.NewChatProfileRepository()

			if err := repo.Delete(ctx, id); err != nil {
				return err
			}
			return writeJSON(map[string]any{"deleted": id})
		},
	}
}

func parseHeaders(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	headers := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid --header %q, expected Name=Value", pair)
		}
		headers[name] = value
	}
	return headers, nil
}
