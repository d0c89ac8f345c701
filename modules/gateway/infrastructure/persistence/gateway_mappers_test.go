package persistence_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/axiestudio/chatwidget/modules/gateway/domain/entities/chatprofile"
	"github.com/axiestudio/chatwidget/modules/gateway/infrastructure/persistence"
	"github.com/axiestudio/chatwidget/modules/gateway/infrastructure/persistence/models"
)

func TestChatProfileMapping_RoundTrip(t *testing.T) {
	tenantID := uuid.New()
	createdAt := time.Date(2025, 2, 3, 4, 5, 6, 0, time.UTC)

	original, err := chatprofile.New(
		tenantID, "support", "https://bot.example.com/chat", "sk-test", chatprofile.AuthBearer,
		chatprofile.WithID(3),
		chatprofile.WithRequestFormat(chatprofile.FormatLangflow),
		chatprofile.WithCustomHeaders(map[string]string{"X-Team": "support"}),
		chatprofile.WithCustomPayload(map[string]any{"flow": "faq"}),
		chatprofile.WithCreatedAt(createdAt),
		chatprofile.WithUpdatedAt(createdAt),
	)
	require.NoError(t, err)

	model, err := persistence.ToDBChatProfile(original)
	require.NoError(t, err)
	require.Equal(t, 3, model.ID)
	require.Equal(t, tenantID.String(), model.TenantID)
	require.True(t, model.RequestFormat.Valid)
	require.Equal(t, "langflow", model.RequestFormat.String)

	restored, err := persistence.ToDomainChatProfile(model)
	require.NoError(t, err)
	require.Equal(t, original.ID(), restored.ID())
	require.Equal(t, original.TenantID(), restored.TenantID())
	require.Equal(t, original.Endpoint(), restored.Endpoint())
	require.Equal(t, original.AuthMethod(), restored.AuthMethod())
	require.Equal(t, original.RequestFormat(), restored.RequestFormat())
	require.Equal(t, original.CustomHeaders(), restored.CustomHeaders())
	require.Equal(t, original.CustomPayload(), restored.CustomPayload())
}

func TestToDBChatProfile_AutoFormatIsNull(t *testing.T) {
	profile, err := chatprofile.New(uuid.New(), "support", "https://bot.example.com/chat", "k", chatprofile.AuthHeader)
	require.NoError(t, err)

	model, err := persistence.ToDBChatProfile(profile)
	require.NoError(t, err)
	require.False(t, model.RequestFormat.Valid)
	require.Nil(t, model.CustomHeaders)
	require.Nil(t, model.CustomPayload)
}

func TestToDomainChatProfile_RejectsBadTenantID(t *testing.T) {
	_, err := persistence.ToDomainChatProfile(&models.ChatProfile{
		TenantID:   "not-a-uuid",
		Name:       "x",
		Endpoint:   "https://x.example.com",
		AuthMethod: "header",
	})
	require.Error(t, err)
}

func TestToDomainChatProfile_RejectsBadAuthMethod(t *testing.T) {
	_, err := persistence.ToDomainChatProfile(&models.ChatProfile{
		TenantID:   uuid.NewString(),
		Name:       "x",
		Endpoint:   "https://x.example.com",
		AuthMethod: "oauth",
	})
	require.ErrorIs(t, err, chatprofile.ErrInvalidAuthMethod)
}
