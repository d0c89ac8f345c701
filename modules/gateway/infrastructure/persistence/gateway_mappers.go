package persistence

import (
	"encoding/json"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/axiestudio/chatwidget/modules/gateway/domain/entities/chatprofile"
	"github.com/axiestudio/chatwidget/modules/gateway/domain/entities/exchange"
	"github.com/axiestudio/chatwidget/modules/gateway/infrastructure/persistence/models"
	"github.com/axiestudio/chatwidget/pkg/mapping"
)

func ToDomainChatProfile(m *models.ChatProfile) (chatprofile.ChatProfile, error) {
	tenantID, err := uuid.Parse(m.TenantID)
	if err != nil {
		return nil, errors.Wrap(err, "invalid tenant id")
	}

	var customHeaders map[string]string
	if len(m.CustomHeaders) > 0 {
		if err := json.Unmarshal(m.CustomHeaders, &customHeaders); err != nil {
			return nil, errors.Wrap(err, "invalid custom headers")
		}
	}
	var customPayload map[string]any
	if len(m.CustomPayload) > 0 {
		if err := json.Unmarshal(m.CustomPayload, &customPayload); err != nil {
			return nil, errors.Wrap(err, "invalid custom payload")
		}
	}

	return chatprofile.New(
		tenantID,
		m.Name,
		m.Endpoint,
		m.APIKey,
		chatprofile.AuthMethod(m.AuthMethod),
		chatprofile.WithID(m.ID),
		chatprofile.WithRequestFormat(chatprofile.RequestFormat(mapping.SQLNullStringToValue(m.RequestFormat))),
		chatprofile.WithCustomHeaders(customHeaders),
		chatprofile.WithCustomPayload(customPayload),
		chatprofile.WithCreatedAt(m.CreatedAt),
		chatprofile.WithUpdatedAt(m.UpdatedAt),
	)
}

func ToDBChatProfile(p chatprofile.ChatProfile) (*models.ChatProfile, error) {
	var customHeaders, customPayload []byte
	var err error
	if p.CustomHeaders() != nil {
		if customHeaders, err = json.Marshal(p.CustomHeaders()); err != nil {
			return nil, errors.Wrap(err, "marshal custom headers")
		}
	}
	if p.CustomPayload() != nil {
		if customPayload, err = json.Marshal(p.CustomPayload()); err != nil {
			return nil, errors.Wrap(err, "marshal custom payload")
		}
	}

	return &models.ChatProfile{
		ID:            p.ID(),
		TenantID:      p.TenantID().String(),
		Name:          p.Name(),
		Endpoint:      p.Endpoint(),
		APIKey:        p.APIKey(),
		AuthMethod:    string(p.AuthMethod()),
		RequestFormat: mapping.ValueToSQLNullString(string(p.RequestFormat())),
		CustomHeaders: customHeaders,
		CustomPayload: customPayload,
		CreatedAt:     p.CreatedAt(),
		UpdatedAt:     p.UpdatedAt(),
	}, nil
}

func ToDomainMessage(m *models.Message) (exchange.Message, error) {
	return exchange.NewMessage(m.ProfileID, m.SessionID, m.Message, m.IsUser, m.CreatedAt)
}

func ToDBMessage(msg exchange.Message) *models.Message {
	createdAt := msg.CreatedAt()
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	return &models.Message{
		ProfileID: msg.ProfileID(),
		SessionID: msg.SessionID(),
		Message:   msg.Text(),
		IsUser:    msg.IsUser(),
		CreatedAt: createdAt,
	}
}
