package persistence

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/axiestudio/chatwidget/modules/gateway/domain/entities/chatprofile"
	"github.com/axiestudio/chatwidget/modules/gateway/infrastructure/persistence/models"
	"github.com/axiestudio/chatwidget/pkg/composables"
)

const (
	profileFindQuery = `
		SELECT id, tenant_id, name, endpoint, api_key, auth_method, request_format, custom_headers, custom_payload, created_at, updated_at
		FROM chat_profiles`
	profileInsertQuery = `
		INSERT INTO chat_profiles (tenant_id, name, endpoint, api_key, auth_method, request_format, custom_headers, custom_payload, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`
	profileUpdateQuery = `
		UPDATE chat_profiles
		SET name = $1, endpoint = $2, api_key = $3, auth_method = $4, request_format = $5, custom_headers = $6, custom_payload = $7, updated_at = $8
		WHERE id = $9`
	profileDeleteQuery = `DELETE FROM chat_profiles WHERE id = $1`
)

type ChatProfileRepository struct{}

func NewChatProfileRepository() chatprofile.Repository {
	return &ChatProfileRepository{}
}

func (r *ChatProfileRepository) GetByID(ctx context.Context, id int) (chatprofile.ChatProfile, error) {
	profiles, err := r.queryProfiles(ctx, profileFindQuery+" WHERE id = $1", id)
	if err != nil {
		return nil, err
	}
	if len(profiles) == 0 {
		return nil, chatprofile.ErrProfileNotFound
	}
	return profiles[0], nil
}

func (r *ChatProfileRepository) GetAll(ctx context.Context) ([]chatprofile.ChatProfile, error) {
	return r.queryProfiles(ctx, profileFindQuery+" ORDER BY id")
}

func (r *ChatProfileRepository) Save(ctx context.Context, profile chatprofile.ChatProfile) (chatprofile.ChatProfile, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	model, err := ToDBChatProfile(profile)
	if err != nil {
		return nil, err
	}

	if model.ID == 0 {
		var id int
		if err := tx.QueryRow(
			ctx,
			profileInsertQuery,
			model.TenantID,
			model.Name,
			model.Endpoint,
			model.APIKey,
			model.AuthMethod,
			model.RequestFormat,
			model.CustomHeaders,
			model.CustomPayload,
			model.CreatedAt,
			model.UpdatedAt,
		).Scan(&id); err != nil {
			return nil, errors.Wrap(err, "failed to insert chat profile")
		}
		return r.GetByID(ctx, id)
	}

	if _, err := tx.Exec(
		ctx,
		profileUpdateQuery,
		model.Name,
		model.Endpoint,
		model.APIKey,
		model.AuthMethod,
		model.RequestFormat,
		model.CustomHeaders,
		model.CustomPayload,
		model.UpdatedAt,
		model.ID,
	); err != nil {
		return nil, errors.Wrap(err, "failed to update chat profile")
	}
	return r.GetByID(ctx, model.ID)
}

func (r *ChatProfileRepository) Delete(ctx context.Context, id int) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, profileDeleteQuery, id)
	return err
}

func (r *ChatProfileRepository) queryProfiles(ctx context.Context, query string, args ...interface{}) ([]chatprofile.ChatProfile, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get transaction")
	}

	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to execute query")
	}
	defer rows.Close()

	var profiles []chatprofile.ChatProfile
	for rows.Next() {
		var m models.ChatProfile
		if err := rows.Scan(
			&m.ID,
			&m.TenantID,
			&m.Name,
			&m.Endpoint,
			&m.APIKey,
			&m.AuthMethod,
			&m.RequestFormat,
			&m.CustomHeaders,
			&m.CustomPayload,
			&m.CreatedAt,
			&m.UpdatedAt,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan chat profile row")
		}
		profile, err := ToDomainChatProfile(&m)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, profile)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "row iteration error")
	}

	return profiles, nil
}
