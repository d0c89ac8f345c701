package persistence

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/axiestudio/chatwidget/modules/gateway/domain/entities/exchange"
	"github.com/axiestudio/chatwidget/modules/gateway/infrastructure/persistence/models"
	"github.com/axiestudio/chatwidget/pkg/composables"
)

const (
	messageInsertQuery = `
		INSERT INTO messages (profile_id, session_id, message, is_user, created_at)
		VALUES ($1, $2, $3, $4, $5)`
	messageListQuery = `
		SELECT id, profile_id, session_id, message, is_user, created_at
		FROM messages
		WHERE profile_id = $1 AND session_id = $2
		ORDER BY created_at, id`
	messageCountQuery = `
		SELECT COUNT(*) FROM messages WHERE profile_id = $1 AND session_id = $2`
)

type MessageRepository struct{}

func NewMessageRepository() exchange.Repository {
	return &MessageRepository{}
}

func (r *MessageRepository) Append(ctx context.Context, msgs ...exchange.Message) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	for _, msg := range msgs {
		model := ToDBMessage(msg)
		if _, err := tx.Exec(
			ctx,
			messageInsertQuery,
			model.ProfileID,
			model.SessionID,
			model.Message,
			model.IsUser,
			model.CreatedAt,
		); err != nil {
			return errors.Wrap(err, "failed to insert message")
		}
	}
	return nil
}

func (r *MessageRepository) ListBySession(ctx context.Context, profileID int, sessionID string) ([]exchange.Message, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get transaction")
	}

	rows, err := tx.Query(ctx, messageListQuery, profileID, sessionID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to execute query")
	}
	defer rows.Close()

	var messages []exchange.Message
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(
			&m.ID,
			&m.ProfileID,
			&m.SessionID,
			&m.Message,
			&m.IsUser,
			&m.CreatedAt,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan message row")
		}
		msg, err := ToDomainMessage(&m)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "row iteration error")
	}

	return messages, nil
}

func (r *MessageRepository) CountBySession(ctx context.Context, profileID int, sessionID string) (int64, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return 0, err
	}
	var count int64
	if err := tx.QueryRow(ctx, messageCountQuery, profileID, sessionID).Scan(&count); err != nil {
		return 0, errors.Wrap(err, "failed to count messages")
	}
	return count, nil
}
