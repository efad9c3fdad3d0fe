package sqlite

import (
	"context"
	"database/sql"
	"strings"

	"github.com/example/family-scheduler/internal/persistence"
)

// DefaultChatPlatform is recorded for chat links created without a platform.
const DefaultChatPlatform = "telegram"

// ChannelRepository stores push subscriptions and chat links.
type ChannelRepository struct {
	pool   *ConnectionPool
	mapper *ErrorMapper
}

// NewChannelRepository creates a channel repository on pool.
func NewChannelRepository(pool *ConnectionPool) *ChannelRepository {
	return &ChannelRepository{pool: pool, mapper: NewErrorMapper()}
}

// UpsertPushSubscription registers an endpoint, replacing the keys and owner
// when the endpoint is already known.
func (r *ChannelRepository) UpsertPushSubscription(ctx context.Context, sub persistence.PushSubscription) error {
	if sub.ID == "" || sub.UserID == "" || strings.TrimSpace(sub.Endpoint) == "" || sub.P256dh == "" || sub.Auth == "" {
		return persistence.ErrConstraintViolation
	}
	_, err := r.pool.db.ExecContext(ctx,
		`INSERT INTO push_subscriptions (id, user_id, endpoint, p256dh, auth, user_agent, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (endpoint) DO UPDATE SET user_id = excluded.user_id, p256dh = excluded.p256dh,
			auth = excluded.auth, user_agent = excluded.user_agent`,
		sub.ID, sub.UserID, sub.Endpoint, sub.P256dh, sub.Auth, nullString(sub.UserAgent), formatTime(sub.CreatedAt))
	return r.mapper.MapError(err)
}

// ListPushSubscriptions returns a user's endpoints, oldest first.
func (r *ChannelRepository) ListPushSubscriptions(ctx context.Context, userID string) ([]persistence.PushSubscription, error) {
	rows, err := r.pool.db.QueryContext(ctx,
		`SELECT id, user_id, endpoint, p256dh, auth, user_agent, created_at
		FROM push_subscriptions WHERE user_id = ? ORDER BY created_at ASC, id ASC`, userID)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var subs []persistence.PushSubscription
	for rows.Next() {
		var (
			sub       persistence.PushSubscription
			userAgent sql.NullString
			createdAt string
		)
		if err := rows.Scan(&sub.ID, &sub.UserID, &sub.Endpoint, &sub.P256dh, &sub.Auth, &userAgent, &createdAt); err != nil {
			return nil, r.mapper.MapError(err)
		}
		sub.UserAgent = stringPtr(userAgent)
		if sub.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return subs, nil
}

// DeletePushSubscription removes an endpoint the push service reported gone.
func (r *ChannelRepository) DeletePushSubscription(ctx context.Context, endpoint string) error {
	result, err := r.pool.db.ExecContext(ctx, `DELETE FROM push_subscriptions WHERE endpoint = ?`, endpoint)
	if err != nil {
		return r.mapper.MapError(err)
	}
	return rowsAffected(result)
}

// LinkChat connects a chat id to a user, replacing any previous link of the chat.
func (r *ChannelRepository) LinkChat(ctx context.Context, link persistence.ChatLink) error {
	if strings.TrimSpace(link.ChatID) == "" || link.UserID == "" {
		return persistence.ErrConstraintViolation
	}
	if link.Platform == "" {
		link.Platform = DefaultChatPlatform
	}
	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM chat_links WHERE user_id = ? AND chat_id <> ?`, link.UserID, link.ChatID); err != nil {
			return r.mapper.MapError(err)
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO chat_links (chat_id, platform, user_id, created_at) VALUES (?, ?, ?, ?)
			ON CONFLICT (chat_id) DO UPDATE SET platform = excluded.platform, user_id = excluded.user_id`,
			link.ChatID, link.Platform, link.UserID, formatTime(link.CreatedAt))
		return r.mapper.MapError(err)
	})
}

// GetChatLinkByUser returns the chat linked to a user.
func (r *ChannelRepository) GetChatLinkByUser(ctx context.Context, userID string) (persistence.ChatLink, error) {
	return r.queryChatLink(ctx, `SELECT chat_id, platform, user_id, created_at FROM chat_links WHERE user_id = ?`, userID)
}

// GetChatLink returns the link of a chat id.
func (r *ChannelRepository) GetChatLink(ctx context.Context, chatID string) (persistence.ChatLink, error) {
	return r.queryChatLink(ctx, `SELECT chat_id, platform, user_id, created_at FROM chat_links WHERE chat_id = ?`, chatID)
}

func (r *ChannelRepository) queryChatLink(ctx context.Context, query string, arg string) (persistence.ChatLink, error) {
	var (
		link      persistence.ChatLink
		createdAt string
	)
	err := r.pool.db.QueryRowContext(ctx, query, arg).Scan(&link.ChatID, &link.Platform, &link.UserID, &createdAt)
	if err != nil {
		return persistence.ChatLink{}, r.mapper.MapError(err)
	}
	if link.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
		return persistence.ChatLink{}, err
	}
	return link, nil
}
