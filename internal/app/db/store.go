package db

import (
	"context"
	"fmt"
	"slices"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"sdtchat/internal/app/chat"
	"sdtchat/internal/app/user"
)

// Channel is a chat channel row.
type Channel struct {
	ID           string
	Name         string
	PasswordHash string
	OwnerID      string
	Logo         string
	CreatedAt    time.Time
}

// HasPassword reports whether joining requires a channel password.
func (c *Channel) HasPassword() bool {
	return c.PasswordHash != ""
}

// querier is the subset of pgxpool.Pool the Store needs.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store implements chat.Gateway on PostgreSQL.
type Store struct {
	db querier
	sb sq.StatementBuilderType
}

var _ chat.Gateway = (*Store)(nil)

// NewStore wraps a connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{
		db: pool,
		sb: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// FindChannel returns the channel with id, or nil when it does not exist.
func (s *Store) FindChannel(ctx context.Context, id string) (*Channel, error) {
	query, args, err := s.sb.
		Select("id", "name", "COALESCE(password_hash, '')", "COALESCE(owner_id, '')", "COALESCE(logo, '')", "created_at").
		From("channels").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build sql query: %w", err)
	}

	var c Channel
	err = s.db.QueryRow(ctx, query, args...).Scan(&c.ID, &c.Name, &c.PasswordHash, &c.OwnerID, &c.Logo, &c.CreatedAt)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find channel %s: %w", id, err)
	}

	return &c, nil
}

func (s *Store) FindBan(ctx context.Context, channelID, userID string) (*chat.Ban, error) {
	query, args, err := s.sb.
		Select("channel_id", "user_id", "banned_by", "reason", "created_at").
		From("channel_bans").
		Where(sq.Eq{"channel_id": channelID, "user_id": userID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build sql query: %w", err)
	}

	var b chat.Ban
	err = s.db.QueryRow(ctx, query, args...).Scan(&b.ChannelID, &b.UserID, &b.BannedBy, &b.Reason, &b.CreatedAt)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find ban: %w", err)
	}

	return &b, nil
}

func (s *Store) FindMembership(ctx context.Context, channelID, userID string) (*chat.Membership, error) {
	query, args, err := s.sb.
		Select("role", "nickname_color", "warnings", "is_muted").
		From("channel_members").
		Where(sq.Eq{"channel_id": channelID, "user_id": userID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build sql query: %w", err)
	}

	var (
		m    chat.Membership
		role string
	)
	err = s.db.QueryRow(ctx, query, args...).Scan(&role, &m.Color, &m.Warnings, &m.Muted)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find membership: %w", err)
	}

	m.Role = chat.Role(role)
	return &m, nil
}

func (s *Store) UpsertMembership(ctx context.Context, channelID, userID string, m chat.Membership) error {
	query, args, err := s.upsertMembershipQuery(channelID, userID, m).ToSql()
	if err != nil {
		return fmt.Errorf("failed to build sql query: %w", err)
	}

	if _, err := s.db.Exec(ctx, query, args...); err != nil {
		return writeError("upsert membership", err)
	}
	return nil
}

func (s *Store) upsertMembershipQuery(channelID, userID string, m chat.Membership) sq.InsertBuilder {
	role := m.Role
	if role != chat.RoleModerator {
		role = chat.RoleUser
	}

	return s.sb.
		Insert("channel_members").
		Columns("channel_id", "user_id", "role", "nickname_color", "warnings", "is_muted").
		Values(channelID, userID, string(role), m.Color, m.Warnings, m.Muted).
		Suffix("ON CONFLICT (channel_id, user_id) DO UPDATE SET " +
			"role = EXCLUDED.role, nickname_color = EXCLUDED.nickname_color, " +
			"warnings = EXCLUDED.warnings, is_muted = EXCLUDED.is_muted")
}

func (s *Store) FindChannelOwner(ctx context.Context, channelID string) (string, error) {
	query, args, err := s.sb.
		Select("COALESCE(owner_id, '')").
		From("channels").
		Where(sq.Eq{"id": channelID}).
		ToSql()
	if err != nil {
		return "", fmt.Errorf("failed to build sql query: %w", err)
	}

	var owner string
	err = s.db.QueryRow(ctx, query, args...).Scan(&owner)
	if isNoRows(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("find channel owner: %w", err)
	}

	return owner, nil
}

func (s *Store) FindProfile(ctx context.Context, userID string) (*user.Profile, error) {
	query, args, err := s.sb.
		Select(
			"u.discord_id",
			"COALESCE(NULLIF(u.custom_nickname, ''), u.discord_username)",
			"COALESCE(u.avatar, '')",
			"COALESCE(g.short_name, '')",
			"COALESCE(g.color, '')",
		).
		From("users u").
		LeftJoin("guilds g ON g.id = u.guild_id").
		Where(sq.Eq{"u.discord_id": userID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build sql query: %w", err)
	}

	var p user.Profile
	err = s.db.QueryRow(ctx, query, args...).Scan(&p.ID, &p.Nickname, &p.Avatar, &p.Guild, &p.GuildColor)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find profile: %w", err)
	}

	return &p, nil
}

func (s *Store) InsertMessage(ctx context.Context, channelID, userID, content string) error {
	query, args, err := s.sb.
		Insert("messages").
		Columns("channel_id", "user_id", "content", "type").
		Values(channelID, userID, content, "text").
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build sql query: %w", err)
	}

	if _, err := s.db.Exec(ctx, query, args...); err != nil {
		return writeError("insert message", err)
	}
	return nil
}

// RecentMessages returns up to limit messages of channelID, oldest first.
func (s *Store) RecentMessages(ctx context.Context, channelID string, limit int) ([]chat.StoredMessage, error) {
	if limit <= 0 {
		return nil, nil
	}

	query, args, err := s.recentMessagesQuery(channelID, limit).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build sql query: %w", err)
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("recent messages: %w", err)
	}

	messages, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (chat.StoredMessage, error) {
		var m chat.StoredMessage
		err := row.Scan(&m.ID, &m.ChannelID, &m.UserID, &m.Nickname, &m.Avatar, &m.Color,
			&m.Guild, &m.GuildColor, &m.Content, &m.Type, &m.CreatedAt)
		return m, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan recent messages: %w", err)
	}

	slices.Reverse(messages)
	return messages, nil
}

func (s *Store) recentMessagesQuery(channelID string, limit int) sq.SelectBuilder {
	return s.sb.
		Select(
			"m.id",
			"m.channel_id",
			"m.user_id",
			"COALESCE(NULLIF(u.custom_nickname, ''), u.discord_username, '')",
			"COALESCE(u.avatar, '')",
			"COALESCE(cm.nickname_color, '')",
			"COALESCE(g.short_name, '')",
			"COALESCE(g.color, '')",
			"m.content",
			"m.type",
			"m.created_at",
		).
		From("messages m").
		LeftJoin("users u ON u.discord_id = m.user_id").
		LeftJoin("channel_members cm ON cm.channel_id = m.channel_id AND cm.user_id = m.user_id").
		LeftJoin("guilds g ON g.id = u.guild_id").
		Where(sq.Eq{"m.channel_id": channelID}).
		OrderBy("m.created_at DESC", "m.id DESC").
		Limit(uint64(limit))
}

func (s *Store) InsertBan(ctx context.Context, channelID, userID, bannedBy, reason string) error {
	query, args, err := s.sb.
		Insert("channel_bans").
		Columns("channel_id", "user_id", "banned_by", "reason").
		Values(channelID, userID, bannedBy, reason).
		Suffix("ON CONFLICT (channel_id, user_id) DO UPDATE SET " +
			"banned_by = EXCLUDED.banned_by, reason = EXCLUDED.reason, created_at = now()").
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build sql query: %w", err)
	}

	if _, err := s.db.Exec(ctx, query, args...); err != nil {
		return writeError("insert ban", err)
	}
	return nil
}

func (s *Store) InsertWarning(ctx context.Context, channelID, userID, warnedBy, reason string) error {
	query, args, err := s.sb.
		Insert("channel_warnings").
		Columns("channel_id", "user_id", "warned_by", "reason").
		Values(channelID, userID, warnedBy, reason).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build sql query: %w", err)
	}

	if _, err := s.db.Exec(ctx, query, args...); err != nil {
		return writeError("insert warning", err)
	}
	return nil
}
