package db

import (
	"context"
	"errors"
	"testing"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sdtchat/internal/app/chat"
)

// fakeRow scans fixed values or returns err.
type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *string:
			*p = r.values[i].(string)
		case *int:
			*p = r.values[i].(int)
		case *bool:
			*p = r.values[i].(bool)
		}
	}
	return nil
}

// fakeQuerier records the last statement and answers QueryRow with row.
type fakeQuerier struct {
	row     fakeRow
	execErr error
	sql     string
	args    []any
}

func (q *fakeQuerier) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	q.sql, q.args = sql, args
	return pgconn.NewCommandTag("INSERT 0 1"), q.execErr
}

func (q *fakeQuerier) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	q.sql, q.args = sql, args
	return nil, errors.New("not supported")
}

func (q *fakeQuerier) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	q.sql, q.args = sql, args
	return q.row
}

func newTestStore(q *fakeQuerier) *Store {
	return &Store{db: q, sb: sq.StatementBuilder.PlaceholderFormat(sq.Dollar)}
}

func TestRecentMessagesQuery(t *testing.T) {
	s := newTestStore(&fakeQuerier{})

	query, args, err := s.recentMessagesQuery("general", 50).ToSql()
	require.NoError(t, err)

	assert.Contains(t, query, "FROM messages m")
	assert.Contains(t, query, "WHERE m.channel_id = $1")
	assert.Contains(t, query, "ORDER BY m.created_at DESC, m.id DESC")
	assert.Contains(t, query, "LIMIT 50")
	assert.Equal(t, []any{"general"}, args)
}

func TestUpsertMembershipNeverStoresOwner(t *testing.T) {
	q := &fakeQuerier{}
	s := newTestStore(q)

	err := s.UpsertMembership(context.Background(), "general", "42", chat.Membership{Role: chat.RoleOwner, Color: "#ffffff"})
	require.NoError(t, err)

	assert.Contains(t, q.sql, "ON CONFLICT (channel_id, user_id) DO UPDATE")
	assert.Equal(t, []any{"general", "42", "user", "#ffffff", 0, false}, q.args)
}

func TestLookupsTreatNoRowsAsAbsent(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(&fakeQuerier{row: fakeRow{err: pgx.ErrNoRows}})

	ban, err := s.FindBan(ctx, "general", "42")
	require.NoError(t, err)
	assert.Nil(t, ban)

	m, err := s.FindMembership(ctx, "general", "42")
	require.NoError(t, err)
	assert.Nil(t, m)

	owner, err := s.FindChannelOwner(ctx, "general")
	require.NoError(t, err)
	assert.Empty(t, owner)

	p, err := s.FindProfile(ctx, "42")
	require.NoError(t, err)
	assert.Nil(t, p)

	c, err := s.FindChannel(ctx, "general")
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestLookupErrorsAreWrapped(t *testing.T) {
	boom := errors.New("connection reset")
	s := newTestStore(&fakeQuerier{row: fakeRow{err: boom}})

	_, err := s.FindMembership(context.Background(), "general", "42")
	assert.ErrorIs(t, err, boom)
}

func TestFindMembershipScansRow(t *testing.T) {
	q := &fakeQuerier{row: fakeRow{values: []any{"moderator", "#abcdef", 2, true}}}
	s := newTestStore(q)

	m, err := s.FindMembership(context.Background(), "general", "42")
	require.NoError(t, err)
	assert.Equal(t, &chat.Membership{Role: chat.RoleModerator, Color: "#abcdef", Warnings: 2, Muted: true}, m)
	assert.Equal(t, []any{"general", "42"}, q.args)
}

func TestRecentMessagesWithZeroLimit(t *testing.T) {
	q := &fakeQuerier{}
	s := newTestStore(q)

	msgs, err := s.RecentMessages(context.Background(), "general", 0)
	require.NoError(t, err)
	assert.Nil(t, msgs)
	assert.Empty(t, q.sql)
}

func TestForeignKeyViolationMarksChannelGone(t *testing.T) {
	assert.True(t, IsForeignKeyViolation(&pgconn.PgError{Code: "23503"}))
	assert.False(t, IsForeignKeyViolation(&pgconn.PgError{Code: "23505"}))
	assert.False(t, IsForeignKeyViolation(errors.New("other")))

	q := &fakeQuerier{execErr: &pgconn.PgError{Code: "23503"}}
	s := newTestStore(q)

	err := s.InsertMessage(context.Background(), "deleted", "42", "hello")
	require.Error(t, err)
	assert.ErrorIs(t, err, chat.ErrChannelGone)

	q.execErr = errors.New("connection reset")
	err = s.UpsertMembership(context.Background(), "general", "42", chat.DefaultMembership())
	require.Error(t, err)
	assert.NotErrorIs(t, err, chat.ErrChannelGone)
}
