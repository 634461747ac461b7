package db

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"sdtchat/internal/app/chat"
)

// IsForeignKeyViolation checks if the error is a PostgreSQL foreign key violation (code 23503).
func IsForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23503"
	}
	return false
}

// isNoRows reports whether err means the query matched nothing.
func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// writeError wraps a failed write for op. A foreign key violation means the
// channel row is gone, which callers can detect with chat.ErrChannelGone.
func writeError(op string, err error) error {
	if IsForeignKeyViolation(err) {
		return fmt.Errorf("%s: %w: %w", op, chat.ErrChannelGone, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
