package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"tasklist/internal/auth"
	"tasklist/internal/models"
)

// StartSession opens a session for accountID. Only a digest of the returned
// token is stored.
func (h *Handle) StartSession(ctx context.Context, accountID int64) (models.Session, error) {
	now := h.store.now()
	sess := models.Session{
		Token:     auth.NewSessionToken(),
		AccountID: accountID,
		CreatedAt: now,
		ExpiresAt: now.Add(h.store.sessionTTL),
	}

	err := h.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO sessions(token_hash, account_id, created_at, expires_at) VALUES(?, ?, ?, ?)`,
			auth.TokenDigest(sess.Token), sess.AccountID, formatTime(sess.CreatedAt), formatTime(sess.ExpiresAt))
		if err != nil {
			if isForeignKeyViolation(err) {
				return fmt.Errorf("%w: account %d", models.ErrNotFound, accountID)
			}
			return fmt.Errorf("insert session: %w", err)
		}
		return nil
	})
	if err != nil {
		return models.Session{}, err
	}

	h.store.logger.Debug("session started", slog.Int64("account_id", accountID))
	return sess, nil
}

// Resolve returns the account behind token. Unknown, expired and orphaned
// sessions all report ok == false with a nil error.
func (h *Handle) Resolve(ctx context.Context, token string) (models.Account, bool, error) {
	if token == "" {
		return models.Account{}, false, nil
	}
	digest := auth.TokenDigest(token)

	var (
		accountID int64
		expiresAt string
	)
	err := h.conn.QueryRowContext(ctx, `SELECT account_id, expires_at FROM sessions WHERE token_hash = ?`, digest).
		Scan(&accountID, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Account{}, false, nil
	}
	if err != nil {
		return models.Account{}, false, fmt.Errorf("get session: %w", err)
	}

	expires, err := parseTime(expiresAt)
	if err != nil {
		return models.Account{}, false, err
	}
	if !h.store.now().Before(expires) {
		if _, err := h.conn.ExecContext(ctx, `DELETE FROM sessions WHERE token_hash = ?`, digest); err != nil {
			return models.Account{}, false, fmt.Errorf("delete expired session: %w", err)
		}
		return models.Account{}, false, nil
	}

	return getAccount(ctx, h.conn, accountID)
}

// EndSession removes the session for token if there is one.
func (h *Handle) EndSession(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if _, err := h.conn.ExecContext(ctx, `DELETE FROM sessions WHERE token_hash = ?`, auth.TokenDigest(token)); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// PurgeExpiredSessions deletes every session past its expiry.
func (h *Handle) PurgeExpiredSessions(ctx context.Context) (int64, error) {
	res, err := h.conn.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, formatTime(h.store.now()))
	if err != nil {
		return 0, fmt.Errorf("purge sessions: %w", err)
	}
	return res.RowsAffected()
}
