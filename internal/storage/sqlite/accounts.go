package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"tasklist/internal/auth"
	"tasklist/internal/models"
)

const accountColumns = `id, username, password_hash, created_at`

// Register creates an account with a bcrypt hash of password.
func (h *Handle) Register(ctx context.Context, username, password string) (models.Account, error) {
	username = strings.TrimSpace(username)
	if username == "" || strings.TrimSpace(password) == "" {
		return models.Account{}, fmt.Errorf("%w: username and password are required", models.ErrInvalidInput)
	}

	hash, err := auth.HashPassword(password)
	if errors.Is(err, auth.ErrPasswordTooLong) {
		return models.Account{}, fmt.Errorf("%w: %v", models.ErrInvalidInput, err)
	}
	if err != nil {
		return models.Account{}, err
	}

	acc := models.Account{
		Username:     username,
		PasswordHash: hash,
		CreatedAt:    h.store.now(),
	}
	err = h.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `INSERT INTO accounts(username, password_hash, created_at) VALUES(?, ?, ?)`,
			acc.Username, acc.PasswordHash, formatTime(acc.CreatedAt))
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: %q", models.ErrDuplicateUsername, username)
			}
			return fmt.Errorf("insert account: %w", err)
		}
		acc.ID, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("account id: %w", err)
		}
		return nil
	})
	if err != nil {
		return models.Account{}, err
	}

	h.store.logger.Info("account registered", slog.Int64("account_id", acc.ID))
	return acc, nil
}

// Verify returns the account for username when password matches its hash.
// A missing account and a wrong password are indistinguishable: both give
// ok == false with a nil error.
func (h *Handle) Verify(ctx context.Context, username, password string) (models.Account, bool, error) {
	row := h.conn.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE username = ?`, strings.TrimSpace(username))
	acc, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		auth.ComparePassword("", password)
		return models.Account{}, false, nil
	}
	if err != nil {
		return models.Account{}, false, fmt.Errorf("get account: %w", err)
	}
	if !auth.ComparePassword(acc.PasswordHash, password) {
		return models.Account{}, false, nil
	}
	return acc, true, nil
}

// Account fetches an account by id.
func (h *Handle) Account(ctx context.Context, id int64) (models.Account, bool, error) {
	return getAccount(ctx, h.conn, id)
}

func getAccount(ctx context.Context, q querier, id int64) (models.Account, bool, error) {
	acc, err := scanAccount(q.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Account{}, false, nil
	}
	if err != nil {
		return models.Account{}, false, fmt.Errorf("get account: %w", err)
	}
	return acc, true, nil
}

func scanAccount(row scanner) (models.Account, error) {
	var (
		acc     models.Account
		created string
	)
	if err := row.Scan(&acc.ID, &acc.Username, &acc.PasswordHash, &created); err != nil {
		return models.Account{}, err
	}
	t, err := parseTime(created)
	if err != nil {
		return models.Account{}, err
	}
	acc.CreatedAt = t
	return acc, nil
}
