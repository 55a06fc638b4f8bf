package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"tasklist/internal/models"
)

const taskColumns = `id, owner_id, title, description, completed, created_at`

// ListTasks returns the account's tasks, newest first.
func (h *Handle) ListTasks(ctx context.Context, accountID int64) ([]models.Task, error) {
	rows, err := h.conn.QueryContext(ctx, `SELECT `+taskColumns+`
        FROM tasks WHERE owner_id = ? ORDER BY created_at DESC, id DESC`, accountID)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	tasks := []models.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// CreateTask inserts a new, incomplete task owned by accountID.
func (h *Handle) CreateTask(ctx context.Context, accountID int64, title, description string) (models.Task, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return models.Task{}, fmt.Errorf("%w: task title must not be empty", models.ErrInvalidInput)
	}

	var task models.Task
	err := h.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `INSERT INTO tasks(owner_id, title, description, completed, created_at) VALUES(?, ?, ?, 0, ?)`,
			accountID, title, strings.TrimSpace(description), formatTime(h.store.now()))
		if err != nil {
			if isForeignKeyViolation(err) {
				return fmt.Errorf("%w: account %d", models.ErrNotFound, accountID)
			}
			return fmt.Errorf("insert task: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("task id: %w", err)
		}
		task, err = mustGetOwned(ctx, tx, accountID, id)
		return err
	})
	if err != nil {
		return models.Task{}, err
	}
	return task, nil
}

// GetOwnedTask returns the task only when it exists and belongs to accountID.
func (h *Handle) GetOwnedTask(ctx context.Context, accountID, taskID int64) (models.Task, bool, error) {
	return getOwned(ctx, h.conn, accountID, taskID)
}

// UpdateTask overwrites title, description and completion of an owned task.
func (h *Handle) UpdateTask(ctx context.Context, accountID, taskID int64, title, description string, completed bool) (models.Task, error) {
	var task models.Task
	err := h.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := mustGetOwned(ctx, tx, accountID, taskID); err != nil {
			return err
		}
		title = strings.TrimSpace(title)
		if title == "" {
			return fmt.Errorf("%w: task title must not be empty", models.ErrInvalidInput)
		}
		_, err := tx.ExecContext(ctx, `UPDATE tasks SET title = ?, description = ?, completed = ? WHERE id = ? AND owner_id = ?`,
			title, strings.TrimSpace(description), completed, taskID, accountID)
		if err != nil {
			return fmt.Errorf("update task: %w", err)
		}
		task, err = mustGetOwned(ctx, tx, accountID, taskID)
		return err
	})
	if err != nil {
		return models.Task{}, err
	}
	return task, nil
}

// ToggleTask flips the completion flag of an owned task.
func (h *Handle) ToggleTask(ctx context.Context, accountID, taskID int64) (models.Task, error) {
	var task models.Task
	err := h.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE tasks SET completed = NOT completed WHERE id = ? AND owner_id = ?`, taskID, accountID)
		if err != nil {
			return fmt.Errorf("toggle task: %w", err)
		}
		if err := expectAffected(res, taskID); err != nil {
			return err
		}
		task, err = mustGetOwned(ctx, tx, accountID, taskID)
		return err
	})
	if err != nil {
		return models.Task{}, err
	}
	return task, nil
}

// DeleteTask removes an owned task.
func (h *Handle) DeleteTask(ctx context.Context, accountID, taskID int64) error {
	return h.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE id = ? AND owner_id = ?`, taskID, accountID)
		if err != nil {
			return fmt.Errorf("delete task: %w", err)
		}
		return expectAffected(res, taskID)
	})
}

func getOwned(ctx context.Context, q querier, accountID, taskID int64) (models.Task, bool, error) {
	t, err := scanTask(q.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ? AND owner_id = ?`, taskID, accountID))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Task{}, false, nil
	}
	if err != nil {
		return models.Task{}, false, fmt.Errorf("get task: %w", err)
	}
	return t, true, nil
}

func mustGetOwned(ctx context.Context, q querier, accountID, taskID int64) (models.Task, error) {
	t, ok, err := getOwned(ctx, q, accountID, taskID)
	if err != nil {
		return models.Task{}, err
	}
	if !ok {
		return models.Task{}, taskNotFound(taskID)
	}
	return t, nil
}

func expectAffected(res sql.Result, taskID int64) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return taskNotFound(taskID)
	}
	return nil
}

func taskNotFound(taskID int64) error {
	return fmt.Errorf("%w: task %d", models.ErrNotFound, taskID)
}

func scanTask(row scanner) (models.Task, error) {
	var (
		t       models.Task
		created string
	)
	if err := row.Scan(&t.ID, &t.OwnerID, &t.Title, &t.Description, &t.Completed, &created); err != nil {
		return models.Task{}, err
	}
	ts, err := parseTime(created)
	if err != nil {
		return models.Task{}, err
	}
	t.CreatedAt = ts
	return t, nil
}
