package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ButtcoinTNB/report-gen-sub001/internal/domain"
	"github.com/ButtcoinTNB/report-gen-sub001/internal/platform/logger"
	"github.com/ButtcoinTNB/report-gen-sub001/internal/store"
	"github.com/google/uuid"
)

// taskColumns is the select list shared by every read in this store.
const taskColumns = `id, type, status, stage, progress, message, params, result,
	error_message, created_at, updated_at, expires_at,
	estimated_time_remaining, quality, iterations, can_proceed`

// PostgresTaskStore implements the store.TaskStore interface
// using a PostgreSQL database as the storage backend.
type PostgresTaskStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresTaskStore creates a new PostgreSQL implementation of the
// TaskStore interface. It accepts a database connection or transaction that
// should be initialized and managed by the caller. If logger is nil, a
// default logger will be used.
func NewPostgresTaskStore(db store.DBTX, logger *slog.Logger) *PostgresTaskStore {
	if db == nil {
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresTaskStore{
		db:     db,
		logger: logger.With(slog.String("component", "task_store")),
	}
}

// Ensure PostgresTaskStore implements store.TaskStore interface
var _ store.TaskStore = (*PostgresTaskStore)(nil)

// WithTx returns a new store instance bound to the provided transaction.
func (s *PostgresTaskStore) WithTx(tx *sql.Tx) *PostgresTaskStore {
	return &PostgresTaskStore{
		db:     tx,
		logger: s.logger,
	}
}

// Create implements store.TaskStore.Create.
// It saves a new task to the database, handling domain validation.
func (s *PostgresTaskStore) Create(ctx context.Context, task *domain.Task) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := task.Validate(); err != nil {
		log.Warn("task validation failed during create",
			slog.String("error", err.Error()),
			slog.String("task_id", task.ID.String()))
		return err
	}

	params, err := marshalJSONB(task.Params)
	if err != nil {
		return fmt.Errorf("failed to encode task params: %w", err)
	}
	result, err := marshalJSONB(task.Result)
	if err != nil {
		return fmt.Errorf("failed to encode task result: %w", err)
	}

	query := `
		INSERT INTO tasks (id, type, status, stage, progress, message, params, result,
			error_message, created_at, updated_at, expires_at,
			estimated_time_remaining, quality, iterations, can_proceed)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`
	_, err = s.db.ExecContext(
		ctx,
		query,
		task.ID,
		task.Type,
		task.Status,
		task.Stage,
		task.Progress,
		task.Message,
		params,
		result,
		nullString(task.Error),
		task.CreatedAt,
		task.UpdatedAt,
		task.ExpiresAt,
		task.EstimatedTimeRemaining,
		task.Quality,
		task.Iterations,
		task.CanProceed,
	)

	if err != nil {
		log.Error("failed to create task",
			slog.String("error", err.Error()),
			slog.String("task_id", task.ID.String()),
			slog.String("task_type", string(task.Type)))
		return MapError(err)
	}

	log.Info("task created",
		slog.String("task_id", task.ID.String()),
		slog.String("task_type", string(task.Type)))
	return nil
}

// GetByID implements store.TaskStore.GetByID.
// Returns store.ErrTaskNotFound if the task does not exist.
func (s *PostgresTaskStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`

	task, err := scanTask(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrTaskNotFound
		}
		log.Error("failed to get task by ID",
			slog.String("error", err.Error()),
			slog.String("task_id", id.String()))
		return nil, MapError(err)
	}

	return task, nil
}

// Update implements store.TaskStore.Update. It applies only the fields set
// in the partial update, always stamps updated_at, and returns the updated
// row. Returns store.ErrTaskNotFound if the task does not exist.
func (s *PostgresTaskStore) Update(ctx context.Context, id uuid.UUID, update store.TaskUpdate) (*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	setClauses := []string{}
	args := []any{}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if update.Status != nil {
		setClauses = append(setClauses, "status = "+arg(*update.Status))
	}
	if update.Stage != nil {
		setClauses = append(setClauses, "stage = "+arg(*update.Stage))
	}
	if update.Progress != nil {
		setClauses = append(setClauses, "progress = "+arg(*update.Progress))
	}
	if update.Message != nil {
		setClauses = append(setClauses, "message = "+arg(*update.Message))
	}
	if update.Result != nil {
		result, err := marshalJSONB(update.Result)
		if err != nil {
			return nil, fmt.Errorf("failed to encode task result: %w", err)
		}
		setClauses = append(setClauses, "result = "+arg(result))
	}
	if update.Error != nil {
		setClauses = append(setClauses, "error_message = "+arg(*update.Error))
	}
	if update.EstimatedTimeRemaining != nil {
		setClauses = append(setClauses, "estimated_time_remaining = "+arg(*update.EstimatedTimeRemaining))
	}
	if update.Quality != nil {
		setClauses = append(setClauses, "quality = "+arg(*update.Quality))
	}
	if update.Iterations != nil {
		setClauses = append(setClauses, "iterations = "+arg(*update.Iterations))
	}
	if update.CanProceed != nil {
		setClauses = append(setClauses, "can_proceed = "+arg(*update.CanProceed))
	}

	setClauses = append(setClauses, "updated_at = "+arg(time.Now().UTC()))

	query := `UPDATE tasks SET ` + strings.Join(setClauses, ", ") +
		` WHERE id = ` + arg(id) +
		` RETURNING ` + taskColumns

	task, err := scanTask(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrTaskNotFound
		}
		log.Error("failed to update task",
			slog.String("error", err.Error()),
			slog.String("task_id", id.String()))
		return nil, MapError(err)
	}

	return task, nil
}

// List implements store.TaskStore.List, returning tasks ordered by
// created_at descending with optional status filtering.
func (s *PostgresTaskStore) List(ctx context.Context, status *domain.TaskStatus, limit, offset int) ([]*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	var query string
	var args []any

	if status != nil {
		query = `SELECT ` + taskColumns + ` FROM tasks WHERE status = $1
			ORDER BY created_at DESC LIMIT $2 OFFSET $3`
		args = []any{*status, limit, offset}
	} else {
		query = `SELECT ` + taskColumns + ` FROM tasks
			ORDER BY created_at DESC LIMIT $1 OFFSET $2`
		args = []any{limit, offset}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to list tasks", slog.String("error", err.Error()))
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	tasks := []*domain.Task{}
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			log.Error("failed to scan task row", slog.String("error", err.Error()))
			return nil, MapError(err)
		}
		tasks = append(tasks, task)
	}

	if err := rows.Err(); err != nil {
		log.Error("error iterating task rows", slog.String("error", err.Error()))
		return nil, MapError(err)
	}

	return tasks, nil
}

// Count implements store.TaskStore.Count.
func (s *PostgresTaskStore) Count(ctx context.Context, status *domain.TaskStatus) (int64, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	var query string
	var args []any

	if status != nil {
		query = `SELECT COUNT(*) FROM tasks WHERE status = $1`
		args = []any{*status}
	} else {
		query = `SELECT COUNT(*) FROM tasks`
	}

	var count int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		log.Error("failed to count tasks", slog.String("error", err.Error()))
		return 0, MapError(err)
	}

	return count, nil
}

// DeleteExpired implements store.TaskStore.DeleteExpired, removing tasks
// whose expires_at is strictly before the cutoff.
func (s *PostgresTaskStore) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	result, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE expires_at < $1`, cutoff)
	if err != nil {
		log.Error("failed to delete expired tasks", slog.String("error", err.Error()))
		return 0, MapError(err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return deleted, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanTask maps one tasks row onto a domain.Task.
func scanTask(row rowScanner) (*domain.Task, error) {
	var (
		task         domain.Task
		params       []byte
		result       []byte
		errorMessage sql.NullString
		eta          sql.NullFloat64
		quality      sql.NullFloat64
		iterations   sql.NullInt64
		canProceed   sql.NullBool
	)

	err := row.Scan(
		&task.ID,
		&task.Type,
		&task.Status,
		&task.Stage,
		&task.Progress,
		&task.Message,
		&params,
		&result,
		&errorMessage,
		&task.CreatedAt,
		&task.UpdatedAt,
		&task.ExpiresAt,
		&eta,
		&quality,
		&iterations,
		&canProceed,
	)
	if err != nil {
		return nil, err
	}

	if len(params) > 0 {
		if err := json.Unmarshal(params, &task.Params); err != nil {
			return nil, fmt.Errorf("failed to decode task params: %w", err)
		}
	}
	if len(result) > 0 {
		if err := json.Unmarshal(result, &task.Result); err != nil {
			return nil, fmt.Errorf("failed to decode task result: %w", err)
		}
	}

	task.Error = errorMessage.String
	if eta.Valid {
		task.EstimatedTimeRemaining = &eta.Float64
	}
	if quality.Valid {
		task.Quality = &quality.Float64
	}
	if iterations.Valid {
		v := int(iterations.Int64)
		task.Iterations = &v
	}
	if canProceed.Valid {
		task.CanProceed = &canProceed.Bool
	}

	return &task, nil
}

// marshalJSONB encodes a map for a jsonb column, preserving NULL for nil maps.
func marshalJSONB(m map[string]any) (any, error) {
	if m == nil {
		return nil, nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return data, nil
}

// nullString converts an empty string to a SQL NULL.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
