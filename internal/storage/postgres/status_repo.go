package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/Aiden-ho/twitter-server/internal/media/domain"
	"github.com/Aiden-ho/twitter-server/internal/media/models"
)

// VideoStatusRepo stores transcode job records. Every state change is
// written together with a VideoStatusChanged outbox row.
type VideoStatusRepo struct {
	db     *sqlx.DB
	outbox *OutboxRepo
	clock  func() time.Time
}

func NewVideoStatusRepo(db *sqlx.DB, outbox *OutboxRepo) *VideoStatusRepo {
	return &VideoStatusRepo{db: db, outbox: outbox, clock: time.Now}
}

func (r *VideoStatusRepo) Create(ctx context.Context, s *models.VideoStatus) error {
	if s == nil || s.Name == "" || !s.Status.Valid() {
		return models.ErrInvalidArgument
	}

	const q = `
		INSERT INTO videos_status (name, status, message, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (name) DO NOTHING
	`

	now := r.clock()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, q, s.Name, s.Status, s.Message, now)
	if err != nil {
		return fmt.Errorf("video status create: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("video status create: %w", err)
	}
	if n == 0 {
		return models.ErrConflict
	}

	event := models.NewVideoStatusChanged(s.Name, "", s.Status, s.Message, now)
	if err := r.outbox.Add(ctx, tx, event); err != nil {
		return fmt.Errorf("add outbox: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	s.CreatedAt = now
	s.UpdatedAt = now
	return nil
}

func (r *VideoStatusRepo) UpdateStatus(ctx context.Context, name string, status domain.Status, message string) error {
	if name == "" || !status.Valid() {
		return models.ErrInvalidArgument
	}

	const (
		selectQ = `SELECT status FROM videos_status WHERE name = $1 FOR UPDATE`
		updateQ = `
			UPDATE videos_status
			SET status = $2, message = $3, updated_at = NOW()
			WHERE name = $1
		`
	)

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var from domain.Status
	if err := tx.GetContext(ctx, &from, selectQ, name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return fmt.Errorf("video status lock: %w", err)
	}
	if err := domain.ValidateTransition(from, status); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, updateQ, name, status, message); err != nil {
		return fmt.Errorf("video status update: %w", err)
	}

	if from != status {
		event := models.NewVideoStatusChanged(name, from, status, message, r.clock())
		if err := r.outbox.Add(ctx, tx, event); err != nil {
			return fmt.Errorf("add outbox: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (r *VideoStatusRepo) GetByName(ctx context.Context, name string) (*models.VideoStatus, error) {
	if name == "" {
		return nil, models.ErrInvalidArgument
	}

	const q = `
		SELECT name, status, message, created_at, updated_at
		FROM videos_status
		WHERE name = $1
	`

	var s models.VideoStatus
	if err := r.db.GetContext(ctx, &s, q, name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("video status get: %w", err)
	}

	return &s, nil
}
