package notify

import (
	"context"

	"github.com/jmoiron/sqlx"
)

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Insert(ctx context.Context, job Job) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO notifications (user_id, kind, title, message, reference_id, reference_type)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		job.UserID, job.Kind, job.Title, job.Message, job.ReferenceID, job.ReferenceType,
	)
	return err
}

// InsertForAllActiveCustomers fans a broadcast job out to every active
// customer in one statement.
func (r *Repository) InsertForAllActiveCustomers(ctx context.Context, job Job) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO notifications (user_id, kind, title, message, reference_id, reference_type)
		 SELECT id, $1, $2, $3, $4, $5
		 FROM users
		 WHERE role = 'customer' AND status = 'Active'`,
		job.Kind, job.Title, job.Message, job.ReferenceID, job.ReferenceType,
	)
	return err
}

func (r *Repository) ListForUser(ctx context.Context, userID, limit, offset int) ([]Notification, error) {
	if limit <= 0 {
		limit = 50
	}

	var items []Notification
	err := r.db.SelectContext(ctx, &items, `
		SELECT id, user_id, kind, title, message, reference_id, reference_type, is_read, created_at
		FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, err
	}

	return items, nil
}

func (r *Repository) MarkRead(ctx context.Context, userID, notificationID int) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE notifications SET is_read = TRUE WHERE id = $1 AND user_id = $2`,
		notificationID, userID,
	)
	return err
}
