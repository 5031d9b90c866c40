package notifications

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
)

const columns = `id, title, message, type, read, created_at`

type Repo struct{ DB *pgxpool.Pool }

func (r *Repo) Create(ctx context.Context, n Notification) (Notification, error) {
	return scan(r.DB.QueryRow(ctx,
		`INSERT INTO notifications (title, message, type) VALUES ($1, $2, $3) RETURNING `+columns,
		n.Title, n.Message, n.Type))
}

// List returns the newest notifications first.
func (r *Repo) List(ctx context.Context, limit int) ([]Notification, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+columns+` FROM notifications ORDER BY created_at DESC, id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "query notifications")
	}
	defer rows.Close()

	out := []Notification{}
	for rows.Next() {
		n, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, errors.Wrap(rows.Err(), "iterate notifications")
}

func (r *Repo) MarkRead(ctx context.Context, id int64) (Notification, error) {
	return scan(r.DB.QueryRow(ctx, `UPDATE notifications SET read = true WHERE id = $1 RETURNING `+columns, id))
}

func (r *Repo) Delete(ctx context.Context, id int64) error {
	tag, err := r.DB.Exec(ctx, `DELETE FROM notifications WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "delete notification")
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scan(row pgx.Row) (Notification, error) {
	var n Notification
	err := row.Scan(&n.ID, &n.Title, &n.Message, &n.Type, &n.Read, &n.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Notification{}, ErrNotFound
	}
	if err != nil {
		return Notification{}, errors.Wrap(err, "scan notification")
	}
	return n, nil
}
