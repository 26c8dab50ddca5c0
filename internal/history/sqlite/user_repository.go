package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/vidgate/videobot/internal/history"
)

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(dbConn *sql.DB) *UserRepository {
	return &UserRepository{db: dbConn}
}

func (r *UserRepository) TouchUser(ctx context.Context, user history.User) (bool, error) {
	now := time.Now().UTC().Format(time.RFC3339)

	var exists int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM users WHERE user_id = ?`, user.UserID).Scan(&exists)
	if err != nil {
		return false, err
	}

	if exists == 0 {
		_, err = r.db.ExecContext(ctx, `
			INSERT INTO users (user_id, first_name, last_name, username, first_seen, last_seen, total_downloads)
			VALUES (?, ?, ?, ?, ?, ?, 0)
		`, user.UserID, user.FirstName, user.LastName, user.Username, now, now)

		return err == nil, err
	}

	_, err = r.db.ExecContext(ctx, `
		UPDATE users SET first_name = ?, last_name = ?, username = ?, last_seen = ?
		WHERE user_id = ?
	`, user.FirstName, user.LastName, user.Username, now, user.UserID)

	return false, err
}

func (r *UserRepository) IncrementDownloads(ctx context.Context, userID int64) error {
	_, err := r.db.ExecContext(ctx, `UPDATE users SET total_downloads = total_downloads + 1 WHERE user_id = ?`, userID)

	return err
}

func (r *UserRepository) ListUsers(ctx context.Context, limit int) ([]history.User, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT user_id, first_name, last_name, username, first_seen, last_seen, total_downloads
		FROM users ORDER BY last_seen DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []history.User

	for rows.Next() {
		var u history.User
		var firstSeen, lastSeen string

		if err := rows.Scan(&u.UserID, &u.FirstName, &u.LastName, &u.Username, &firstSeen, &lastSeen, &u.TotalDownloads); err != nil {
			return nil, err
		}

		u.FirstSeen, _ = time.Parse(time.RFC3339, firstSeen)
		u.LastSeen, _ = time.Parse(time.RFC3339, lastSeen)
		users = append(users, u)
	}

	return users, rows.Err()
}

func (r *UserRepository) CountUsers(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM users`).Scan(&count)

	return count, err
}
