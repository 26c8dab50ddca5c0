package sqlite

import (
	"database/sql"

	// Import the SQLite driver.
	_ "github.com/mattn/go-sqlite3"
)

// InitDB opens the SQLite database and creates the user and video tables if
// they don't exist.
func InitDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS users (
		user_id INTEGER PRIMARY KEY,
		first_name TEXT,
		last_name TEXT,
		username TEXT,
		first_seen DATETIME,
		last_seen DATETIME,
		total_downloads INTEGER DEFAULT 0
	)`)
	if err != nil {
		return nil, err
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS videos (
		id INTEGER PRIMARY KEY,
		user_id INTEGER,
		url TEXT,
		title TEXT,
		duration_seconds INTEGER,
		format TEXT,
		file_size INTEGER,
		downloaded_at DATETIME,
		success INTEGER
	)`)
	if err != nil {
		return nil, err
	}

	return db, nil
}
