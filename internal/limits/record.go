package limits

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

const dateLayout = "2006-01-02"

// Record holds the durable quota counters. It is persisted as a single Redis
// hash and reloaded on startup; daily fields reset on calendar rollover.
type Record struct {
	LastResetDate         string
	TotalDownloadsToday   int
	UsersToday            map[int64]bool
	UserDownloadsToday    map[int64]int
	TotalUsers            int
	TotalDownloadsAllTime int
	BotStartDate          string
}

// NewRecord returns a fresh record stamped with the given day.
func NewRecord(today time.Time) *Record {
	day := today.Format(dateLayout)
	return &Record{
		LastResetDate:      day,
		UsersToday:         make(map[int64]bool),
		UserDownloadsToday: make(map[int64]int),
		BotStartDate:       day,
	}
}

// Rollover zeroes the daily counters for the given day. It is idempotent:
// calling it again on the same day changes nothing.
func (r *Record) Rollover(today time.Time) bool {
	day := today.Format(dateLayout)
	if r.LastResetDate == day {
		return false
	}

	r.LastResetDate = day
	r.TotalDownloadsToday = 0
	r.UsersToday = make(map[int64]bool)
	r.UserDownloadsToday = make(map[int64]int)
	return true
}

// ToRedisMap converts the record to field-value pairs for Redis.
func (r *Record) ToRedisMap() (map[string]string, error) {
	users, err := json.Marshal(r.UsersToday)
	if err != nil {
		return nil, fmt.Errorf("marshal users_today: %w", err)
	}

	perUser, err := json.Marshal(r.UserDownloadsToday)
	if err != nil {
		return nil, fmt.Errorf("marshal user_downloads_today: %w", err)
	}

	return map[string]string{
		"last_reset_date":          r.LastResetDate,
		"total_downloads_today":    strconv.Itoa(r.TotalDownloadsToday),
		"users_today":              string(users),
		"user_downloads_today":     string(perUser),
		"total_users":              strconv.Itoa(r.TotalUsers),
		"total_downloads_all_time": strconv.Itoa(r.TotalDownloadsAllTime),
		"bot_start_date":           r.BotStartDate,
	}, nil
}

// FromRedisMap populates the record from a Redis hash.
func (r *Record) FromRedisMap(m map[string]string) error {
	day, ok := m["last_reset_date"]
	if !ok {
		return fmt.Errorf("last_reset_date not found in map")
	}
	if _, err := time.Parse(dateLayout, day); err != nil {
		return fmt.Errorf("invalid last_reset_date: %s", day)
	}
	r.LastResetDate = day

	total, err := strconv.Atoi(m["total_downloads_today"])
	if err != nil {
		return fmt.Errorf("invalid total_downloads_today: %s", m["total_downloads_today"])
	}
	r.TotalDownloadsToday = total

	r.UsersToday = make(map[int64]bool)
	if err := json.Unmarshal([]byte(m["users_today"]), &r.UsersToday); err != nil {
		return fmt.Errorf("invalid users_today: %w", err)
	}

	r.UserDownloadsToday = make(map[int64]int)
	if err := json.Unmarshal([]byte(m["user_downloads_today"]), &r.UserDownloadsToday); err != nil {
		return fmt.Errorf("invalid user_downloads_today: %w", err)
	}

	totalUsers, err := strconv.Atoi(m["total_users"])
	if err != nil {
		return fmt.Errorf("invalid total_users: %s", m["total_users"])
	}
	r.TotalUsers = totalUsers

	allTime, err := strconv.Atoi(m["total_downloads_all_time"])
	if err != nil {
		return fmt.Errorf("invalid total_downloads_all_time: %s", m["total_downloads_all_time"])
	}
	r.TotalDownloadsAllTime = allTime

	r.BotStartDate = m["bot_start_date"]

	return nil
}
