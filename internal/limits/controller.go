package limits

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/vidgate/videobot/internal/logctx"
)

// Reason explains why an admission attempt was denied.
type Reason int

const (
	ReasonAllowed Reason = iota
	ReasonAlreadyDownloading
	ReasonServerBusy
	ReasonDailyTotalExceeded
	ReasonDailyUserCapExceeded
	ReasonPerUserCapExceeded
)

// Decision is the outcome of an admission check.
type Decision struct {
	Allowed bool
	Reason  Reason
}

// Thresholds configures the quota limits. The zero value is unusable; use
// the defaults from config.
type Thresholds struct {
	MaxConcurrentDownloads int
	MaxUsersPerDay         int
	MaxVideosPerUser       int
	MaxTotalDailyDownloads int
}

// Controller is the single authority over download admission. All checks and
// mutations of the quota record and the active-download set go through its
// mutex, so a check-then-mark admission is one atomic step.
type Controller struct {
	mu     sync.Mutex
	limits Thresholds
	store  Store
	record *Record
	active map[int64]struct{}
	now    func() time.Time
}

func NewController(ctx context.Context, limits Thresholds, store Store) *Controller {
	c := &Controller{
		limits: limits,
		store:  store,
		active: make(map[int64]struct{}),
		now:    time.Now,
	}

	c.record = store.Load(ctx)
	c.rolloverLocked(ctx)

	return c
}

// Limits returns the configured thresholds.
func (c *Controller) Limits() Thresholds {
	return c.limits
}

// Admit checks the quota for the user and, if allowed, reserves a concurrent
// download slot. Check and reservation happen under one lock so two
// concurrent attempts by the same user cannot both pass.
func (c *Controller) Admit(ctx context.Context, userID int64) Decision {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.rolloverLocked(ctx)

	dec := c.checkLocked(userID)
	if dec.Allowed {
		c.active[userID] = struct{}{}
	}

	return dec
}

// CanDownload reports whether the user would currently be admitted, without
// reserving a slot. Used for status displays.
func (c *Controller) CanDownload(ctx context.Context, userID int64) Decision {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.rolloverLocked(ctx)

	return c.checkLocked(userID)
}

// checkLocked evaluates the admission rules in their fixed order. The first
// failing rule wins so denial messages stay deterministic.
func (c *Controller) checkLocked(userID int64) Decision {
	if _, ok := c.active[userID]; ok {
		return Decision{Reason: ReasonAlreadyDownloading}
	}

	if len(c.active) >= c.limits.MaxConcurrentDownloads {
		return Decision{Reason: ReasonServerBusy}
	}

	if c.record.TotalDownloadsToday >= c.limits.MaxTotalDailyDownloads {
		return Decision{Reason: ReasonDailyTotalExceeded}
	}

	if len(c.record.UsersToday) >= c.limits.MaxUsersPerDay && !c.record.UsersToday[userID] {
		return Decision{Reason: ReasonDailyUserCapExceeded}
	}

	if c.record.UserDownloadsToday[userID] >= c.limits.MaxVideosPerUser {
		return Decision{Reason: ReasonPerUserCapExceeded}
	}

	return Decision{Allowed: true, Reason: ReasonAllowed}
}

// Complete releases the user's download slot and, on success, commits the
// quota counters. The slot is released on every outcome so a failed download
// can never leak it.
func (c *Controller) Complete(ctx context.Context, userID int64, success bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.active, userID)

	if !success {
		return
	}

	c.rolloverLocked(ctx)

	c.record.TotalDownloadsToday++
	c.record.TotalDownloadsAllTime++
	c.record.UsersToday[userID] = true
	c.record.UserDownloadsToday[userID]++

	c.saveLocked(ctx)
}

// RegisterUser bumps the lifetime user counter for a first-seen user.
func (c *Controller) RegisterUser(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.record.TotalUsers++
	c.saveLocked(ctx)
}

// ForceReset zeroes the daily counters and clears active slots regardless of
// the calendar. Admin use only.
func (c *Controller) ForceReset(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.record.LastResetDate = c.now().Format(dateLayout)
	c.record.TotalDownloadsToday = 0
	c.record.UsersToday = make(map[int64]bool)
	c.record.UserDownloadsToday = make(map[int64]int)
	c.active = make(map[int64]struct{})

	c.saveLocked(ctx)
}

// Stats is a snapshot of the counters for status displays.
type Stats struct {
	ActiveDownloads       int
	DownloadsToday        int
	UsersToday            int
	RemainingDownloads    int
	TotalDownloadsAllTime int
	TotalUsers            int
	BotStartDate          string
}

func (c *Controller) Stats(ctx context.Context) Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.rolloverLocked(ctx)

	remaining := c.limits.MaxTotalDailyDownloads - c.record.TotalDownloadsToday
	if remaining < 0 {
		remaining = 0
	}

	return Stats{
		ActiveDownloads:       len(c.active),
		DownloadsToday:        c.record.TotalDownloadsToday,
		UsersToday:            len(c.record.UsersToday),
		RemainingDownloads:    remaining,
		TotalDownloadsAllTime: c.record.TotalDownloadsAllTime,
		TotalUsers:            c.record.TotalUsers,
		BotStartDate:          c.record.BotStartDate,
	}
}

// UserDownloadsToday returns the user's committed download count for today.
func (c *Controller) UserDownloadsToday(ctx context.Context, userID int64) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.rolloverLocked(ctx)

	return c.record.UserDownloadsToday[userID]
}

func (c *Controller) rolloverLocked(ctx context.Context) {
	if !c.record.Rollover(c.now()) {
		return
	}

	logctx.LoggerFromContext(ctx).Info("daily quota counters reset", "date", c.record.LastResetDate)
	c.saveLocked(ctx)
}

// saveLocked persists the record. Persistence failure is logged and ignored:
// the in-memory counters stay authoritative for the rest of the day.
func (c *Controller) saveLocked(ctx context.Context) {
	if err := c.store.Save(ctx, c.record); err != nil {
		logctx.LoggerFromContext(ctx).Error("failed to save quota record", "err", err)
	}
}

// Message renders the user-facing denial text for a decision.
func (d Decision) Message(limits Thresholds) string {
	switch d.Reason {
	case ReasonAlreadyDownloading:
		return "❌ You already have an active download. Please wait."
	case ReasonServerBusy:
		return fmt.Sprintf("⏳ Server busy. Maximum %d downloads allowed simultaneously.", limits.MaxConcurrentDownloads)
	case ReasonDailyTotalExceeded:
		return fmt.Sprintf("📊 Daily limit reached. Maximum %d downloads per day for all users.", limits.MaxTotalDailyDownloads)
	case ReasonDailyUserCapExceeded:
		return fmt.Sprintf("👥 Daily user limit reached. Maximum %d users can download per day.", limits.MaxUsersPerDay)
	case ReasonPerUserCapExceeded:
		return fmt.Sprintf("🎥 You've reached your daily limit of %d videos.", limits.MaxVideosPerUser)
	default:
		return "✅ You can download"
	}
}
