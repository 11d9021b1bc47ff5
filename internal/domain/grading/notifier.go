package grading

import (
	"context"
	"sync"

	"github.com/okian/gradebook/pkg/logger"
)

// Level is the severity of a notification.
type Level string

// Notification levels.
const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// Notification is a user-facing message (toast).
type Notification struct {
	Level   Level
	Title   string
	Message string
}

// Notifier surfaces notifications to the user.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// LogNotifier writes notifications to a logger.
type LogNotifier struct {
	Logger logger.Logger
}

// Notify implements Notifier.
func (l LogNotifier) Notify(ctx context.Context, n Notification) {
	log := l.Logger
	if log == nil {
		log = logger.OrNop()
	}
	fields := []logger.Field{logger.String("title", n.Title), logger.String("level", string(n.Level))}
	if n.Level == LevelError {
		log.Error(ctx, n.Message, fields...)
		return
	}
	log.Info(ctx, n.Message, fields...)
}

// Notifications records every notification. Safe for concurrent use.
type Notifications struct {
	mu    sync.Mutex
	items []Notification
}

// Notify implements Notifier.
func (r *Notifications) Notify(_ context.Context, n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, n)
}

// All returns a copy of the recorded notifications.
func (r *Notifications) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.items...)
}

// Last returns the most recent notification.
func (r *Notifications) Last() (Notification, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.items) == 0 {
		return Notification{}, false
	}
	return r.items[len(r.items)-1], true
}

// Reset drops the recorded notifications.
func (r *Notifications) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = nil
}
