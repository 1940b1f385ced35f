// Package notify carries transient toast messages from services to views.
package notify

import (
	"sync"
	"time"
)

type Level string

const (
	LevelSuccess Level = "success"
	LevelInfo    Level = "info"
	LevelError   Level = "error"
)

type Notification struct {
	Level   Level     `json:"level"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

type Notifier interface {
	Notify(level Level, message string)
}

// Queue buffers notifications until the next view render drains them. The
// oldest entries are dropped past max.
type Queue struct {
	mu    sync.Mutex
	items []Notification
	max   int
}

func NewQueue(max int) *Queue {
	if max <= 0 {
		max = 10
	}
	return &Queue{max: max}
}

func (q *Queue) Notify(level Level, message string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, Notification{Level: level, Message: message, At: time.Now().UTC()})
	if over := len(q.items) - q.max; over > 0 {
		q.items = append([]Notification(nil), q.items[over:]...)
	}
}

// Drain returns and forgets all buffered notifications.
func (q *Queue) Drain() []Notification {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.items
	q.items = nil
	if out == nil {
		return []Notification{}
	}
	return out
}

// Nop discards notifications.
type Nop struct{}

func (Nop) Notify(Level, string) {}
