package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"attendboard/internal/queue"
)

// Severity classifies a notification for display.
type Severity string

const (
	SeveritySuccess Severity = "success"
	SeverityInfo    Severity = "info"
	SeverityError   Severity = "error"
)

// Notification is the user-facing outcome of a mutation.
type Notification struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Severity    Severity `json:"severity"`
}

// Success builds a success notification.
func Success(description string) Notification {
	return Notification{Title: "Success", Description: description, Severity: SeveritySuccess}
}

// Info builds an informational notification.
func Info(title, description string) Notification {
	return Notification{Title: title, Description: description, Severity: SeverityInfo}
}

// Notifier receives notifications emitted by store mutations.
type Notifier interface {
	Notify(n Notification)
}

// Func adapts a plain function to Notifier.
type Func func(Notification)

func (f Func) Notify(n Notification) { f(n) }

// Discard drops every notification.
var Discard Notifier = Func(func(Notification) {})

// Multi fans a notification out to every non-nil notifier in order.
func Multi(ns ...Notifier) Notifier {
	out := make([]Notifier, 0, len(ns))
	for _, n := range ns {
		if n != nil {
			out = append(out, n)
		}
	}
	return Func(func(n Notification) {
		for _, dst := range out {
			dst.Notify(n)
		}
	})
}

// Recorder keeps every notification it receives. Safe for concurrent use.
type Recorder struct {
	mu  sync.Mutex
	all []Notification
}

func (r *Recorder) Notify(n Notification) {
	r.mu.Lock()
	r.all = append(r.all, n)
	r.mu.Unlock()
}

// All returns a copy of the recorded notifications.
func (r *Recorder) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.all...)
}

// Last returns the most recent notification, or nil if none was recorded.
func (r *Recorder) Last() *Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.all) == 0 {
		return nil
	}
	n := r.all[len(r.all)-1]
	return &n
}

// Log writes notifications to a structured logger.
type Log struct {
	Logger *slog.Logger
}

func (l Log) Notify(n Notification) {
	level := slog.LevelInfo
	if n.Severity == SeverityError {
		level = slog.LevelError
	}
	l.Logger.Log(context.Background(), level, "notification",
		slog.String("title", n.Title),
		slog.String("description", n.Description),
		slog.String("severity", string(n.Severity)),
	)
}

// MessageType tags notification messages on the queue.
const MessageType = "notification"

// Queue publishes notifications onto a queue for out-of-process consumers.
type Queue struct {
	Q       queue.Queue
	Timeout time.Duration
	Logger  *slog.Logger
}

func (q Queue) Notify(n Notification) {
	body, err := json.Marshal(n)
	if err != nil {
		return
	}
	timeout := q.Timeout
	if timeout <= 0 {
		timeout = 500 * time.Millisecond
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := q.Q.Publish(ctx, queue.Message{Type: MessageType, Body: body}); err != nil && q.Logger != nil {
		q.Logger.Warn("notification publish failed", slog.Any("error", err))
	}
}

// Decode extracts a notification from a queue message.
func Decode(msg queue.Message) (Notification, bool) {
	if msg.Type != MessageType {
		return Notification{}, false
	}
	var n Notification
	if err := json.Unmarshal(msg.Body, &n); err != nil {
		return Notification{}, false
	}
	return n, true
}

// Drain forwards queued notifications to dst until ctx is done or the queue closes.
func Drain(ctx context.Context, q queue.Queue, dst Notifier) error {
	messages, err := q.Consume(ctx)
	if err != nil {
		return err
	}
	for msg := range messages {
		if n, ok := Decode(msg); ok {
			dst.Notify(n)
		}
	}
	return nil
}
