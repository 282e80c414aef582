package services

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jewelrybyluna/storefront/services/storefront-bff/models"
	"go.uber.org/zap"
)

// DefaultToastDuration is how long a toast stays up unless dismissed.
const DefaultToastDuration = 3 * time.Second

// Notifier is the notification-display collaborator used by the cart and checkout.
type Notifier interface {
	Notify(severity models.Severity, message string) models.Notification
}

// ToastNotifier shows one notification at a time. A new notification replaces the current
// one and restarts the auto-dismiss clock.
type ToastNotifier struct {
	mu       sync.Mutex
	current  *models.Notification
	timer    *time.Timer
	duration time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

func NewToastNotifier(duration time.Duration, logger *zap.Logger) *ToastNotifier {
	if duration <= 0 {
		duration = DefaultToastDuration
	}
	return &ToastNotifier{duration: duration, logger: logger, now: time.Now}
}

func (n *ToastNotifier) Notify(severity models.Severity, message string) models.Notification {
	now := n.now()
	note := models.Notification{
		ID:        uuid.NewString(),
		Message:   message,
		Severity:  severity,
		CreatedAt: now,
		ExpiresAt: now.Add(n.duration),
	}

	n.mu.Lock()
	if n.timer != nil {
		n.timer.Stop()
	}
	n.current = &note
	id := note.ID
	n.timer = time.AfterFunc(n.duration, func() { n.Dismiss(id) })
	n.mu.Unlock()

	n.logger.Debug("toast shown",
		zap.String("id", note.ID),
		zap.String("severity", string(severity)),
		zap.String("message", message),
	)
	return note
}

// Current returns the visible notification, if any.
func (n *ToastNotifier) Current() (models.Notification, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.current == nil {
		return models.Notification{}, false
	}
	return *n.current, true
}

// Dismiss hides the notification with the given id. Dismissing an id that is no longer
// visible is a no-op and reports false.
func (n *ToastNotifier) Dismiss(id string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.current == nil || n.current.ID != id {
		return false
	}
	n.current = nil
	if n.timer != nil {
		n.timer.Stop()
		n.timer = nil
	}
	return true
}

// Close stops the pending auto-dismiss timer.
func (n *ToastNotifier) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.timer != nil {
		n.timer.Stop()
		n.timer = nil
	}
}
