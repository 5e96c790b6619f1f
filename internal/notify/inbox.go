// Package notify holds the transient messages a storefront session shows its shopper.
package notify

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/pcstore-storefront/pkg/enums"
)

const DefaultCapacity = 50

type Notification struct {
	ID        string                  `json:"id"`
	Level     enums.NotificationLevel `json:"level"`
	Message   string                  `json:"message"`
	CreatedAt time.Time               `json:"createdAt"`
}

// Inbox is a bounded FIFO of notifications. When full, the oldest entry is dropped.
type Inbox struct {
	capacity int
	now      func() time.Time

	mu      sync.Mutex
	items   []Notification
	dropped int
}

func NewInbox(capacity int) *Inbox {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Inbox{capacity: capacity, now: time.Now}
}

// Notify appends a message. Blank messages are ignored and unknown levels are stored as errors.
func (i *Inbox) Notify(level enums.NotificationLevel, message string) {
	if i == nil {
		return
	}
	message = strings.TrimSpace(message)
	if message == "" {
		return
	}
	if !level.IsValid() {
		level = enums.NotificationLevelError
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	if len(i.items) == i.capacity {
		i.items = i.items[1:]
		i.dropped++
	}
	i.items = append(i.items, Notification{
		ID:        uuid.NewString(),
		Level:     level,
		Message:   message,
		CreatedAt: i.now().UTC(),
	})
}

func (i *Inbox) Info(message string)  { i.Notify(enums.NotificationLevelInfo, message) }
func (i *Inbox) Warn(message string)  { i.Notify(enums.NotificationLevelWarning, message) }
func (i *Inbox) Error(message string) { i.Notify(enums.NotificationLevelError, message) }

// Drain returns every queued notification, oldest first, and empties the inbox.
func (i *Inbox) Drain() []Notification {
	if i == nil {
		return nil
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	out := i.items
	i.items = nil
	if out == nil {
		return []Notification{}
	}
	return out
}

// Peek returns a copy of the queue without consuming it.
func (i *Inbox) Peek() []Notification {
	if i == nil {
		return nil
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	out := make([]Notification, len(i.items))
	copy(out, i.items)
	return out
}

func (i *Inbox) Len() int {
	if i == nil {
		return 0
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.items)
}

// Dropped counts notifications evicted because the inbox was full.
func (i *Inbox) Dropped() int {
	if i == nil {
		return 0
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.dropped
}
