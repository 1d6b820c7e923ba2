// Package notify holds the per-user notification inboxes the UI renders as
// toasts.
package notify

import (
	"sort"
	"sync"
	"time"

	nuts "github.com/vaudience/go-nuts"
)

type Kind string

const (
	KindLoading Kind = "loading"
	KindSuccess Kind = "success"
	KindError   Kind = "error"
	KindInfo    Kind = "info"
)

// Action is a button attached to a notification, e.g. "Download".
type Action struct {
	Label  string `json:"label"`
	Method string `json:"method"`
	Href   string `json:"href"`
}

type Notification struct {
	ID          string    `json:"id"`
	Kind        Kind      `json:"kind"`
	Message     string    `json:"message"`
	Description string    `json:"description,omitempty"`
	Action      *Action   `json:"action,omitempty"`
	Persistent  bool      `json:"persistent"`
	CreatedAt   time.Time `json:"created_at"`
}

// Inbox is the notification queue of one user. Notifications sharing an ID
// replace each other in place.
type Inbox struct {
	mu    sync.Mutex
	items map[string]*Notification
	seq   map[string]int
	next  int
}

func NewInbox() *Inbox {
	return &Inbox{
		items: make(map[string]*Notification),
		seq:   make(map[string]int),
	}
}

// Push stores n. An empty ID gets a generated one. Returns the stored ID.
func (b *Inbox) Push(n Notification) string {
	if n.ID == "" {
		n.ID = nuts.NID("ntf", 10)
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.items[n.ID]; !ok {
		b.next++
		b.seq[n.ID] = b.next
	}
	b.items[n.ID] = &n
	return n.ID
}

// Get returns the notification with id.
func (b *Inbox) Get(id string) (Notification, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	n, ok := b.items[id]
	if !ok {
		return Notification{}, false
	}
	return *n, true
}

// List returns all pending notifications in arrival order.
func (b *Inbox) List() []Notification {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.snapshot()
}

// Drain returns all pending notifications and drops the transient ones.
// Persistent ones stay until dismissed.
func (b *Inbox) Drain() []Notification {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.snapshot()
	for _, n := range out {
		if !n.Persistent {
			delete(b.items, n.ID)
			delete(b.seq, n.ID)
		}
	}
	return out
}

// Dismiss removes a notification. It reports whether one was removed.
func (b *Inbox) Dismiss(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.items[id]; !ok {
		return false
	}
	delete(b.items, id)
	delete(b.seq, id)
	return true
}

func (b *Inbox) snapshot() []Notification {
	out := make([]Notification, 0, len(b.items))
	for _, n := range b.items {
		out = append(out, *n)
	}
	sort.Slice(out, func(i, j int) bool { return b.seq[out[i].ID] < b.seq[out[j].ID] })
	return out
}

// Hub owns one inbox per user.
type Hub struct {
	mu      sync.Mutex
	inboxes map[string]*Inbox
}

func NewHub() *Hub {
	return &Hub{inboxes: make(map[string]*Inbox)}
}

// Inbox returns the inbox of user, creating it on first use.
func (h *Hub) Inbox(user string) *Inbox {
	h.mu.Lock()
	defer h.mu.Unlock()
	in, ok := h.inboxes[user]
	if !ok {
		in = NewInbox()
		h.inboxes[user] = in
	}
	return in
}
