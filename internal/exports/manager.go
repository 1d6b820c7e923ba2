package exports

import (
	"sync"

	nuts "github.com/vaudience/go-nuts"

	"github.com/itsatony/w4b_v3/server/dashboard/internal/notify"
	"github.com/itsatony/w4b_v3/server/dashboard/internal/repository"
	"github.com/itsatony/w4b_v3/server/dashboard/internal/repository/files"
)

// Manager owns one controller per signed-in user.
type Manager struct {
	exports repository.ExportRepository
	users   EmailLookup
	spool   *files.Spool
	hub     *notify.Hub
	opts    Options

	mu          sync.Mutex
	controllers map[string]*Controller
}

func NewManager(exports repository.ExportRepository, users EmailLookup, spool *files.Spool, hub *notify.Hub, opts Options) *Manager {
	return &Manager{
		exports:     exports,
		users:       users,
		spool:       spool,
		hub:         hub,
		opts:        opts,
		controllers: make(map[string]*Controller),
	}
}

// Controller returns the controller of user, creating it on first use. Its
// notifications go to the user's inbox in the hub.
func (m *Manager) Controller(user string) *Controller {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.controllers[user]
	if !ok {
		c = NewController(m.exports, m.users, m.spool, m.hub.Inbox(user), m.opts)
		m.controllers[user] = c
	}
	return c
}

// Release unmounts the controller of user and forgets it, together with its
// settled jobs. It returns how many pollers were canceled.
func (m *Manager) Release(user string) int {
	m.mu.Lock()
	c, ok := m.controllers[user]
	delete(m.controllers, user)
	m.mu.Unlock()
	if !ok {
		return 0
	}
	return c.Unmount()
}

// ActivePollers counts the running pollers across users.
func (m *Manager) ActivePollers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.controllers {
		n += c.registry.Len()
	}
	return n
}

// Shutdown unmounts every controller.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	controllers := make([]*Controller, 0, len(m.controllers))
	for _, c := range m.controllers {
		controllers = append(controllers, c)
	}
	m.mu.Unlock()

	total := 0
	for _, c := range controllers {
		total += c.Unmount()
	}
	nuts.L.Infof("[Exports] Shutdown canceled %d pollers", total)
}
