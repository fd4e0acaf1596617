package workflow

import (
	"log/slog"
	"sync"

	"podscribe/internal/config"
	"podscribe/internal/logging"
	"podscribe/internal/notifications"
	"podscribe/internal/stage"
	"podscribe/internal/store"
)

// Manager drives episodes through the workflow state machine. Exactly one
// handler is registered per status: the stage that consumes that status and
// produces the next one.
type Manager struct {
	cfg      *config.Config
	store    *store.Store
	logger   *slog.Logger
	notifier notifications.Service

	handlers map[store.WorkflowStatus]registeredStage

	mu    sync.Mutex
	locks map[int64]*episodeLock
}

type registeredStage struct {
	name    string
	handler stage.Handler
}

// NewManager constructs a workflow manager. A nil logger is replaced with a
// noop logger; a nil notifier disables notifications.
func NewManager(cfg *config.Config, st *store.Store, logger *slog.Logger, notifier notifications.Service) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Manager{
		cfg:      cfg,
		store:    st,
		logger:   logger,
		notifier: notifier,
		handlers: make(map[store.WorkflowStatus]registeredStage),
		locks:    make(map[int64]*episodeLock),
	}
}

// Register binds the handler for the stage that consumes the given status.
// READY_FOR_REVIEW never gets a handler: only the review sync advances it.
func (m *Manager) Register(status store.WorkflowStatus, name string, handler stage.Handler) {
	if status == store.StatusReadyForReview || status == store.StatusPublished {
		panic("workflow: status " + status.String() + " is not resumable")
	}
	m.handlers[status] = registeredStage{name: name, handler: handler}
}

// Store exposes the backing store for read-only status surfaces.
func (m *Manager) Store() *store.Store {
	return m.store
}

func (m *Manager) stageFor(status store.WorkflowStatus) (registeredStage, bool) {
	registered, ok := m.handlers[status]
	return registered, ok
}
