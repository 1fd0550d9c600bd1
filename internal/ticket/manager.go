package ticket

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

var (
	ErrUnauthorized = errors.New("ticket: sender is not the authorized user")
	ErrNoSession    = errors.New("ticket: no active session")
)

const defaultSubmitTimeout = 30 * time.Second

type Options struct {
	AuthorizedUserID int64
	Store            Store
	Audit            AuditSink
	Logger           *slog.Logger
	// IdleTimeout discards a draft after no accepted answer for this long.
	// Zero disables expiry.
	IdleTimeout   time.Duration
	SubmitTimeout time.Duration
	// OnExpire delivers the farewell for drafts discarded by IdleTimeout.
	OnExpire func(Key, Reply)
	Now      func() time.Time
}

type entry struct {
	mu      sync.Mutex
	session *Session
	timer   *time.Timer
}

// Manager owns the session table. Each session is processed by at most one
// caller at a time; distinct sessions share nothing but the table.
type Manager struct {
	authorized    int64
	store         Store
	audit         AuditSink
	logger        *slog.Logger
	idleTimeout   time.Duration
	submitTimeout time.Duration
	onExpire      func(Key, Reply)
	now           func() time.Time

	mu       sync.Mutex
	sessions map[Key]*entry
}

func NewManager(opts Options) (*Manager, error) {
	if opts.AuthorizedUserID == 0 {
		return nil, fmt.Errorf("missing authorized user id")
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("missing record store")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	submitTimeout := opts.SubmitTimeout
	if submitTimeout <= 0 {
		submitTimeout = defaultSubmitTimeout
	}
	idle := opts.IdleTimeout
	if idle < 0 {
		idle = 0
	}
	return &Manager{
		authorized:    opts.AuthorizedUserID,
		store:         opts.Store,
		audit:         opts.Audit,
		logger:        logger,
		idleTimeout:   idle,
		submitTimeout: submitTimeout,
		onExpire:      opts.OnExpire,
		now:           now,
		sessions:      make(map[Key]*entry),
	}, nil
}

func (m *Manager) Authorized(userID int64) bool {
	return userID != 0 && userID == m.authorized
}

// Handle routes one inbound message. Control commands are recognised before
// any field validation. The bool result is false when nothing must be sent.
func (m *Manager) Handle(ctx context.Context, in Inbound) (Reply, bool) {
	key := in.Key()
	if !m.Authorized(in.UserID) {
		m.logger.Debug("ticket_unauthorized_sender", "chat_id", in.ChatID, "user_id", in.UserID)
		return Reply{}, false
	}

	var (
		reply Reply
		err   error
	)
	switch cmd := ParseCommand(in.Text); cmd {
	case CommandStart:
		reply, err = m.Begin(ctx, key)
	case CommandCancel:
		reply, err = m.Cancel(ctx, key)
	case CommandSkip:
		reply, err = m.Skip(ctx, key)
	case "":
		reply, err = m.Advance(ctx, key, in.Text)
	default:
		reply, err = m.reprompt(key)
	}
	switch {
	case errors.Is(err, ErrNoSession):
		return Reply{Text: noSessionText, RemoveKeyboard: true}, true
	case err != nil:
		return Reply{}, false
	}
	return reply, true
}

// Begin starts a fresh draft, discarding any draft already open for key.
func (m *Manager) Begin(ctx context.Context, key Key) (Reply, error) {
	if !m.Authorized(key.UserID) {
		m.logger.Warn("ticket_unauthorized_start", "chat_id", key.ChatID, "user_id", key.UserID)
		return Reply{}, ErrUnauthorized
	}
	if old := m.lookup(key); old != nil {
		old.mu.Lock()
		if old.session.State != Terminated {
			m.logger.Info("ticket_session_restarted", "chat_id", key.ChatID, "user_id", key.UserID, "state", old.session.State.String())
			m.teardownLocked(old)
		}
		old.mu.Unlock()
	}

	e := &entry{session: newSession(key, m.now())}
	e.mu.Lock()
	defer e.mu.Unlock()
	m.mu.Lock()
	m.sessions[key] = e
	m.mu.Unlock()
	m.armLocked(e)

	m.logger.Info("ticket_session_started", "chat_id", key.ChatID, "user_id", key.UserID)
	return promptFor(AwaitingTitle), nil
}

func (m *Manager) Advance(ctx context.Context, key Key, input string) (Reply, error) {
	return m.step(ctx, key, func(s *Session, now time.Time) step {
		return s.apply(input, now)
	})
}

func (m *Manager) Skip(ctx context.Context, key Key) (Reply, error) {
	return m.step(ctx, key, func(s *Session, now time.Time) step {
		if s.State == AwaitingDescription {
			m.logger.Info("ticket_description_skipped", "chat_id", key.ChatID, "title", s.Record.Title)
		}
		return s.skip(now)
	})
}

func (m *Manager) Cancel(ctx context.Context, key Key) (Reply, error) {
	e := m.lookup(key)
	if e == nil {
		return Reply{}, ErrNoSession
	}
	e.mu.Lock()
	state := e.session.State
	if state == Terminated {
		e.mu.Unlock()
		return Reply{}, ErrNoSession
	}
	m.teardownLocked(e)
	e.mu.Unlock()

	m.logger.Info("ticket_cancelled", "chat_id", key.ChatID, "user_id", key.UserID, "state", state.String())
	return Reply{Text: cancelText, RemoveKeyboard: true}, nil
}

// Session returns a copy of the open draft for key.
func (m *Manager) Session(key Key) (Session, bool) {
	e := m.lookup(key)
	if e == nil {
		return Session{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session.State == Terminated {
		return Session{}, false
	}
	out := *e.session
	out.Filled = append([]Field(nil), e.session.Filled...)
	return out, true
}

func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Close discards all open drafts and stops their idle timers.
func (m *Manager) Close() {
	m.mu.Lock()
	entries := make([]*entry, 0, len(m.sessions))
	for _, e := range m.sessions {
		entries = append(entries, e)
	}
	m.mu.Unlock()
	for _, e := range entries {
		e.mu.Lock()
		if e.session.State != Terminated {
			m.teardownLocked(e)
		}
		e.mu.Unlock()
	}
}

func (m *Manager) step(ctx context.Context, key Key, fn func(*Session, time.Time) step) (Reply, error) {
	e := m.lookup(key)
	if e == nil {
		return Reply{}, ErrNoSession
	}

	var (
		st  step
		rec Record
	)
	e.mu.Lock()
	s := e.session
	if s.State == Terminated {
		e.mu.Unlock()
		return Reply{}, ErrNoSession
	}
	from := s.State
	st = fn(s, m.now())
	switch {
	case !st.Accepted:
		m.logger.Info("ticket_invalid_input", "chat_id", key.ChatID, "state", from.String())
	case !st.Complete:
		m.logger.Info("ticket_field_accepted", "chat_id", key.ChatID, "field", string(st.Field), "value", fieldValue(s.Record, st.Field), "next", s.State.String())
		m.armLocked(e)
	default:
		m.logger.Info("ticket_field_accepted", "chat_id", key.ChatID, "field", string(st.Field), "value", fieldValue(s.Record, st.Field), "next", "submit")
		rec = s.Record
		m.teardownLocked(e)
	}
	e.mu.Unlock()

	if !st.Complete {
		return st.Reply, nil
	}
	return m.submit(ctx, key, rec), nil
}

func (m *Manager) reprompt(key Key) (Reply, error) {
	e := m.lookup(key)
	if e == nil {
		return Reply{}, ErrNoSession
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session.State == Terminated {
		return Reply{}, ErrNoSession
	}
	return repromptFor(e.session.State, ""), nil
}

func (m *Manager) lookup(key Key) *entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[key]
}

// teardownLocked marks the session terminated and drops it from the table.
// Lock order is always entry then table.
func (m *Manager) teardownLocked(e *entry) {
	e.session.State = Terminated
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	m.mu.Lock()
	if cur, ok := m.sessions[e.session.Key]; ok && cur == e {
		delete(m.sessions, e.session.Key)
	}
	m.mu.Unlock()
}

func (m *Manager) armLocked(e *entry) {
	if m.idleTimeout <= 0 {
		return
	}
	if e.timer != nil {
		e.timer.Stop()
	}
	version := e.session.version
	e.timer = time.AfterFunc(m.idleTimeout, func() {
		m.expire(e, version)
	})
}

func (m *Manager) expire(e *entry, version uint64) {
	e.mu.Lock()
	s := e.session
	if s.State == Terminated || s.version != version {
		e.mu.Unlock()
		return
	}
	key, state := s.Key, s.State
	m.teardownLocked(e)
	e.mu.Unlock()

	m.logger.Info("ticket_session_expired", "chat_id", key.ChatID, "user_id", key.UserID, "state", state.String(), "idle_timeout", m.idleTimeout.String())
	if m.onExpire != nil {
		m.onExpire(key, Reply{Text: expiredText, RemoveKeyboard: true})
	}
}
