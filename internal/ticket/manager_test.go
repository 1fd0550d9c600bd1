package ticket

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"
)

const testUserID int64 = 4242

type fakeStore struct {
	mu      sync.Mutex
	records []Record
	err     error
}

func (f *fakeStore) CreateRecord(_ context.Context, rec Record) (Created, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, rec)
	if f.err != nil {
		return Created{}, f.err
	}
	return Created{ID: "page-1", URL: "https://example.test/page-1"}, nil
}

func (f *fakeStore) calls() []Record {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Record(nil), f.records...)
}

type fakeAudit struct {
	mu     sync.Mutex
	events []SubmissionEvent
}

func (f *fakeAudit) Emit(_ context.Context, e SubmissionEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, e)
	return nil
}

func newTestManager(t *testing.T, store Store, mutate func(*Options)) *Manager {
	t.Helper()
	opts := Options{
		AuthorizedUserID: testUserID,
		Store:            store,
		Logger:           slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	if mutate != nil {
		mutate(&opts)
	}
	m, err := NewManager(opts)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	t.Cleanup(m.Close)
	return m
}

func send(t *testing.T, m *Manager, text string) Reply {
	t.Helper()
	r, ok := m.Handle(context.Background(), Inbound{ChatID: testUserID, UserID: testUserID, Text: text})
	if !ok {
		t.Fatalf("Handle(%q) produced no reply", text)
	}
	return r
}

func testKey() Key {
	return Key{ChatID: testUserID, UserID: testUserID}
}

func TestNewManagerRequiresAuthorizedUserAndStore(t *testing.T) {
	if _, err := NewManager(Options{Store: &fakeStore{}}); err == nil {
		t.Fatalf("expected error for missing authorized user")
	}
	if _, err := NewManager(Options{AuthorizedUserID: 1}); err == nil {
		t.Fatalf("expected error for missing store")
	}
}

func TestFullConversationSubmitsOnce(t *testing.T) {
	store := &fakeStore{}
	audit := &fakeAudit{}
	m := newTestManager(t, store, func(o *Options) { o.Audit = audit })

	r := send(t, m, "/start")
	if !strings.Contains(r.Text, "title") {
		t.Fatalf("start prompt = %q", r.Text)
	}
	r = send(t, m, "Fix login bug")
	if len(r.Choices) != 3 || r.Choices[0] != "Low" || r.Placeholder != "Low, Medium, or High?" {
		t.Fatalf("priority prompt mismatch: %#v", r)
	}
	send(t, m, "Medium")
	send(t, m, "Work")
	r = send(t, m, "Active")
	if !r.RemoveKeyboard || !strings.Contains(r.Text, "/skip") {
		t.Fatalf("description prompt mismatch: %#v", r)
	}
	r = send(t, m, "Users can't log in with SSO")
	if r.Text != submitOKText {
		t.Fatalf("final reply = %q, want %q", r.Text, submitOKText)
	}

	calls := store.calls()
	if len(calls) != 1 {
		t.Fatalf("store calls = %d, want 1", len(calls))
	}
	want := Record{
		Title:       "Fix login bug",
		Priority:    PriorityMedium,
		Tag:         TagWork,
		Status:      StatusActive,
		Description: "Users can't log in with SSO",
	}
	if calls[0] != want {
		t.Fatalf("submitted record = %#v, want %#v", calls[0], want)
	}
	if _, ok := m.Session(testKey()); ok {
		t.Fatalf("session should be torn down after submission")
	}
	if len(audit.events) != 1 || !audit.events[0].OK || audit.events[0].RecordID != "page-1" {
		t.Fatalf("audit events mismatch: %#v", audit.events)
	}
	if audit.events[0].ID == "" {
		t.Fatalf("audit event should carry a submission id")
	}
}

func TestInvalidPriorityRepromptsThenSkip(t *testing.T) {
	store := &fakeStore{}
	m := newTestManager(t, store, nil)

	send(t, m, "/start")
	send(t, m, "Fix login bug")
	r := send(t, m, "urgent")
	if !r.Reprompt || len(r.Choices) != 3 {
		t.Fatalf("expected re-prompt with choices, got %#v", r)
	}
	s, ok := m.Session(testKey())
	if !ok || s.State != AwaitingPriority {
		t.Fatalf("state = %v, want AwaitingPriority", s.State)
	}
	send(t, m, "High")
	send(t, m, "Work")
	send(t, m, "Active")
	r = send(t, m, "/skip")
	if r.Text != submitOKText {
		t.Fatalf("final reply = %q", r.Text)
	}
	calls := store.calls()
	if len(calls) != 1 {
		t.Fatalf("store calls = %d, want 1", len(calls))
	}
	if calls[0].Priority != PriorityHigh || calls[0].Description != "" {
		t.Fatalf("submitted record mismatch: %#v", calls[0])
	}
}

func TestRepromptIsUniformAcrossEnumeratedStates(t *testing.T) {
	m := newTestManager(t, &fakeStore{}, nil)
	send(t, m, "/start")
	send(t, m, "title")

	steps := []struct {
		state State
		valid string
	}{
		{AwaitingPriority, "Low"},
		{AwaitingTag, "Health"},
		{AwaitingStatus, "Resolved"},
	}
	for _, st := range steps {
		for _, bad := range []string{"low", "LOW", "nope", "Low Medium", "/unknown"} {
			r := send(t, m, bad)
			if !r.Reprompt {
				t.Fatalf("%v: %q should re-prompt, got %#v", st.state, bad, r)
			}
			s, _ := m.Session(testKey())
			if s.State != st.state {
				t.Fatalf("%v: %q moved state to %v", st.state, bad, s.State)
			}
		}
		send(t, m, st.valid)
	}
}

func TestCancelDiscardsWithoutSubmission(t *testing.T) {
	store := &fakeStore{}
	m := newTestManager(t, store, nil)

	send(t, m, "/start")
	send(t, m, "Fix login bug")
	send(t, m, "Medium")
	r := send(t, m, "/cancel")
	if r.Text != cancelText || !r.RemoveKeyboard {
		t.Fatalf("cancel reply mismatch: %#v", r)
	}
	if len(store.calls()) != 0 {
		t.Fatalf("cancel must not submit")
	}
	if m.Active() != 0 {
		t.Fatalf("session table should be empty, got %d", m.Active())
	}
	r = send(t, m, "Work")
	if r.Text != noSessionText {
		t.Fatalf("text after cancel = %q, want hint", r.Text)
	}
}

func TestCancelFromEveryState(t *testing.T) {
	answers := []string{"t", "Low", "Personal", "New"}
	for n := 0; n <= len(answers); n++ {
		store := &fakeStore{}
		m := newTestManager(t, store, nil)
		send(t, m, "/start")
		for _, a := range answers[:n] {
			send(t, m, a)
		}
		if _, err := m.Cancel(context.Background(), testKey()); err != nil {
			t.Fatalf("Cancel() after %d answers error = %v", n, err)
		}
		if len(store.calls()) != 0 {
			t.Fatalf("Cancel() after %d answers submitted", n)
		}
	}
}

func TestSkipOutsideDescriptionReprompts(t *testing.T) {
	m := newTestManager(t, &fakeStore{}, nil)
	send(t, m, "/start")
	r := send(t, m, "/skip")
	if !r.Reprompt || !strings.Contains(r.Text, skipOnlyText) {
		t.Fatalf("skip at title should re-prompt, got %#v", r)
	}
	s, _ := m.Session(testKey())
	if s.State != AwaitingTitle || len(s.Filled) != 0 {
		t.Fatalf("skip at title mutated session: %#v", s)
	}
}

func TestSkipEquivalentToEmptyDescription(t *testing.T) {
	run := func(last func(m *Manager)) Record {
		store := &fakeStore{}
		m := newTestManager(t, store, nil)
		for _, in := range []string{"/start", "t", "Low", "Work", "New"} {
			send(t, m, in)
		}
		last(m)
		calls := store.calls()
		if len(calls) != 1 {
			t.Fatalf("store calls = %d, want 1", len(calls))
		}
		return calls[0]
	}
	viaCommand := run(func(m *Manager) { send(t, m, "/skip@ticket_bot") })
	viaMethod := run(func(m *Manager) {
		if _, err := m.Skip(context.Background(), testKey()); err != nil {
			t.Fatalf("Skip() error = %v", err)
		}
	})
	viaEmptyText := run(func(m *Manager) {
		if _, err := m.Advance(context.Background(), testKey(), "  "); err != nil {
			t.Fatalf("Advance() error = %v", err)
		}
	})
	if viaCommand != viaMethod || viaCommand != viaEmptyText || viaCommand.Description != "" {
		t.Fatalf("skip results differ: %#v vs %#v vs %#v", viaCommand, viaMethod, viaEmptyText)
	}
}

func TestEmptyTitleReprompts(t *testing.T) {
	m := newTestManager(t, &fakeStore{}, nil)
	send(t, m, "/start")
	r := send(t, m, "   ")
	if !r.Reprompt {
		t.Fatalf("empty title should re-prompt, got %#v", r)
	}
}

func TestUnauthorizedStartIsSilent(t *testing.T) {
	store := &fakeStore{}
	m := newTestManager(t, store, nil)

	if r, ok := m.Handle(context.Background(), Inbound{ChatID: 1, UserID: 1, Text: "/start"}); ok {
		t.Fatalf("unauthorized start produced reply %#v", r)
	}
	if _, err := m.Begin(context.Background(), Key{ChatID: 1, UserID: 1}); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("Begin() error = %v, want ErrUnauthorized", err)
	}
	if m.Active() != 0 {
		t.Fatalf("no session should be created, got %d", m.Active())
	}
}

func TestRestartDiscardsDraft(t *testing.T) {
	store := &fakeStore{}
	m := newTestManager(t, store, nil)
	send(t, m, "/start")
	send(t, m, "first")
	send(t, m, "/START")
	s, ok := m.Session(testKey())
	if !ok || s.State != AwaitingTitle || s.Record != (Record{}) {
		t.Fatalf("restart should give a fresh session, got %#v", s)
	}
	if m.Active() != 1 {
		t.Fatalf("active sessions = %d, want 1", m.Active())
	}
}

func TestSubmissionFailureIsGenericAndTearsDown(t *testing.T) {
	store := &fakeStore{err: errors.New("notion http 401: API token is invalid")}
	audit := &fakeAudit{}
	m := newTestManager(t, store, func(o *Options) { o.Audit = audit })
	for _, in := range []string{"/start", "t", "Low", "Work", "New"} {
		send(t, m, in)
	}
	r := send(t, m, "details")
	if r.Text != submitErrorText {
		t.Fatalf("failure reply = %q", r.Text)
	}
	if strings.Contains(r.Text, "401") {
		t.Fatalf("failure reply leaks error detail")
	}
	if len(store.calls()) != 1 {
		t.Fatalf("store calls = %d, want exactly 1", len(store.calls()))
	}
	if m.Active() != 0 {
		t.Fatalf("session should be torn down after failure")
	}
	if len(audit.events) != 1 || audit.events[0].OK || audit.events[0].Error == "" {
		t.Fatalf("audit should record failure: %#v", audit.events)
	}
	r = send(t, m, "details")
	if r.Text != noSessionText {
		t.Fatalf("no retry expected, got %q", r.Text)
	}
}

func TestIdleExpiryCancelsDraft(t *testing.T) {
	store := &fakeStore{}
	expired := make(chan Reply, 1)
	m := newTestManager(t, store, func(o *Options) {
		o.IdleTimeout = 20 * time.Millisecond
		o.OnExpire = func(_ Key, r Reply) { expired <- r }
	})
	send(t, m, "/start")
	send(t, m, "title")

	select {
	case r := <-expired:
		if r.Text != expiredText {
			t.Fatalf("expire reply = %q", r.Text)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("session did not expire")
	}
	if m.Active() != 0 || len(store.calls()) != 0 {
		t.Fatalf("expired session must be discarded without submission")
	}
}

func TestNoSessionHint(t *testing.T) {
	m := newTestManager(t, &fakeStore{}, nil)
	r := send(t, m, "hello")
	if r.Text != noSessionText {
		t.Fatalf("reply = %q, want hint", r.Text)
	}
	if _, err := m.Advance(context.Background(), testKey(), "hello"); !errors.Is(err, ErrNoSession) {
		t.Fatalf("Advance() error = %v, want ErrNoSession", err)
	}
}

func TestConcurrentAnswersNeverDoubleSubmit(t *testing.T) {
	store := &fakeStore{}
	m := newTestManager(t, store, nil)
	for _, in := range []string{"/start", "t", "Low", "Work", "New"} {
		send(t, m, in)
	}
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = m.Advance(context.Background(), testKey(), "racing description")
		}()
	}
	wg.Wait()
	if n := len(store.calls()); n != 1 {
		t.Fatalf("store calls = %d, want 1", n)
	}
}

func TestErrorKind(t *testing.T) {
	if got := ErrorKind(context.DeadlineExceeded); got != "timeout" {
		t.Fatalf("ErrorKind(deadline) = %q", got)
	}
	if got := ErrorKind(kindErr{}); got != "validation_error" {
		t.Fatalf("ErrorKind(kinded) = %q", got)
	}
	if got := ErrorKind(nil); got != "" {
		t.Fatalf("ErrorKind(nil) = %q", got)
	}
}

type kindErr struct{}

func (kindErr) Error() string     { return "bad" }
func (kindErr) ErrorKind() string { return "validation_error" }

func TestParseCommand(t *testing.T) {
	cases := map[string]string{
		"/start":            "/start",
		" /Cancel ":         "/cancel",
		"/skip@ticket_bot":  "/skip",
		"/skip now please":  "/skip",
		"Fix login bug":     "",
		"":                  "",
		"not /start at all": "",
	}
	for in, want := range cases {
		if got := ParseCommand(in); got != want {
			t.Fatalf("ParseCommand(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestEnumLabelsMustMatchExactly(t *testing.T) {
	m := newTestManager(t, &fakeStore{}, nil)
	send(t, m, "/start")
	send(t, m, "Fix login bug")
	for _, in := range []string{"  High\t", "high", "HIGH", "High!"} {
		r := send(t, m, in)
		if !r.Reprompt {
			t.Fatalf("%q should re-prompt, got %#v", in, r)
		}
	}
	s, _ := m.Session(testKey())
	if s.State != AwaitingPriority || s.Record.Priority != "" {
		t.Fatalf("padded or recased label changed session: %#v", s)
	}
	if _, ok := ParseTag(" Work"); ok {
		t.Fatalf("ParseTag accepted padded label")
	}
	if _, ok := ParseStatus("New\n"); ok {
		t.Fatalf("ParseStatus accepted padded label")
	}
}
