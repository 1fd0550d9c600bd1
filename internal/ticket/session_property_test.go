package ticket

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"pgregory.net/rapid"
)

var fieldOrder = []Field{FieldTitle, FieldPriority, FieldTag, FieldStatus, FieldDescription}

func newPropertyManager(rt *rapid.T, store Store) *Manager {
	m, err := NewManager(Options{
		AuthorizedUserID: testUserID,
		Store:            store,
		Logger:           slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		rt.Fatalf("NewManager() error = %v", err)
	}
	return m
}

func validAnswer(state State) *rapid.Generator[string] {
	switch state {
	case AwaitingPriority:
		return rapid.SampledFrom(priorityLabels)
	case AwaitingTag:
		return rapid.SampledFrom(tagLabels)
	case AwaitingStatus:
		return rapid.SampledFrom(statusLabels)
	default:
		return rapid.StringMatching(`[A-Za-z][A-Za-z0-9 ,.']{0,40}`)
	}
}

// TestPropertyFieldsFillInOrder drives random mixes of valid, invalid and
// control input and checks the filled fields always form a prefix of the
// canonical order with no repeats.
func TestPropertyFieldsFillInOrder(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		store := &fakeStore{}
		m := newPropertyManager(rt, store)
		defer m.Close()
		ctx := context.Background()
		key := testKey()

		if _, err := m.Begin(ctx, key); err != nil {
			rt.Fatalf("Begin() error = %v", err)
		}
		steps := rapid.IntRange(1, 60).Draw(rt, "steps")
		for i := 0; i < steps; i++ {
			s, ok := m.Session(key)
			if !ok {
				break
			}
			var input string
			switch rapid.IntRange(0, 3).Draw(rt, "kind") {
			case 0:
				input = rapid.StringMatching(`[a-z]{1,8}`).Draw(rt, "junk")
			case 1:
				input = "/bogus"
			default:
				input = validAnswer(s.State).Draw(rt, "valid")
			}
			_, _ = m.Handle(ctx, Inbound{ChatID: key.ChatID, UserID: key.UserID, Text: input})

			after, ok := m.Session(key)
			if !ok {
				continue
			}
			if len(after.Filled) > len(fieldOrder) {
				rt.Fatalf("too many fields filled: %v", after.Filled)
			}
			for j, f := range after.Filled {
				if f != fieldOrder[j] {
					rt.Fatalf("filled order = %v", after.Filled)
				}
			}
			if State(len(after.Filled)) != after.State {
				rt.Fatalf("state %v inconsistent with filled %v", after.State, after.Filled)
			}
		}
		if n := len(store.calls()); n > 1 {
			rt.Fatalf("store calls = %d, want at most 1", n)
		}
	})
}

// TestPropertyInvalidEnumInputIsIdempotent repeats invalid input at an
// enumerated state and checks nothing moves.
func TestPropertyInvalidEnumInputIsIdempotent(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		store := &fakeStore{}
		m := newPropertyManager(rt, store)
		defer m.Close()
		ctx := context.Background()
		key := testKey()

		_, _ = m.Begin(ctx, key)
		target := rapid.SampledFrom([]State{AwaitingPriority, AwaitingTag, AwaitingStatus}).Draw(rt, "target")
		for st := AwaitingTitle; st < target; st++ {
			if _, err := m.Advance(ctx, key, validAnswer(st).Draw(rt, "answer")); err != nil {
				rt.Fatalf("Advance() error = %v", err)
			}
		}
		before, _ := m.Session(key)

		invalid := rapid.StringMatching(`[a-z ]{0,12}`).Filter(func(s string) bool {
			_, p := ParsePriority(s)
			_, tg := ParseTag(s)
			_, stt := ParseStatus(s)
			return !p && !tg && !stt && !strings.HasPrefix(strings.TrimSpace(s), "/")
		}).Draw(rt, "invalid")
		for i := 0; i < 100; i++ {
			r, err := m.Advance(ctx, key, invalid)
			if err != nil {
				rt.Fatalf("Advance() error = %v", err)
			}
			if !r.Reprompt || len(r.Choices) != 3 {
				rt.Fatalf("expected re-prompt with menu, got %#v", r)
			}
		}
		after, _ := m.Session(key)
		if after.State != target || after.Record != before.Record || len(after.Filled) != len(before.Filled) {
			rt.Fatalf("invalid input changed session: before=%#v after=%#v", before, after)
		}
		if len(store.calls()) != 0 {
			rt.Fatalf("invalid input must never submit")
		}
	})
}

// TestPropertyCompletionSubmitsExactlyOnce finishes a conversation either by
// description text or by skip.
func TestPropertyCompletionSubmitsExactlyOnce(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		store := &fakeStore{}
		m := newPropertyManager(rt, store)
		defer m.Close()
		ctx := context.Background()
		key := testKey()

		_, _ = m.Begin(ctx, key)
		var want Record
		want.Title = strings.TrimSpace(validAnswer(AwaitingTitle).Draw(rt, "title"))
		want.Priority = Priority(validAnswer(AwaitingPriority).Draw(rt, "priority"))
		want.Tag = Tag(validAnswer(AwaitingTag).Draw(rt, "tag"))
		want.Status = Status(validAnswer(AwaitingStatus).Draw(rt, "status"))
		for _, in := range []string{want.Title, string(want.Priority), string(want.Tag), string(want.Status)} {
			if _, err := m.Advance(ctx, key, in); err != nil {
				rt.Fatalf("Advance(%q) error = %v", in, err)
			}
		}
		if rapid.Bool().Draw(rt, "skip") {
			_, _ = m.Skip(ctx, key)
		} else {
			want.Description = strings.TrimSpace(validAnswer(AwaitingDescription).Draw(rt, "description"))
			_, _ = m.Advance(ctx, key, want.Description)
		}
		// Late input after completion must not reach the store.
		_, _ = m.Skip(ctx, key)
		_, _ = m.Advance(ctx, key, "late")

		calls := store.calls()
		if len(calls) != 1 {
			rt.Fatalf("store calls = %d, want 1", len(calls))
		}
		if calls[0] != want {
			rt.Fatalf("submitted %#v, want %#v", calls[0], want)
		}
	})
}
