package ticket

import "time"

func newSession(key Key, now time.Time) *Session {
	return &Session{
		Key:       key,
		State:     AwaitingTitle,
		StartedAt: now,
		UpdatedAt: now,
	}
}

type step struct {
	Reply    Reply
	Accepted bool
	Field    Field
	// Complete is set once Description is resolved; Record is then final.
	Complete bool
}

// apply evaluates one field answer against the current state. Callers must
// hold the session's lock.
func (s *Session) apply(input string, now time.Time) step {
	spec, ok := fieldSpecs[s.State]
	if !ok {
		return step{}
	}
	next := s.Record
	if !spec.Accept(&next, input) {
		return step{Reply: repromptFor(s.State, "")}
	}
	return s.accept(spec, next, now)
}

// skip resolves the description as empty. Any other state re-prompts.
func (s *Session) skip(now time.Time) step {
	if s.State != AwaitingDescription {
		return step{Reply: repromptFor(s.State, skipOnlyText)}
	}
	next := s.Record
	next.Description = ""
	return s.accept(fieldSpecs[AwaitingDescription], next, now)
}

func (s *Session) accept(spec fieldSpec, rec Record, now time.Time) step {
	s.Record = rec
	s.Filled = append(s.Filled, spec.Field)
	s.State = spec.Next
	s.UpdatedAt = now
	s.version++
	if spec.Next == Terminated {
		return step{Accepted: true, Field: spec.Field, Complete: true}
	}
	return step{Reply: promptFor(spec.Next), Accepted: true, Field: spec.Field}
}

func fieldValue(rec Record, f Field) string {
	switch f {
	case FieldTitle:
		return rec.Title
	case FieldPriority:
		return string(rec.Priority)
	case FieldTag:
		return string(rec.Tag)
	case FieldStatus:
		return string(rec.Status)
	case FieldDescription:
		return rec.Description
	default:
		return ""
	}
}
