package ticket

import "time"

type State int

const (
	AwaitingTitle State = iota
	AwaitingPriority
	AwaitingTag
	AwaitingStatus
	AwaitingDescription
	Terminated
)

func (s State) String() string {
	switch s {
	case AwaitingTitle:
		return "awaiting_title"
	case AwaitingPriority:
		return "awaiting_priority"
	case AwaitingTag:
		return "awaiting_tag"
	case AwaitingStatus:
		return "awaiting_status"
	case AwaitingDescription:
		return "awaiting_description"
	case Terminated:
		return "terminated"
	default:
		return "unknown"
	}
}

type Field string

const (
	FieldTitle       Field = "title"
	FieldPriority    Field = "priority"
	FieldTag         Field = "tag"
	FieldStatus      Field = "status"
	FieldDescription Field = "description"
)

type Priority string

const (
	PriorityLow    Priority = "Low"
	PriorityMedium Priority = "Medium"
	PriorityHigh   Priority = "High"
)

var priorityLabels = []string{string(PriorityLow), string(PriorityMedium), string(PriorityHigh)}

// ParsePriority accepts only an exact label; surrounding whitespace is invalid.
func ParsePriority(s string) (Priority, bool) {
	switch p := Priority(s); p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return p, true
	default:
		return "", false
	}
}

type Tag string

const (
	TagPersonal Tag = "Personal"
	TagWork     Tag = "Work"
	TagHealth   Tag = "Health"
)

var tagLabels = []string{string(TagPersonal), string(TagWork), string(TagHealth)}

func ParseTag(s string) (Tag, bool) {
	switch t := Tag(s); t {
	case TagPersonal, TagWork, TagHealth:
		return t, true
	default:
		return "", false
	}
}

type Status string

const (
	StatusNew      Status = "New"
	StatusActive   Status = "Active"
	StatusResolved Status = "Resolved"
)

var statusLabels = []string{string(StatusNew), string(StatusActive), string(StatusResolved)}

func ParseStatus(s string) (Status, bool) {
	switch st := Status(s); st {
	case StatusNew, StatusActive, StatusResolved:
		return st, true
	default:
		return "", false
	}
}

// Record is the work item handed to the Store once all fields are collected.
type Record struct {
	Title       string   `json:"title" yaml:"title"`
	Priority    Priority `json:"priority" yaml:"priority"`
	Tag         Tag      `json:"tag" yaml:"tag"`
	Status      Status   `json:"status" yaml:"status"`
	Description string   `json:"description" yaml:"description"`
}

// Key identifies one conversation. Telegram private chats share the chat and
// user id, but group chats do not.
type Key struct {
	ChatID int64
	UserID int64
}

type Session struct {
	Key       Key
	State     State
	Record    Record
	Filled    []Field
	StartedAt time.Time
	UpdatedAt time.Time

	version uint64
}

// Reply is one outbound message. Choices render as a single-use keyboard.
type Reply struct {
	Text           string
	Choices        []string
	Placeholder    string
	RemoveKeyboard bool
	Reprompt       bool
}

type Inbound struct {
	ChatID int64
	UserID int64
	Text   string
}

func (in Inbound) Key() Key {
	return Key{ChatID: in.ChatID, UserID: in.UserID}
}

// Created is what the Store returns for a persisted record.
type Created struct {
	ID  string
	URL string
}
