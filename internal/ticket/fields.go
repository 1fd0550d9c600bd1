package ticket

import "strings"

// fieldSpec describes what a non-terminal state accepts and where it leads.
type fieldSpec struct {
	Field       Field
	Prompt      string
	Reminder    string
	Choices     []string
	Placeholder string
	Next        State
	// Accept validates raw input and writes it into the record.
	Accept func(rec *Record, input string) bool
}

const (
	startPrompt = "Hi! Let's create a new ticket. Send /cancel at any time to stop.\n\n" +
		"What's the ticket title?"
	cancelText      = "Bye! I hope we can talk again some day."
	expiredText     = "This ticket draft was discarded after a period of inactivity. Send /start to begin again."
	submitOKText    = "Your task has been created."
	submitErrorText = "Something went wrong. Please try again."
	noSessionText   = "Send /start to create a new ticket."
	skipOnlyText    = "Only the description can be skipped."
)

var fieldSpecs = map[State]fieldSpec{
	AwaitingTitle: {
		Field:    FieldTitle,
		Prompt:   startPrompt,
		Reminder: "Please send the ticket title as text.",
		Next:     AwaitingPriority,
		Accept: func(rec *Record, input string) bool {
			input = strings.TrimSpace(input)
			if input == "" {
				return false
			}
			rec.Title = input
			return true
		},
	},
	AwaitingPriority: {
		Field:       FieldPriority,
		Prompt:      "What's the priority level?",
		Reminder:    "You should choose or write one of these options.",
		Choices:     priorityLabels,
		Placeholder: "Low, Medium, or High?",
		Next:        AwaitingTag,
		Accept: func(rec *Record, input string) bool {
			p, ok := ParsePriority(input)
			if ok {
				rec.Priority = p
			}
			return ok
		},
	},
	AwaitingTag: {
		Field:       FieldTag,
		Prompt:      "Got it! Now, please choose a tag for your task.",
		Reminder:    "You should choose or write one of these options.",
		Choices:     tagLabels,
		Placeholder: "Personal, Work, or Health?",
		Next:        AwaitingStatus,
		Accept: func(rec *Record, input string) bool {
			t, ok := ParseTag(input)
			if ok {
				rec.Tag = t
			}
			return ok
		},
	},
	AwaitingStatus: {
		Field:       FieldStatus,
		Prompt:      "Great choice! Now, please choose a status for your task.",
		Reminder:    "You should choose or write one of these options.",
		Choices:     statusLabels,
		Placeholder: "New, Active, or Resolved?",
		Next:        AwaitingDescription,
		Accept: func(rec *Record, input string) bool {
			st, ok := ParseStatus(input)
			if ok {
				rec.Status = st
			}
			return ok
		},
	},
	AwaitingDescription: {
		Field:    FieldDescription,
		Prompt:   "Now, please provide a description for your task, or send /skip.",
		Reminder: "Please send the description as text, or send /skip.",
		Next:     Terminated,
		// Optional: empty text resolves the field like /skip.
		Accept: func(rec *Record, input string) bool {
			rec.Description = strings.TrimSpace(input)
			return true
		},
	},
}

func promptFor(state State) Reply {
	spec, ok := fieldSpecs[state]
	if !ok {
		return Reply{}
	}
	return Reply{
		Text:           spec.Prompt,
		Choices:        append([]string(nil), spec.Choices...),
		Placeholder:    spec.Placeholder,
		RemoveKeyboard: len(spec.Choices) == 0,
	}
}

func repromptFor(state State, reminder string) Reply {
	spec, ok := fieldSpecs[state]
	if !ok {
		return Reply{}
	}
	if strings.TrimSpace(reminder) == "" {
		reminder = spec.Reminder
	}
	r := promptFor(state)
	r.Text = reminder
	if len(spec.Choices) > 0 {
		r.Text = reminder + " (" + strings.Join(spec.Choices, ", ") + ")"
	}
	r.Reprompt = true
	return r
}
