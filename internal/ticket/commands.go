package ticket

import "strings"

const (
	CommandStart  = "/start"
	CommandCancel = "/cancel"
	CommandSkip   = "/skip"
)

// ParseCommand returns the normalized control command in text, or "" when the
// text is ordinary field content. "/cmd@BotName" is accepted.
func ParseCommand(text string) string {
	word := strings.TrimSpace(text)
	if i := strings.IndexAny(word, " \n\t"); i >= 0 {
		word = word[:i]
	}
	if word == "" || !strings.HasPrefix(word, "/") {
		return ""
	}
	if at := strings.IndexByte(word, '@'); at >= 0 {
		word = word[:at]
	}
	return strings.ToLower(word)
}
