package core

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// maxViewActions matches the action-button limit of the ntfy service.
const maxViewActions = 3

// ViewAction is a clickable button attached to an outgoing notification.
// Activating it opens URL on the receiving client; when Clear is set the
// notification is dismissed as well.
type ViewAction struct {
	URL   string
	Label string
	Clear bool
}

var urlPattern = regexp.MustCompile(`(?i)https?://(?:www\.)?[-a-zA-Z0-9@:%._+~#=]{1,256}\.[a-zA-Z0-9()]{1,6}\b[-a-zA-Z0-9()@:%_+.~#?&/=]*`)

// ExtractActions scans text for http(s) URLs and returns a view action per URL,
// capped at maxViewActions, in order of occurrence. It is the advisory default
// for the X-Actions header; an explicit request value takes precedence.
//
// The scan is regex based and makes no attempt at full URL-grammar correctness.
// The only cleanup applied is stripping a trailing ")" that has no matching "("
// inside the match, which keeps markdown link syntax from leaking into the URL.
func ExtractActions(text string) []ViewAction {
	matches := urlPattern.FindAllString(text, -1)
	if len(matches) == 0 {
		return nil
	}
	if len(matches) > maxViewActions {
		matches = matches[:maxViewActions]
	}

	actions := make([]ViewAction, 0, len(matches))
	for _, raw := range matches {
		target := cleanMatchedURL(raw)
		actions = append(actions, ViewAction{
			URL:   target,
			Label: actionLabel(target),
			Clear: true,
		})
	}
	return actions
}

func cleanMatchedURL(raw string) string {
	if strings.HasSuffix(raw, ")") && !strings.Contains(raw[:len(raw)-1], "(") {
		raw = raw[:len(raw)-1]
	}
	return strings.TrimSpace(raw)
}

var labelHostSuffixes = []string{".com", ".org", ".net", ".io", ".dev"}

// actionLabel derives a short button label from the URL host. A URL that does
// not parse gets a generic label instead of failing the extraction.
func actionLabel(target string) string {
	parsed, err := url.Parse(target)
	if err != nil || parsed.Hostname() == "" {
		return "Open link"
	}
	host := strings.TrimPrefix(parsed.Hostname(), "www.")
	for _, suffix := range labelHostSuffixes {
		if strings.HasSuffix(host, suffix) {
			host = strings.TrimSuffix(host, suffix)
			break
		}
	}
	return "Open " + host
}

// ActionsHeader renders actions in the format of ntfy's X-Actions header:
// "view, <label>, <url>, clear=true" entries joined by "; ".
func ActionsHeader(actions []ViewAction) string {
	entries := make([]string, 0, len(actions))
	for _, action := range actions {
		entry := fmt.Sprintf("view, %s, %s", action.Label, action.URL)
		if action.Clear {
			entry += ", clear=true"
		}
		entries = append(entries, entry)
	}
	return strings.Join(entries, "; ")
}
