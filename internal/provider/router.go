package provider

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Command is a slash command that redirects a message to an AI provider.
type Command string

const (
	CommandGemini Command = "/gemini"
	CommandAI     Command = "/ai"
	CommandClaude Command = "/claude"
)

// Route binds a command to the provider that serves it.
type Route struct {
	Command   Command
	Provider  string // display name, e.g. "Gemini"
	Completer Completer
}

// Dispatch is the outcome of routing one outgoing message.
type Dispatch struct {
	Route
	Prompt string
}

// Router matches the leading token of outgoing text against its routes in order.
type Router struct {
	routes []Route
}

// NewRouter builds a router; earlier routes win.
func NewRouter(routes ...Route) *Router {
	return &Router{routes: append([]Route(nil), routes...)}
}

// Routes returns the configured routes in match order.
func (r *Router) Routes() []Route {
	if r == nil {
		return nil
	}
	return append([]Route(nil), r.routes...)
}

// Route inspects text once. The command match is case-insensitive on the trimmed
// text and must be followed by whitespace or the end of the text. The returned
// prompt has the command and surrounding whitespace stripped.
func (r *Router) Route(text string) (Dispatch, bool) {
	if r == nil {
		return Dispatch{}, false
	}

	trimmed := strings.TrimSpace(text)
	for _, route := range r.routes {
		cmd := string(route.Command)
		if len(trimmed) < len(cmd) || !strings.EqualFold(trimmed[:len(cmd)], cmd) {
			continue
		}
		rest := trimmed[len(cmd):]
		if rest != "" {
			next, _ := utf8.DecodeRuneInString(rest)
			if !unicode.IsSpace(next) {
				continue
			}
		}
		return Dispatch{Route: route, Prompt: strings.TrimSpace(rest)}, true
	}
	return Dispatch{}, false
}
