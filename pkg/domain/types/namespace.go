package types

import (
	"regexp"
	"strings"

	"github.com/m-mizutani/goerr/v2"
)

// Namespace scopes records and rate limits to one owner and memory kind,
// formatted as "<ownerID>/<kind>" (e.g. "user-123/semantic").
type Namespace string

var namespacePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+/[a-z]+$`)

// NewNamespace builds a Namespace from an owner ID and a memory kind.
func NewNamespace(ownerID, kind string) Namespace {
	return Namespace(ownerID + "/" + kind)
}

// Validate checks if the Namespace is valid
func (n Namespace) Validate() error {
	if n == "" {
		return goerr.New("namespace cannot be empty")
	}
	if !namespacePattern.MatchString(string(n)) {
		return goerr.New("namespace must be formatted as <ownerID>/<kind>", goerr.V("namespace", n))
	}
	return nil
}

// Owner returns the owner ID part of the namespace.
func (n Namespace) Owner() string {
	if idx := strings.IndexByte(string(n), '/'); idx >= 0 {
		return string(n)[:idx]
	}
	return string(n)
}

// Kind returns the memory-kind part of the namespace.
func (n Namespace) Kind() string {
	if idx := strings.IndexByte(string(n), '/'); idx >= 0 {
		return string(n)[idx+1:]
	}
	return ""
}

// String returns the string representation of the Namespace
func (n Namespace) String() string {
	return string(n)
}

// TurnSource identifies where a transcript turn came from. Only user and
// assistant turns are conversational content; context and tool turns are
// excluded from episodic summaries.
type TurnSource string

const (
	TurnSourceUser      TurnSource = "USER"
	TurnSourceAssistant TurnSource = "ASSISTANT"
	TurnSourceContext   TurnSource = "CONTEXT"
	TurnSourceTool      TurnSource = "TOOL"
)

// IsConversational reports whether the turn is actual user/assistant content.
func (s TurnSource) IsConversational() bool {
	return s == TurnSourceUser || s == TurnSourceAssistant
}

// String returns the string representation of the turn source
func (s TurnSource) String() string {
	return string(s)
}
