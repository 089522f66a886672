// Package prompt derives the context window sent to the completion
// provider from a user's full stored history.
package prompt

import "github.com/curatorbot/curator/pkg/message"

// DefaultWindow is the number of recent turns included when none is configured.
const DefaultWindow = 10

// Window returns the prompt for a completion call: the system preamble
// (when non-empty) followed by the last windowSize turns of history.
//
// Window is pure: it never mutates history, and the returned slice shares
// no backing array with it. The window bound is independent of the store's
// retention bound; windowSize is expected to be the smaller of the two but
// that is not enforced here.
func Window(history []message.Turn, preamble string, windowSize int) []message.Turn {
	if windowSize <= 0 {
		windowSize = DefaultWindow
	}

	recent := history
	if len(recent) > windowSize {
		recent = recent[len(recent)-windowSize:]
	}

	out := make([]message.Turn, 0, len(recent)+1)
	if preamble != "" {
		out = append(out, message.SystemTurn(preamble))
	}
	out = append(out, recent...)
	return out
}
