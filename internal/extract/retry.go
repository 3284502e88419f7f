package extract

import "time"

// attemptOutcome classifies one page attempt for the retry policy.
type attemptOutcome int

const (
	outcomeSuccess attemptOutcome = iota
	outcomeEmpty                  // empty, blocked, or parse-failed response
	outcomeError                  // transport error or timeout
)

// Backoff durations are pure data keyed on (outcome, completed attempt),
// so the policy is unit-testable with an injected clock.
var (
	emptyBackoff = []time.Duration{1 * time.Second, 2 * time.Second}
	errorBackoff = []time.Duration{2 * time.Second, 4 * time.Second}
)

// backoffFor returns the delay before retrying after the given attempt
// (1-indexed) ended with the given outcome.
func backoffFor(outcome attemptOutcome, attempt int) time.Duration {
	table := emptyBackoff
	if outcome == outcomeError {
		table = errorBackoff
	}
	idx := attempt - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(table) {
		idx = len(table) - 1
	}
	return table[idx]
}
