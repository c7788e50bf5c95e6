// Package orchestrator runs the conversation loop: pick the next speaker,
// pick that role's prompt variant, call the model, analyze the grown
// history and feed the measured quality back into the variant populations.
//
// One Session is one conversation. All loop state is session-owned and the
// loop is strictly sequential, so a Session needs no internal locking; it
// must not be driven from more than one goroutine.
package orchestrator
