// Package worker provides the sequential WIP download worker.
package worker

// State represents the worker state. At most one item is in flight.
type State int

const (
	StateIdle        State = iota // waiting for an operator trigger
	StateDownloading              // fetching or extracting an item
	StateCancelling               // abort requested, waiting for a checkpoint
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDownloading:
		return "downloading"
	case StateCancelling:
		return "cancelling"
	default:
		return "unknown"
	}
}
