package sync

import "context"

// Drainer is the engine surface background triggers drive. The
// scheduler holds this instead of the concrete Engine so drains can be
// counted in tests without real stores.
type Drainer interface {
	// DrainWith runs one drain pass with the given options.
	DrainWith(ctx context.Context, opts DrainOpts) DrainResult

	// Status reports the current engine state.
	Status() Status
}
