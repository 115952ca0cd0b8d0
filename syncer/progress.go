package syncer

// Progress stages reported during reconciliation and rollback.
const (
	StageClear     = "clear"
	StageMods      = "mods"
	StageOverrides = "overrides"
	StageRestore   = "restore"
)

// Event is a single unit-of-work notification. Current is monotonically
// non-decreasing within a stage.
type Event struct {
	Stage   string
	Current int
	Total   int
	Item    string
}

// Reporter carries progress events to at most one consumer over a bounded
// channel. Emission never blocks: when the buffer is full the event is
// dropped, so the core keeps running even if nobody is listening.
type Reporter struct {
	ch chan Event
}

// NewReporter creates a reporter with the given buffer size.
func NewReporter(buffer int) *Reporter {
	if buffer <= 0 {
		buffer = 64
	}
	return &Reporter{ch: make(chan Event, buffer)}
}

// Events returns the consumer side of the reporter.
func (r *Reporter) Events() <-chan Event {
	return r.ch
}

// Emit publishes an event without blocking. Safe on a nil reporter so the
// core can run with progress reporting disabled.
func (r *Reporter) Emit(e Event) {
	if r == nil {
		return
	}
	select {
	case r.ch <- e:
	default:
	}
}

// Close signals the consumer that no more events will follow.
func (r *Reporter) Close() {
	if r != nil {
		close(r.ch)
	}
}
