// Package emit delivers run, wave and node events to logging and tracing
// backends.
package emit

// Emitter receives the events of a run.
//
// Emit is called from the goroutines evaluating a wave, so implementations
// must be safe for concurrent use. Emit must not block execution for long and
// must not panic.
type Emitter interface {
	Emit(event Event)
}

// MultiEmitter fans every event out to several emitters in order.
type MultiEmitter []Emitter

// NewMultiEmitter drops nil emitters and returns the rest as one Emitter.
func NewMultiEmitter(emitters ...Emitter) MultiEmitter {
	out := make(MultiEmitter, 0, len(emitters))
	for _, e := range emitters {
		if e != nil {
			out = append(out, e)
		}
	}
	return out
}

// Emit forwards event to every emitter in order. A slow emitter delays the
// ones after it.
func (m MultiEmitter) Emit(event Event) {
	for _, e := range m {
		e.Emit(event)
	}
}
