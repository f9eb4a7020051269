package engine

// Event is an engine-emitted analytics event. The engine itself stays pure;
// callers record events after the fact using the values the engine returned.
type Event struct {
	Name   string
	Labels map[string]string
}

// Sink receives engine events. Implementations live outside this package.
type Sink interface {
	Record(Event)
}

// NopSink discards everything.
type NopSink struct{}

func (NopSink) Record(Event) {}

// DecisionEvent builds the standard event for a routed turn.
func DecisionEvent(d Decision) Event {
	return Event{
		Name: "engine_decision",
		Labels: map[string]string{
			"action":  string(d.Action),
			"handler": string(d.Handler),
			"reason":  d.Reason,
		},
	}
}

// ModeEvent builds the standard event for a mode transition.
func ModeEvent(from, to Mode) Event {
	return Event{
		Name: "engine_mode_change",
		Labels: map[string]string{
			"from": string(from),
			"to":   string(to),
		},
	}
}
