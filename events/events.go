package events

const (
	TypeServerInfo = "server.info"

	TypePowerState     = "power.state"
	TypePowerNotice    = "power.notice"
	TypePowerPending   = "power.pending"
	TypePowerCancelled = "power.cancelled"
	TypePowerFailed    = "power.failed"
)

type Event struct {
	Type string
	Data any
}

// Filter reports whether an event should be delivered. A nil Filter passes
// everything.
type Filter func(Event) bool

// BackendTypes groups event types by the component that emits them.
var BackendTypes = map[string][]string{
	"shutdown": {TypePowerState, TypePowerFailed},
	"notice":   {TypePowerNotice},
	"confirm":  {TypePowerPending, TypePowerCancelled},
}

// FilterTypes keeps only the given event types.
func FilterTypes(types []string) Filter {
	if len(types) == 0 {
		return nil
	}
	allowed := make(map[string]struct{}, len(types))
	for _, t := range types {
		allowed[t] = struct{}{}
	}
	return func(e Event) bool {
		_, ok := allowed[e.Type]
		return ok
	}
}

// FilterBackend keeps the event types emitted by the named components.
// Unknown names are ignored; if none is known the result passes everything.
func FilterBackend(names []string) Filter {
	var types []string
	for _, name := range names {
		types = append(types, BackendTypes[name]...)
	}
	return FilterTypes(types)
}

// NewFilter keeps the included types, or everything when include is empty,
// and then drops the excluded ones.
func NewFilter(include, exclude []string) Filter {
	if len(include) == 0 && len(exclude) == 0 {
		return nil
	}
	in := FilterTypes(include)
	out := FilterTypes(exclude)
	return func(e Event) bool {
		if in != nil && !in(e) {
			return false
		}
		return out == nil || !out(e)
	}
}
