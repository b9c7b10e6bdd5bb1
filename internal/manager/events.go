package manager

// Event names published by the manager.
const (
	EventSelect          = "select"
	EventLoadStart       = "load_start"
	EventLoadProgress    = "load_progress"
	EventLoadReady       = "load_ready"
	EventLoadError       = "load_error"
	EventEngineLost      = "engine_lost"
	EventCompletionStart = "completion_start"
	EventCompletionEnd   = "completion_end"
	EventCatalogReplace  = "catalog_replace"
)

// Event represents a manager lifecycle event.
// Minimal and stable: name + model ID and optional fields via key/values.
type Event struct {
	Name    string         `json:"name"`
	ModelID string         `json:"model_slug,omitempty"`
	Fields  map[string]any `json:"fields,omitempty"`
}

// EventPublisher receives events from the manager. Implementations should be
// lightweight and non-blocking; Publish must not panic.
type EventPublisher interface {
	Publish(Event)
}

// noopPublisher is the default; it drops events.
type noopPublisher struct{}

func (noopPublisher) Publish(Event) {}

// MultiPublisher fans an event out to every publisher in order.
type MultiPublisher []EventPublisher

func (mp MultiPublisher) Publish(e Event) {
	for _, p := range mp {
		if p != nil {
			p.Publish(e)
		}
	}
}
