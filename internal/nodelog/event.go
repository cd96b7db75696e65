package nodelog

import (
	"encoding/json"
	"time"
)

// Event is one normalized trace record emitted by the node's tracing
// subsystem. The namespace acts as the kind discriminator; Data carries the
// kind-specific payload and is decoded downstream by the classifier.
type Event struct {
	At     time.Time       `json:"at"`
	NS     string          `json:"ns"`
	Data   json.RawMessage `json:"data"`
	Sev    string          `json:"sev"`
	Thread string          `json:"thread"`
	Host   string          `json:"host"`
}

// Source supplies trace events in strict arrival order. The channel is
// closed when the source is exhausted or closed.
type Source interface {
	Events() <-chan Event
	Close() error
}
