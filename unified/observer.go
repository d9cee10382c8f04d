package unified

import "github.com/tailored-agentic-units/voyager/observability"

// Memory event types.
const (
	EventStore           observability.EventType = "memory.store"
	EventStoreFailed     observability.EventType = "memory.store.failed"
	EventRecall          observability.EventType = "memory.recall"
	EventRecallFailed    observability.EventType = "memory.recall.failed"
	EventFinalize        observability.EventType = "memory.finalize"
	EventFinalizeFailed  observability.EventType = "memory.finalize.failed"
	EventDegraded        observability.EventType = "memory.degraded"
	EventDocumentSkipped observability.EventType = "memory.document.skipped"
)
