package ports

import "van-dispatch-service/internal/domain"

// Fan-out of fleet events to live views. Publishing never blocks the caller
// on slow consumers.
type EventPublisher interface {
	Publish(ev domain.FleetEvent)
}
