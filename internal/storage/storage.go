package storage

import "ranger/internal/model"

// Sink receives provisioning notifications.
type Sink interface {
	PutEvents(events []model.Event) error
}
