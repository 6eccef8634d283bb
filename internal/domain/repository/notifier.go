package repository

import "context"

// Notifier delivers a payload to one live client connection.
// Delivery is fire-and-forget; implementations log failures.
type Notifier interface {
	Notify(ctx context.Context, connectionID, eventName string, payload interface{})
}
