package services

import "context"

// Publisher is the slice of the broker that injecting services need.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte, sender string)
}
