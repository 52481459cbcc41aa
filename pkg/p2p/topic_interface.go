package p2p

import (
	"context"

	pubsub "github.com/libp2p/go-libp2p-pubsub"
)

// TopicPublisher is the publish side of a validator network topic
type TopicPublisher interface {
	Publish(ctx context.Context, data []byte, opts ...pubsub.PubOpt) error
}

// MessageSource is the receive side of a validator network topic
type MessageSource interface {
	Next(ctx context.Context) ([]byte, error)
}
