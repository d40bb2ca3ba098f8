// Package transports registers all built-in transports. The registration
// list is explicit and built at startup; adding a backend means adding it
// here.
package transports

import (
	"github.com/vidscribe/vidscribe/internal/transport"
	"github.com/vidscribe/vidscribe/internal/transport/aws"
	"github.com/vidscribe/vidscribe/internal/transport/channel"
	"github.com/vidscribe/vidscribe/internal/transport/kafka"
	"github.com/vidscribe/vidscribe/internal/transport/nats"
	"github.com/vidscribe/vidscribe/internal/transport/rabbitmq"
)

// RegisterDefaults adds every built-in transport to the registry.
func RegisterDefaults(r *transport.Registry) {
	channel.Register(r)
	rabbitmq.Register(r)
	nats.Register(r)
	kafka.Register(r)
	aws.Register(r)
}
