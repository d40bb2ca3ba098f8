package channel

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vidscribe/vidscribe/internal/transport"
)

type stubConfig struct{}

func (stubConfig) GetPubSubSystem() string       { return TransportName }
func (stubConfig) GetKafkaBrokers() []string     { return nil }
func (stubConfig) GetKafkaConsumerGroup() string { return "" }
func (stubConfig) GetRabbitMQURL() string        { return "" }
func (stubConfig) GetNATSURL() string            { return "" }
func (stubConfig) GetAWSRegion() string          { return "" }
func (stubConfig) GetAWSAccountID() string       { return "" }
func (stubConfig) GetAWSAccessKeyID() string     { return "" }
func (stubConfig) GetAWSSecretAccessKey() string { return "" }
func (stubConfig) GetAWSEndpoint() string        { return "" }

func TestRegister(t *testing.T) {
	reg := transport.NewRegistry()
	Register(reg)

	assert.True(t, reg.Has(TransportName))
	caps := reg.Capabilities(TransportName)
	assert.Equal(t, "channel", caps.Name)
	assert.True(t, caps.SupportsAck)
	assert.True(t, caps.SupportsNack)
	assert.False(t, caps.Durable)
}

func TestBuild(t *testing.T) {
	t.Run("creates transport with default factory", func(t *testing.T) {
		tr, err := Build(context.Background(), stubConfig{}, watermill.NopLogger{})

		require.NoError(t, err)
		assert.NotNil(t, tr.Publisher)
		assert.NotNil(t, tr.Subscriber)
	})

	t.Run("uses custom factory", func(t *testing.T) {
		originalFactory := Factory
		defer func() { Factory = originalFactory }()

		pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
		Factory = func(cfg gochannel.Config, logger watermill.LoggerAdapter) (message.Publisher, message.Subscriber) {
			return pubSub, pubSub
		}

		tr, err := Build(context.Background(), stubConfig{}, watermill.NopLogger{})

		require.NoError(t, err)
		assert.Equal(t, message.Publisher(pubSub), tr.Publisher)
	})
}

func TestPublishSubscribeRoundTrip(t *testing.T) {
	tr, err := Build(context.Background(), stubConfig{}, watermill.NopLogger{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	messages, err := tr.Subscriber.Subscribe(ctx, "video_uploaded")
	require.NoError(t, err)

	msg := message.NewMessage("1", []byte(`{"video_id":"v1","user_id":"u1"}`))
	require.NoError(t, tr.Publisher.Publish("video_uploaded", msg))

	select {
	case received := <-messages:
		assert.Equal(t, msg.Payload, received.Payload)
		received.Ack()
	case <-ctx.Done():
		t.Fatal("timed out waiting for message")
	}
}
