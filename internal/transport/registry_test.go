package transport

import (
	"context"
	"errors"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Mock config for testing
type mockConfig struct {
	pubSubSystem string
}

func (m *mockConfig) GetPubSubSystem() string       { return m.pubSubSystem }
func (m *mockConfig) GetKafkaBrokers() []string     { return nil }
func (m *mockConfig) GetKafkaConsumerGroup() string { return "" }
func (m *mockConfig) GetRabbitMQURL() string        { return "" }
func (m *mockConfig) GetNATSURL() string            { return "" }
func (m *mockConfig) GetAWSRegion() string          { return "" }
func (m *mockConfig) GetAWSAccountID() string       { return "" }
func (m *mockConfig) GetAWSAccessKeyID() string     { return "" }
func (m *mockConfig) GetAWSSecretAccessKey() string { return "" }
func (m *mockConfig) GetAWSEndpoint() string        { return "" }

type mockPublisher struct{}

func (m *mockPublisher) Publish(topic string, messages ...*message.Message) error {
	return nil
}

func (m *mockPublisher) Close() error {
	return nil
}

type mockSubscriber struct{}

func (m *mockSubscriber) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	ch := make(chan *message.Message)
	close(ch)
	return ch, nil
}

func (m *mockSubscriber) Close() error {
	return nil
}

func testBuilder(ctx context.Context, cfg Config, logger watermill.LoggerAdapter) (Transport, error) {
	return Transport{
		Publisher:  &mockPublisher{},
		Subscriber: &mockSubscriber{},
	}, nil
}

func TestRegistryRegister(t *testing.T) {
	reg := NewRegistry()
	assert.Empty(t, reg.Names())

	reg.Register("test-transport", testBuilder, Capabilities{Name: "test-transport", SupportsAck: true})

	assert.True(t, reg.Has("test-transport"))
	assert.Contains(t, reg.Names(), "test-transport")
	assert.Equal(t, "test-transport", reg.Capabilities("test-transport").Name)
}

func TestRegistryBuild(t *testing.T) {
	reg := NewRegistry()
	reg.Register("test-transport", testBuilder, Capabilities{Name: "test-transport"})

	tr, err := reg.Build(context.Background(), &mockConfig{pubSubSystem: "test-transport"}, watermill.NopLogger{})
	require.NoError(t, err)
	assert.NotNil(t, tr.Publisher)
	assert.NotNil(t, tr.Subscriber)
}

func TestRegistryBuildUnknown(t *testing.T) {
	reg := NewRegistry()

	_, err := reg.Build(context.Background(), &mockConfig{pubSubSystem: "carrier-pigeon"}, watermill.NopLogger{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown transport")
}

func TestRegistryBuildNilConfig(t *testing.T) {
	reg := NewRegistry()

	_, err := reg.Build(context.Background(), nil, watermill.NopLogger{})
	require.Error(t, err)
}

func TestRegistryBuildError(t *testing.T) {
	boom := errors.New("broker unreachable")
	reg := NewRegistry()
	reg.Register("flaky", func(ctx context.Context, cfg Config, logger watermill.LoggerAdapter) (Transport, error) {
		return Transport{}, boom
	}, Capabilities{Name: "flaky"})

	_, err := reg.Build(context.Background(), &mockConfig{pubSubSystem: "flaky"}, watermill.NopLogger{})
	assert.ErrorIs(t, err, boom)
}

func TestCapabilitiesUnknownName(t *testing.T) {
	reg := NewRegistry()
	caps := reg.Capabilities("missing")
	assert.Equal(t, "missing", caps.Name)
	assert.False(t, caps.SupportsReliableDelivery())
}

func TestSupportsReliableDelivery(t *testing.T) {
	assert.True(t, RabbitMQCapabilities.SupportsReliableDelivery())
	assert.True(t, ChannelCapabilities.SupportsReliableDelivery())
	assert.False(t, KafkaCapabilities.SupportsReliableDelivery())
}
