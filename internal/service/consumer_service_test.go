package service

import (
	"context"
	"testing"
	"time"

	"euno-analytics-be/internal/pkg/logger"
	"euno-analytics-be/pkg/events"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConsumerService_RelaysEvents(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	defer pubSub.Close()

	relay := &recordingPublisher{}
	consumer := NewConsumerService(pubSub, events.Topic, relay, logger.NewNopLogger())
	require.NoError(t, consumer.Consume(ctx))

	publisher := events.NewChannelPublisher(pubSub)
	require.NoError(t, publisher.Publish(ctx, events.New(events.TypeQuestionAnswered, map[string]interface{}{"tier": "starter"})))

	// undecodable payloads are dropped, not relayed
	require.NoError(t, pubSub.Publish(events.Topic, message.NewMessage(watermill.NewUUID(), []byte("not json"))))
	require.NoError(t, publisher.Publish(ctx, events.New(events.TypeConversationDeleted, nil)))

	assert.Eventually(t, func() bool {
		return len(relay.types()) == 2
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{events.TypeQuestionAnswered, events.TypeConversationDeleted}, relay.types())
}

func TestConsumerService_WithoutRelay(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	defer pubSub.Close()

	consumer := NewConsumerService(pubSub, events.Topic, nil, logger.NewNopLogger())
	require.NoError(t, consumer.Consume(ctx))
	assert.NoError(t, events.NewChannelPublisher(pubSub).Publish(ctx, events.New(events.TypeQuestionDenied, nil)))
}
