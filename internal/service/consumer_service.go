package service

import (
	"context"

	"euno-analytics-be/internal/pkg/logger"
	"euno-analytics-be/pkg/events"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// IConsumerService drains the in-process event topic
type IConsumerService interface {
	Consume(ctx context.Context) error
}

// consumerService relays in-process events to the external bus. Without a
// bus the events are only logged.
type consumerService struct {
	pubSub    *gochannel.GoChannel
	topicName string
	relay     events.Publisher
	logger    logger.ILogger
}

func NewConsumerService(pubSub *gochannel.GoChannel, topicName string, relay events.Publisher, log logger.ILogger) IConsumerService {
	return &consumerService{
		pubSub:    pubSub,
		topicName: topicName,
		relay:     relay,
		logger:    log,
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.pubSub.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(ctx, msg)
		}
	}()

	return nil
}

func (cs *consumerService) processMessage(ctx context.Context, msg *message.Message) {
	evt, err := events.Decode(msg.Payload)
	if err != nil {
		cs.logger.Error(logger.ModuleEvents, "Dropping undecodable event", map[string]interface{}{
			"message_id": msg.UUID,
			"error":      err.Error(),
		})
		// ack so a bad payload is not redelivered forever
		msg.Ack()
		return
	}

	cs.logger.Info(logger.ModuleEvents, "Event received", map[string]interface{}{
		"type":    evt.Type,
		"payload": evt.Data,
	})

	if cs.relay != nil {
		if err := cs.relay.Publish(ctx, evt); err != nil {
			cs.logger.Error(logger.ModuleEvents, "Failed to relay event", map[string]interface{}{
				"type":  evt.Type,
				"error": err.Error(),
			})
		}
	}
	msg.Ack()
}
