package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"example.com/eazyy/fulfillment/config"
	"example.com/eazyy/fulfillment/internal/metrics"
	"example.com/eazyy/fulfillment/internal/models"
)

const sourceName = "fulfillment"

// messageSender is the subset of *azservicebus.Sender used here
type messageSender interface {
	SendMessage(ctx context.Context, message *azservicebus.Message, options *azservicebus.SendMessageOptions) error
	Close(ctx context.Context) error
}

// messageReceiver is the subset of *azservicebus.Receiver used here
type messageReceiver interface {
	ReceiveMessages(ctx context.Context, maxMessages int, options *azservicebus.ReceiveMessagesOptions) ([]*azservicebus.ReceivedMessage, error)
	CompleteMessage(ctx context.Context, message *azservicebus.ReceivedMessage, options *azservicebus.CompleteMessageOptions) error
	AbandonMessage(ctx context.Context, message *azservicebus.ReceivedMessage, options *azservicebus.AbandonMessageOptions) error
	DeadLetterMessage(ctx context.Context, message *azservicebus.ReceivedMessage, options *azservicebus.DeadLetterOptions) error
	Close(ctx context.Context) error
}

// NewClient creates an Azure Service Bus client from the configured
// connection string
func NewClient(cfg config.AzureConfig) (*azservicebus.Client, error) {
	if cfg.QueueConnStr == "" {
		return nil, errors.New("Azure Service Bus connection string is empty")
	}
	client, err := azservicebus.NewClientFromConnectionString(cfg.QueueConnStr, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Service Bus client")
	}
	return client, nil
}

// StatusPublisher sends order status change events to a queue
type StatusPublisher struct {
	sender    messageSender
	queueName string
	metrics   *metrics.Collector
}

// NewStatusPublisher creates a publisher for the status queue
func NewStatusPublisher(client *azservicebus.Client, queueName string) (*StatusPublisher, error) {
	sender, err := client.NewSender(queueName, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Service Bus sender")
	}
	return newStatusPublisher(sender, queueName), nil
}

func newStatusPublisher(sender messageSender, queueName string) *StatusPublisher {
	return &StatusPublisher{sender: sender, queueName: queueName, metrics: metrics.GetCollector()}
}

// PublishStatusChange sends one status change event
func (p *StatusPublisher) PublishStatusChange(ctx context.Context, event models.StatusChangeEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(err, "failed to marshal status change")
	}

	contentType := "application/json"
	subject := event.Event
	messageID := fmt.Sprintf("%s:%s:%d", event.OrderID, event.To, event.At.UnixNano())

	msg := &azservicebus.Message{
		Body:        data,
		ContentType: &contentType,
		Subject:     &subject,
		MessageID:   &messageID,
		ApplicationProperties: map[string]interface{}{
			"source": sourceName,
			"event":  event.Event,
			"status": string(event.To),
			"time":   time.Now().UTC().Format(time.RFC3339),
		},
	}

	start := time.Now()
	err = p.sender.SendMessage(ctx, msg, nil)
	p.metrics.RecordMessageBusOperation(metrics.MessageBusOperationSend, err == nil, time.Since(start))
	if err != nil {
		return errors.Wrapf(err, "failed to send status change to %s", p.queueName)
	}

	log.Debug().
		Str("queue", p.queueName).
		Str("order_id", event.OrderID.String()).
		Str("to", string(event.To)).
		Msg("Status change published")
	return nil
}

// Close closes the sender
func (p *StatusPublisher) Close(ctx context.Context) error {
	return p.sender.Close(ctx)
}

// ScanHandler processes one queued scan
type ScanHandler func(ctx context.Context, msg models.ScanMessage) error

// permanentError marks a message that can never succeed
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps err so the consumer dead-letters the message instead of
// returning it to the queue
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was wrapped with Permanent
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// ScanConsumer pulls scan messages from a queue
type ScanConsumer struct {
	receiver  messageReceiver
	queueName string
	batchSize int
	metrics   *metrics.Collector
}

// NewScanConsumer creates a consumer for the scan queue
func NewScanConsumer(client *azservicebus.Client, queueName string) (*ScanConsumer, error) {
	receiver, err := client.NewReceiverForQueue(queueName, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Service Bus receiver")
	}
	return newScanConsumer(receiver, queueName), nil
}

func newScanConsumer(receiver messageReceiver, queueName string) *ScanConsumer {
	return &ScanConsumer{receiver: receiver, queueName: queueName, batchSize: 10, metrics: metrics.GetCollector()}
}

// Run receives and handles messages until ctx is cancelled
func (c *ScanConsumer) Run(ctx context.Context, handler ScanHandler) error {
	defer func() {
		if err := c.receiver.Close(context.Background()); err != nil {
			log.Error().Err(err).Str("queue", c.queueName).Msg("Error closing receiver")
		}
	}()

	for {
		if err := c.receiveBatch(ctx, handler); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}

func (c *ScanConsumer) receiveBatch(ctx context.Context, handler ScanHandler) error {
	start := time.Now()
	messages, err := c.receiver.ReceiveMessages(ctx, c.batchSize, nil)
	c.metrics.RecordMessageBusOperation(metrics.MessageBusOperationReceive, err == nil, time.Since(start))
	if err != nil {
		return errors.Wrapf(err, "failed to receive messages from %s", c.queueName)
	}

	for _, message := range messages {
		c.handle(ctx, message, handler)
	}
	return nil
}

func (c *ScanConsumer) handle(ctx context.Context, message *azservicebus.ReceivedMessage, handler ScanHandler) {
	logger := log.With().Str("queue", c.queueName).Str("message_id", message.MessageID).Logger()
	// Settlement must survive shutdown of the receive context
	settleCtx := context.Background()

	var scan models.ScanMessage
	if err := json.Unmarshal(message.Body, &scan); err != nil {
		logger.Error().Err(err).Msg("Malformed scan message")
		c.deadLetter(settleCtx, message, "malformed", err)
		return
	}

	err := handler(ctx, scan)
	switch {
	case err == nil:
		start := time.Now()
		err := c.receiver.CompleteMessage(settleCtx, message, nil)
		c.metrics.RecordMessageBusOperation(metrics.MessageBusOperationComplete, err == nil, time.Since(start))
		if err != nil {
			logger.Error().Err(err).Msg("Failed to complete message")
		}
	case IsPermanent(err):
		logger.Warn().Err(err).Str("code", scan.Code).Msg("Scan message rejected")
		c.deadLetter(settleCtx, message, "rejected", err)
	default:
		logger.Error().Err(err).Str("code", scan.Code).Msg("Scan message failed, returning to queue")
		start := time.Now()
		abandonErr := c.receiver.AbandonMessage(settleCtx, message, nil)
		c.metrics.RecordMessageBusOperation(metrics.MessageBusOperationAbandon, abandonErr == nil, time.Since(start))
		if abandonErr != nil {
			logger.Error().Err(abandonErr).Msg("Failed to abandon message")
		}
	}
}

func (c *ScanConsumer) deadLetter(ctx context.Context, message *azservicebus.ReceivedMessage, reason string, cause error) {
	description := cause.Error()
	if err := c.receiver.DeadLetterMessage(ctx, message, &azservicebus.DeadLetterOptions{
		Reason:           &reason,
		ErrorDescription: &description,
	}); err != nil {
		log.Error().Err(err).Str("message_id", message.MessageID).Msg("Failed to dead-letter message")
	}
}
