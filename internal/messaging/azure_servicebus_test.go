package messaging

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/eazyy/fulfillment/internal/models"
)

type fakeSender struct {
	sent []*azservicebus.Message
	err  error
}

func (f *fakeSender) SendMessage(ctx context.Context, message *azservicebus.Message, options *azservicebus.SendMessageOptions) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, message)
	return nil
}

func (f *fakeSender) Close(ctx context.Context) error { return nil }

type fakeReceiver struct {
	mu          sync.Mutex
	batches     [][]*azservicebus.ReceivedMessage
	completed   []string
	abandoned   []string
	deadLetters map[string]string
	closed      bool
}

func (f *fakeReceiver) ReceiveMessages(ctx context.Context, maxMessages int, options *azservicebus.ReceiveMessagesOptions) ([]*azservicebus.ReceivedMessage, error) {
	f.mu.Lock()
	if len(f.batches) > 0 {
		batch := f.batches[0]
		f.batches = f.batches[1:]
		f.mu.Unlock()
		return batch, nil
	}
	f.mu.Unlock()
	<-ctx.Done()
	return nil, ctx.Err()
}

func (f *fakeReceiver) CompleteMessage(ctx context.Context, message *azservicebus.ReceivedMessage, options *azservicebus.CompleteMessageOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completed = append(f.completed, message.MessageID)
	return nil
}

func (f *fakeReceiver) AbandonMessage(ctx context.Context, message *azservicebus.ReceivedMessage, options *azservicebus.AbandonMessageOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.abandoned = append(f.abandoned, message.MessageID)
	return nil
}

func (f *fakeReceiver) DeadLetterMessage(ctx context.Context, message *azservicebus.ReceivedMessage, options *azservicebus.DeadLetterOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deadLetters == nil {
		f.deadLetters = map[string]string{}
	}
	f.deadLetters[message.MessageID] = *options.Reason
	return nil
}

func (f *fakeReceiver) Close(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func TestPublishStatusChange(t *testing.T) {
	sender := &fakeSender{}
	publisher := newStatusPublisher(sender, "order-status")

	event := models.StatusChangeEvent{
		Event:       models.EventOrderStatusChanged,
		OrderID:     uuid.New(),
		OrderNumber: "EZ-001",
		From:        models.StatusInTransitToFacility,
		To:          models.StatusArrivedAtFacility,
		Source:      models.SourceScan,
		At:          time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC),
	}

	require.NoError(t, publisher.PublishStatusChange(context.Background(), event))
	require.Len(t, sender.sent, 1)

	msg := sender.sent[0]
	assert.Equal(t, "application/json", *msg.ContentType)
	assert.Equal(t, models.EventOrderStatusChanged, *msg.Subject)
	assert.Equal(t, "arrived_at_facility", msg.ApplicationProperties["status"])

	var decoded models.StatusChangeEvent
	require.NoError(t, json.Unmarshal(msg.Body, &decoded))
	assert.Equal(t, event.OrderID, decoded.OrderID)
	assert.Equal(t, models.StatusArrivedAtFacility, decoded.To)
}

func TestPublishStatusChange_SendFailure(t *testing.T) {
	publisher := newStatusPublisher(&fakeSender{err: errors.New("link detached")}, "order-status")

	err := publisher.PublishStatusChange(context.Background(), models.StatusChangeEvent{OrderID: uuid.New()})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "link detached")
}

func TestScanConsumer_SettlesByOutcome(t *testing.T) {
	receiver := &fakeReceiver{batches: [][]*azservicebus.ReceivedMessage{{
		{MessageID: "ok", Body: []byte(`{"code":"EZ-001","kind":"pickup_verify"}`)},
		{MessageID: "conflict", Body: []byte(`{"code":"EZ-002","kind":"pickup_verify"}`)},
		{MessageID: "retry", Body: []byte(`{"code":"EZ-003"}`)},
		{MessageID: "garbage", Body: []byte(`not json`)},
	}}}
	consumer := newScanConsumer(receiver, "driver-scans")

	ctx, cancel := context.WithCancel(context.Background())
	var handled []string
	handler := func(ctx context.Context, msg models.ScanMessage) error {
		handled = append(handled, msg.Code)
		switch msg.Code {
		case "EZ-002":
			return Permanent(errors.New("invalid status"))
		case "EZ-003":
			cancel()
			return errors.New("database unavailable")
		}
		return nil
	}

	err := consumer.Run(ctx, handler)

	require.NoError(t, err)
	assert.Equal(t, []string{"EZ-001", "EZ-002", "EZ-003"}, handled)
	assert.Equal(t, []string{"ok"}, receiver.completed)
	assert.Equal(t, []string{"retry"}, receiver.abandoned)
	assert.Equal(t, "rejected", receiver.deadLetters["conflict"])
	assert.Equal(t, "malformed", receiver.deadLetters["garbage"])
	assert.True(t, receiver.closed)
}

func TestPermanent(t *testing.T) {
	assert.Nil(t, Permanent(nil))
	assert.True(t, IsPermanent(errors.Wrap(Permanent(errors.New("x")), "context")))
	assert.False(t, IsPermanent(errors.New("x")))
}

func TestScanConsumer_FreeFormWhenIsNotMalformed(t *testing.T) {
	receiver := &fakeReceiver{batches: [][]*azservicebus.ReceivedMessage{{
		{MessageID: "millis", Body: []byte(`{"code":"EZ-010","when":1760860800000}`)},
		{MessageID: "local", Body: []byte(`{"code":"EZ-011","when":"2026-10-19 08:00"}`)},
	}}}
	consumer := newScanConsumer(receiver, "driver-scans")

	ctx, cancel := context.WithCancel(context.Background())
	var raws []string
	handler := func(ctx context.Context, msg models.ScanMessage) error {
		_, raw := models.ParseClientTimestamp(msg.When)
		raws = append(raws, raw)
		if len(raws) == 2 {
			cancel()
		}
		return nil
	}

	require.NoError(t, consumer.Run(ctx, handler))
	assert.Equal(t, []string{"1760860800000", "2026-10-19 08:00"}, raws)
	assert.Equal(t, []string{"millis", "local"}, receiver.completed)
	assert.Empty(t, receiver.deadLetters)
}
