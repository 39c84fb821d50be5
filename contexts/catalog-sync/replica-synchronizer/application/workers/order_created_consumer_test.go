package workers

import (
	"context"
	"testing"
	"time"

	"shopgate/contexts/catalog-sync/replica-synchronizer/adapters/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOrderConsumer() (OrderCreatedConsumer, *memory.JobSink, *memory.ChangeFeed) {
	jobs := &memory.JobSink{}
	feed := memory.NewChangeFeed()
	return OrderCreatedConsumer{
		Subscriber:  feed,
		Jobs:        jobs,
		IDGenerator: &memory.SequenceIDs{},
		Clock:       memory.NewClock(time.Date(2026, time.March, 3, 9, 0, 0, 0, time.UTC), 0),
	}, jobs, feed
}

func TestOrderCreatedConsumerQueuesConfirmationJob(t *testing.T) {
	consumer, jobs, feed := newOrderConsumer()
	require.NoError(t, consumer.Start(context.Background()))

	require.NoError(t, feed.Publish(context.Background(), DefaultDomainEventChannel, []byte(`{
		"type": "order.created",
		"data": {
			"order_id": "o1",
			"order_number": "SG-1001",
			"customer_email": " jane@example.com ",
			"customer_name": "Jane",
			"items": [{"product_name": "Mug", "quantity": 2, "unit_price": 9.99}],
			"total": 19.98,
			"currency": "EUR"
		}
	}`)))

	queued := jobs.Jobs()
	require.Len(t, queued, 1)
	job := queued[0]
	assert.Equal(t, "job-1", job.JobID)
	assert.Equal(t, "order_confirmation", job.Template)
	assert.Equal(t, "jane@example.com", job.To)
	assert.Equal(t, "SG-1001", job.OrderNumber)
	assert.Equal(t, 19.98, job.Total)
	require.Len(t, job.Items, 1)
	assert.Equal(t, int64(2), job.Items[0].Quantity)
	assert.Equal(t, 9.99, job.Items[0].UnitPrice)
	assert.Equal(t, time.Date(2026, time.March, 3, 9, 0, 0, 0, time.UTC), job.CreatedAt)
}

func TestOrderCreatedConsumerSkipsIncompleteOrders(t *testing.T) {
	consumer, jobs, _ := newOrderConsumer()

	assert.NoError(t, consumer.Handle(context.Background(), []byte(
		`{"type":"order.created","data":{"order_id":"o1","order_number":"SG-1"}}`,
	)))
	assert.NoError(t, consumer.Handle(context.Background(), []byte(
		`{"type":"order.created","data":{"order_id":"o1","customer_email":"a@example.com"}}`,
	)))
	assert.Empty(t, jobs.Jobs())
}

func TestOrderCreatedConsumerIgnoresOtherEvents(t *testing.T) {
	consumer, jobs, _ := newOrderConsumer()

	assert.NoError(t, consumer.Handle(context.Background(), []byte(`{"type":"user.registered","data":{}}`)))
	assert.NoError(t, consumer.Handle(context.Background(), []byte(`garbage`)))
	assert.Empty(t, jobs.Jobs())
}
