package workers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kamilgrz/cs2-tracker/internal/models"
	"github.com/kamilgrz/cs2-tracker/internal/services"
)

// fakeQueue mimics the notification table's state machine: a row flips out of
// pending exactly once, later claims lose.
type fakeQueue struct {
	jobs     []services.DeliveryJob
	statuses map[int64]string
	errors   map[int64]string
}

func newFakeQueue(jobs ...services.DeliveryJob) *fakeQueue {
	q := &fakeQueue{
		jobs:     jobs,
		statuses: make(map[int64]string),
		errors:   make(map[int64]string),
	}
	for _, j := range jobs {
		q.statuses[j.Notification.ID] = models.DeliveryPending
	}
	return q
}

func (q *fakeQueue) PendingDeliveries(_ context.Context, _ int) ([]services.DeliveryJob, error) {
	return q.jobs, nil
}

func (q *fakeQueue) MarkSent(_ context.Context, id int64, _ time.Time) (bool, error) {
	if q.statuses[id] != models.DeliveryPending {
		return false, nil
	}
	q.statuses[id] = models.DeliverySent
	return true, nil
}

func (q *fakeQueue) MarkFailed(_ context.Context, id int64, cause string) (bool, error) {
	if q.statuses[id] != models.DeliveryPending {
		return false, nil
	}
	q.statuses[id] = models.DeliveryFailed
	q.errors[id] = cause
	return true, nil
}

type fakeDeliverer struct {
	err       error
	delivered []int64
}

func (f *fakeDeliverer) Deliver(_ context.Context, job services.DeliveryJob) error {
	f.delivered = append(f.delivered, job.Notification.ID)
	return f.err
}

func job(id int64) services.DeliveryJob {
	return services.DeliveryJob{Notification: models.AlertNotification{ID: id, DeliveryStatus: models.DeliveryPending}}
}

func TestDispatcherMarksSentOnSuccess(t *testing.T) {
	queue := newFakeQueue(job(1), job(2))
	notifier := &fakeDeliverer{}
	d := &Dispatcher{alerts: queue, notifier: notifier, interval: time.Second}

	d.RunOnce(context.Background())

	assert.Equal(t, []int64{1, 2}, notifier.delivered)
	assert.Equal(t, models.DeliverySent, queue.statuses[1])
	assert.Equal(t, models.DeliverySent, queue.statuses[2])
}

func TestDispatcherMarksFailedWithCause(t *testing.T) {
	queue := newFakeQueue(job(7))
	notifier := &fakeDeliverer{err: errors.New("smtp: connection refused")}
	d := &Dispatcher{alerts: queue, notifier: notifier, interval: time.Second}

	d.RunOnce(context.Background())

	assert.Equal(t, models.DeliveryFailed, queue.statuses[7])
	assert.Equal(t, "smtp: connection refused", queue.errors[7])
}

// Two dispatchers can fetch the same pending batch. The loser's late failure
// must not overwrite a row the winner already marked sent.
func TestDispatcherLateFailureCannotReverseSent(t *testing.T) {
	queue := newFakeQueue(job(3))

	// First dispatcher delivers and finalizes the row.
	first := &Dispatcher{alerts: queue, notifier: &fakeDeliverer{}, interval: time.Second}
	first.RunOnce(context.Background())
	require.Equal(t, models.DeliverySent, queue.statuses[3])

	// Second dispatcher fetched the same row earlier and its delivery fails.
	second := &Dispatcher{alerts: queue, notifier: &fakeDeliverer{err: errors.New("dm: user blocked")}, interval: time.Second}
	second.RunOnce(context.Background())

	assert.Equal(t, models.DeliverySent, queue.statuses[3])
	assert.Empty(t, queue.errors[3])
}
