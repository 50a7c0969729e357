package broker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/Guizzs26/watch-crm/internal/db"
	"github.com/Guizzs26/watch-crm/internal/models"
	"github.com/Guizzs26/watch-crm/pkg/infra"
	"github.com/Guizzs26/watch-crm/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus/testutil"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ackRecord struct {
	acked, nacked, requeued bool
}

type fakeAcknowledger struct {
	mu  sync.Mutex
	rec ackRecord
}

func (f *fakeAcknowledger) Ack(tag uint64, multiple bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rec.acked = true
	return nil
}

func (f *fakeAcknowledger) Nack(tag uint64, multiple, requeue bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rec.nacked = true
	f.rec.requeued = requeue
	return nil
}

func (f *fakeAcknowledger) Reject(tag uint64, requeue bool) error {
	return f.Nack(tag, false, requeue)
}

type fakeDispatcher struct {
	err  error
	got  []models.NotificationRequest
	hook func()
}

func (f *fakeDispatcher) Dispatch(ctx context.Context, req models.NotificationRequest) error {
	if f.hook != nil {
		f.hook()
	}
	f.got = append(f.got, req)
	return f.err
}

type fakeIntake struct {
	err       error
	inquiries []models.Inquiry
	sells     []models.SellSubmission
}

func (f *fakeIntake) SubmitInquiry(_ context.Context, in models.Inquiry) (models.Inquiry, error) {
	f.inquiries = append(f.inquiries, in)
	return in, f.err
}

func (f *fakeIntake) SubmitSellRequest(_ context.Context, in models.SellSubmission) (models.SellSubmission, error) {
	f.sells = append(f.sells, in)
	return in, f.err
}

type fakeCatalog struct {
	err  error
	sold []int64
}

func (f *fakeCatalog) MarkSold(_ context.Context, id int64) (models.Watch, error) {
	f.sold = append(f.sold, id)
	return models.Watch{ID: id, Status: models.WatchSold}, f.err
}

func deliver(ctx context.Context, c *IntakeConsumer, key string, body []byte) ackRecord {
	ack := &fakeAcknowledger{}
	c.handle(ctx, amqp.Delivery{Acknowledger: ack, DeliveryTag: 1, RoutingKey: key, Body: body})
	return ack.rec
}

func TestIntakeConsumer_HandleNotifications(t *testing.T) {
	t.Parallel()

	valid := []byte(`{"destination":" +15550100 ","body":"Your Submariner is ready","reference":"inquiries:7"}`)

	tests := []struct {
		name         string
		key          string
		body         []byte
		dispatchErr  error
		cancelCtx    bool
		want         ackRecord
		wantDispatch bool
	}{
		{name: "dispatched", key: "notify.sms", body: valid, want: ackRecord{acked: true}, wantDispatch: true},
		{name: "malformed json", key: "notify.sms", body: []byte("{not json"), want: ackRecord{nacked: true}},
		{name: "rejected by dispatcher", key: "notify.sms", body: valid, dispatchErr: errors.New("destination is required"), want: ackRecord{nacked: true}, wantDispatch: true},
		{name: "shutdown requeues", key: "notify.sms", body: valid, dispatchErr: context.Canceled, cancelCtx: true, want: ackRecord{nacked: true, requeued: true}, wantDispatch: true},
		{name: "unroutable key", key: "orders.created", body: valid, want: ackRecord{nacked: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			disp := &fakeDispatcher{err: tt.dispatchErr}
			if tt.cancelCtx {
				disp.hook = cancel
			}
			c := &IntakeConsumer{handlers: Handlers{Notifications: disp}, logger: infra.NopLogger()}

			assert.Equal(t, tt.want, deliver(ctx, c, tt.key, tt.body))
			if !tt.wantDispatch {
				assert.Empty(t, disp.got)
				return
			}
			require.Len(t, disp.got, 1)
			assert.Equal(t, "+15550100", disp.got[0].Destination)
			assert.Equal(t, "inquiries:7", disp.got[0].Reference)
		})
	}
}

func TestIntakeConsumer_HandleStorefrontMessages(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	intake := &fakeIntake{}
	catalog := &fakeCatalog{}
	c := &IntakeConsumer{
		handlers: Handlers{Notifications: &fakeDispatcher{}, Intake: intake, Catalog: catalog},
		logger:   infra.NopLogger(),
	}

	rec := deliver(ctx, c, RouteInquiry, []byte(`{"watch_id":3,"name":"Ada","email":"ada@example.com","message":"Still available?"}`))
	assert.Equal(t, ackRecord{acked: true}, rec)
	require.Len(t, intake.inquiries, 1)
	assert.Equal(t, int64(3), intake.inquiries[0].WatchID)
	assert.Equal(t, "Ada", intake.inquiries[0].Name)

	rec = deliver(ctx, c, RouteSellRequest, []byte(`{"name":"Linus","phone":"+15550101","brand":"Rolex","asking_price":"14500"}`))
	assert.Equal(t, ackRecord{acked: true}, rec)
	require.Len(t, intake.sells, 1)
	assert.Equal(t, "14500", intake.sells[0].AskingPrice.String())

	rec = deliver(ctx, c, RouteWatchSold, []byte(`{"watch_id":3,"order_id":"o-1"}`))
	assert.Equal(t, ackRecord{acked: true}, rec)
	assert.Equal(t, []int64{3}, catalog.sold)

	rec = deliver(ctx, c, RouteWatchSold, []byte(`{"order_id":"o-2"}`))
	assert.Equal(t, ackRecord{nacked: true}, rec, "a sale without a watch id is malformed")
	assert.Len(t, catalog.sold, 1)
}

func TestIntakeConsumer_StorefrontRoutesNeedHandlers(t *testing.T) {
	t.Parallel()

	c := &IntakeConsumer{handlers: Handlers{Notifications: &fakeDispatcher{}}, logger: infra.NopLogger()}

	for _, key := range []string{RouteInquiry, RouteSellRequest, RouteWatchSold} {
		assert.Equal(t, ackRecord{nacked: true}, deliver(context.Background(), c, key, []byte(`{}`)), key)
	}
}

func TestIntakeConsumer_StorageFailuresRequeue(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want ackRecord
	}{
		{
			name: "connection failure requeues",
			err:  fmt.Errorf("store inquiry: %w", &db.StorageError{Op: "insert", Table: "inquiries", Err: errors.New("connection refused")}),
			want: ackRecord{nacked: true, requeued: true},
		},
		{
			name: "constraint violation is dropped",
			err:  fmt.Errorf("store inquiry: %w", &db.StorageError{Op: "insert", Table: "inquiries", Err: errors.New("NOT NULL constraint failed: inquiries.name")}),
			want: ackRecord{nacked: true},
		},
		{
			name: "validation error is dropped",
			err:  errors.New("validation failed: name is required"),
			want: ackRecord{nacked: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c := &IntakeConsumer{
				handlers: Handlers{Notifications: &fakeDispatcher{}, Intake: &fakeIntake{err: tt.err}},
				logger:   infra.NopLogger(),
			}
			assert.Equal(t, tt.want, deliver(context.Background(), c, RouteInquiry, []byte(`{"name":"Ada","email":"ada@example.com"}`)))
		})
	}
}

func TestIntakeConsumer_MarkOnline(t *testing.T) {
	c := &IntakeConsumer{logger: infra.NopLogger()}
	health := metrics.HealthStatus.WithLabelValues("intake")

	markOffline := c.markOnline()
	assert.Equal(t, 1.0, testutil.ToFloat64(health))

	markOffline()
	assert.Equal(t, 0.0, testutil.ToFloat64(health))
}
