package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/md-rashed-zaman/consultbook/libs/kafkax"
	"github.com/md-rashed-zaman/consultbook/services/availability-service/internal/metrics"
)

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var outboxColumns = []string{"id", "event_id", "aggregate_type", "aggregate_id", "event_type", "payload", "traceparent", "tracestate", "created_at"}

func TestNewAvailabilityChanged(t *testing.T) {
	at := time.Date(2025, 6, 10, 8, 0, 0, 0, time.FixedZone("CEST", 2*3600))
	evt, err := NewAvailabilityChanged("pro-1", ChangeBlockCreated, at, "2025-06-16")
	require.NoError(t, err)
	assert.Equal(t, TopicAvailabilityChanged, evt.EventType)
	assert.Equal(t, "pro-1", evt.AggregateID)

	var body AvailabilityChanged
	require.NoError(t, json.Unmarshal(evt.Payload, &body))
	assert.Equal(t, []string{"2025-06-16"}, body.Dates)
	assert.Equal(t, time.UTC, body.OccurredAt.Location())
}

func TestInsert(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	evt := Event{AggregateType: "professional", AggregateID: "pro-1", EventType: TopicAvailabilityChanged, Payload: []byte(`{}`)}
	mock.ExpectExec("INSERT INTO outbox_events").
		WithArgs("professional", "pro-1", TopicAvailabilityChanged, []byte(`{}`), "", "").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, NewRepository().Insert(context.Background(), mock, evt))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPublishBatch(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	now := time.Now()
	mock.ExpectBegin()
	mock.ExpectQuery("FROM outbox_events").
		WithArgs(50).
		WillReturnRows(pgxmock.NewRows(outboxColumns).
			AddRow(int64(1), "evt-1", "professional", "pro-1", TopicAvailabilityChanged, []byte(`{"a":1}`), "", "", now).
			AddRow(int64(2), "evt-2", "professional", "pro-2", TopicAvailabilityChanged, []byte(`{"a":2}`), "", "", now))
	mock.ExpectExec("UPDATE outbox_events").
		WithArgs([]int64{1, 2}).
		WillReturnResult(pgxmock.NewResult("UPDATE", 2))
	mock.ExpectCommit()

	w := &fakeWriter{}
	p := NewPublisher(mock, NewRepository(), w, discardLogger(), nil, PublisherConfig{})
	n, err := p.PublishBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, w.msgs, 2)
	assert.Equal(t, "pro-1", string(w.msgs[0].Key))
	assert.Equal(t, TopicAvailabilityChanged, w.msgs[0].Topic)
	assert.Equal(t, "evt-2", kafkax.ExtractEventMeta(w.msgs[1]).EventID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPublishBatchWriterFailureLeavesRecordsPending(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("FROM outbox_events").
		WithArgs(10).
		WillReturnRows(pgxmock.NewRows(outboxColumns).
			AddRow(int64(7), "evt-7", "professional", "pro-1", TopicAvailabilityChanged, []byte(`{}`), "", "", time.Now()))
	mock.ExpectRollback()

	boom := errors.New("broker down")
	p := NewPublisher(mock, NewRepository(), &fakeWriter{err: boom}, discardLogger(), nil, PublisherConfig{BatchSize: 10})
	n, err := p.PublishBatch(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, n, "locked records are reported even though they stay pending")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFailedBatchCountsEveryRecord(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	rows := pgxmock.NewRows(outboxColumns)
	for i := int64(1); i <= 3; i++ {
		rows.AddRow(i, fmt.Sprintf("evt-%d", i), "professional", "pro-1", TopicAvailabilityChanged, []byte(`{}`), "", "", time.Now())
	}
	mock.ExpectBegin()
	mock.ExpectQuery("FROM outbox_events").WithArgs(50).WillReturnRows(rows)
	mock.ExpectRollback()

	reg := prometheus.NewRegistry()
	p := NewPublisher(mock, NewRepository(), &fakeWriter{err: errors.New("broker down")}, discardLogger(), metrics.New(reg), PublisherConfig{})
	p.tick(context.Background())

	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(`
# HELP consultbook_outbox_published_total Outbox records handed to Kafka by outcome
# TYPE consultbook_outbox_published_total counter
consultbook_outbox_published_total{outcome="error"} 3
`), "consultbook_outbox_published_total"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPublishBatchEmpty(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("FROM outbox_events").WithArgs(50).WillReturnRows(pgxmock.NewRows(outboxColumns))
	mock.ExpectCommit()

	p := NewPublisher(mock, NewRepository(), &fakeWriter{}, discardLogger(), nil, PublisherConfig{})
	n, err := p.PublishBatch(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunWithoutWriterReturns(t *testing.T) {
	p := NewPublisher(nil, NewRepository(), nil, discardLogger(), nil, PublisherConfig{})
	done := make(chan struct{})
	go func() {
		p.Run(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publisher without writer should return immediately")
	}
}
