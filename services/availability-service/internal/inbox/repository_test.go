package inbox

import (
	"context"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecord(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewRepository()
	mock.ExpectExec("INSERT INTO inbox_events").
		WithArgs("evt-1", "booking.appointment.booked.v1").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO inbox_events").
		WithArgs("evt-1", "booking.appointment.booked.v1").
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	ok, err := repo.Record(context.Background(), mock, "evt-1", "booking.appointment.booked.v1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Record(context.Background(), mock, "evt-1", "booking.appointment.booked.v1")
	require.NoError(t, err)
	assert.False(t, ok, "second delivery is a duplicate")
	assert.NoError(t, mock.ExpectationsWereMet())
}
