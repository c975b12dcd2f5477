package booking_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slotable/service-booking/internal/domain/booking"
)

func TestBookingStatus_IsValid(t *testing.T) {
	assert.True(t, booking.StatusPending.IsValid())
	assert.True(t, booking.StatusConfirmed.IsValid())
	assert.True(t, booking.StatusCompleted.IsValid())
	assert.True(t, booking.StatusCancelled.IsValid())
	assert.False(t, booking.BookingStatus("archived").IsValid())
	assert.False(t, booking.BookingStatus("").IsValid())
}

func TestBookingStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from    booking.BookingStatus
		to      booking.BookingStatus
		allowed bool
	}{
		{booking.StatusPending, booking.StatusConfirmed, true},
		{booking.StatusPending, booking.StatusCancelled, true},
		{booking.StatusPending, booking.StatusCompleted, false},
		{booking.StatusPending, booking.StatusPending, false},
		{booking.StatusConfirmed, booking.StatusCompleted, true},
		{booking.StatusConfirmed, booking.StatusCancelled, true},
		{booking.StatusConfirmed, booking.StatusPending, false},
		{booking.StatusCompleted, booking.StatusCancelled, false},
		{booking.StatusCompleted, booking.StatusConfirmed, false},
		{booking.StatusCancelled, booking.StatusPending, false},
		{booking.StatusCancelled, booking.StatusConfirmed, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.allowed, tt.from.CanTransitionTo(tt.to),
			"%s -> %s", tt.from, tt.to)
	}
}

func TestBookingStatus_IsTerminal(t *testing.T) {
	assert.False(t, booking.StatusPending.IsTerminal())
	assert.False(t, booking.StatusConfirmed.IsTerminal())
	assert.True(t, booking.StatusCompleted.IsTerminal())
	assert.True(t, booking.StatusCancelled.IsTerminal())
	assert.True(t, booking.BookingStatus("unknown").IsTerminal())
}

func TestBookingStatus_CanBeCancelled(t *testing.T) {
	assert.True(t, booking.StatusPending.CanBeCancelled())
	assert.True(t, booking.StatusConfirmed.CanBeCancelled())
	assert.False(t, booking.StatusCompleted.CanBeCancelled())
	assert.False(t, booking.StatusCancelled.CanBeCancelled())
}

func TestParseBookingStatus(t *testing.T) {
	status, err := booking.ParseBookingStatus("confirmed")
	require.NoError(t, err)
	assert.Equal(t, booking.StatusConfirmed, status)

	_, err = booking.ParseBookingStatus("CONFIRMED")
	require.Error(t, err)

	_, err = booking.ParseBookingStatus("done")
	require.Error(t, err)
}
