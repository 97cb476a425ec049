package domain

import "errors"

var (
	// ErrInvalidChannel is returned for channel ids outside [1..N].
	ErrInvalidChannel = errors.New("invalid channel id")

	// ErrInvalidDuration is returned when a timer is armed with a
	// non-positive number of minutes.
	ErrInvalidDuration = errors.New("invalid timer duration")

	// ErrAlreadyTimed is returned when a timer is armed on a channel
	// that still has a running session. The current session is untouched.
	ErrAlreadyTimed = errors.New("channel already has an active timer")

	// ErrNoActiveTimer is returned by remaining-time queries and manual
	// cancels when no session is running on the channel.
	ErrNoActiveTimer = errors.New("no active timer")

	// ErrLedgerWrite wraps a failed usage record append. The record is
	// lost for that session; the channel stays off.
	ErrLedgerWrite = errors.New("ledger append failed")

	// ErrLedgerRead wraps a failed full ledger scan.
	ErrLedgerRead = errors.New("ledger read failed")

	// ErrAggregation wraps any aggregation failure. The summary
	// destination is left untouched.
	ErrAggregation = errors.New("aggregation failed")
)
