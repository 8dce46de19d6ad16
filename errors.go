package prelude

import "errors"

var (
	// ErrConcurrentConsumption is returned when the source is already
	// delivering bytes to another consumer in flowing mode and the
	// caller didn't opt into AutoPause. Proceeding would silently lose
	// the bytes handed to the other consumer.
	ErrConcurrentConsumption = errors.New("prelude: source is already being consumed in flowing mode")

	// ErrInvalidSource is returned when the source doesn't satisfy the
	// stream contract (currently: a nil source).
	ErrInvalidSource = errors.New("prelude: source does not satisfy the stream contract")
)
