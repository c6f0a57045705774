package wiimote

import "errors"

// Domain errors for the wiimote bridge package.
var (
	// ErrPollFailed is returned by Tick when the hardware poll fails.
	ErrPollFailed = errors.New("wiimote: poll failed")

	// ErrEmitFailed is returned by Tick when the sink rejects a channel update.
	ErrEmitFailed = errors.New("wiimote: emit failed")

	// ErrUnknownExtension is returned when an extension type name is not recognised.
	ErrUnknownExtension = errors.New("wiimote: unknown extension type")

	// ErrInvalidSlot is returned when a slot index is outside 0..3.
	ErrInvalidSlot = errors.New("wiimote: invalid slot index")

	// ErrSourceUnavailable is returned by Poll when the sample source cannot be reached.
	ErrSourceUnavailable = errors.New("wiimote: sample source unavailable")

	// ErrInvalidSample is returned when a raw sample message cannot be decoded.
	ErrInvalidSample = errors.New("wiimote: invalid raw sample")
)
