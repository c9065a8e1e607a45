package relay

import "errors"

// Client input errors. The provider is never called when these are returned.
var (
	ErrTextRequired = errors.New("relay: text is required")
	ErrTextTooLong  = errors.New("relay: text exceeds character limit")
)

// Provider-side errors. The wrapped cause is for logs only.
var (
	ErrVoicesUnavailable  = errors.New("relay: failed to fetch voices")
	ErrSynthesisFailed    = errors.New("relay: failed to synthesize speech")
	ErrInvalidAudioStream = errors.New("relay: invalid audio stream received")
)
