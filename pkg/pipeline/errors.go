package pipeline

import "errors"

// Failure taxonomy for one report. Transports map these onto their own
// reply semantics; anything unrecognized is treated as an internal failure.
var (
	// ErrAccessDenied means the report's token resolved to no project.
	// Terminal for the report; the socket transport also closes the
	// connection.
	ErrAccessDenied = errors.New("access denied")

	// ErrMalformedPayload means the input could not be parsed into a
	// report. Reported generically; the connection stays usable.
	ErrMalformedPayload = errors.New("malformed payload")

	// ErrPersistence means the event store rejected the write. Fatal to
	// the report, surfaced as a server error: the event would otherwise
	// be silently lost.
	ErrPersistence = errors.New("persistence failure")
)

// IsAccessDenied reports whether err is the access-denied terminal failure.
func IsAccessDenied(err error) bool {
	return errors.Is(err, ErrAccessDenied)
}

// IsPersistence reports whether err is a fatal persistence failure.
func IsPersistence(err error) bool {
	return errors.Is(err, ErrPersistence)
}
