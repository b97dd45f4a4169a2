package artifact

import (
	"fmt"
	"time"
)

// AlreadyExistsError reports a publish that collided with a stored object
// when overwriting was not requested.
type AlreadyExistsError struct {
	Object string
}

func (e *AlreadyExistsError) Error() string {
	return fmt.Sprintf("object already stored: %s", e.Object)
}

// GrantExpiredError reports an access attempt with a grant past its expiry.
type GrantExpiredError struct {
	URI       string
	ExpiresAt time.Time
}

func (e *GrantExpiredError) Error() string {
	return fmt.Sprintf("grant expired at %s: %s", e.ExpiresAt.Format(time.RFC3339), e.URI)
}

// UnknownPayloadError reports a reference to a payload id that was never
// declared or published.
type UnknownPayloadError struct {
	ID string
}

func (e *UnknownPayloadError) Error() string {
	return fmt.Sprintf("unknown payload id %q", e.ID)
}
