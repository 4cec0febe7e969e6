package domain

import (
	"errors"
	"fmt"
	"time"
)

// FloodWaitError is the transport-level rate-limit signal: the caller must
// wait the indicated duration before retrying. Whether to wait or abandon is
// always the caller's decision.
type FloodWaitError struct {
	Wait time.Duration
}

func (e *FloodWaitError) Error() string {
	return fmt.Sprintf("flood wait of %s required", e.Wait)
}

// FloodWait extracts the wait duration from err, if err carries a rate-limit
// signal anywhere in its chain.
func FloodWait(err error) (time.Duration, bool) {
	var flood *FloodWaitError
	if errors.As(err, &flood) {
		return flood.Wait, true
	}
	return 0, false
}
