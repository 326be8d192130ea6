package progress

import "errors"

var (
	ErrInvalidPosition = errors.New("position must be a non-negative number of seconds")
	ErrInvalidDuration = errors.New("duration must be a non-negative number of seconds")
	ErrVideoInactive   = errors.New("video is not available")
)
