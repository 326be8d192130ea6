package video

import "errors"

var (
	ErrVideoNotFound      = errors.New("video not found")
	ErrTitleRequired      = errors.New("video title is required")
	ErrInvalidWeek        = errors.New("week must be 1 or greater")
	ErrInvalidOrder       = errors.New("order in week must be 0 or greater")
	ErrFileRequired       = errors.New("a video file is required")
	ErrInvalidWindow      = errors.New("availableUntil must be after availableFrom")
	ErrInvalidDuration    = errors.New("duration must be a positive number of seconds")
	ErrUploadFailed       = errors.New("failed to store video file")
	ErrVideoNotAvailable  = errors.New("video is not available")
	ErrPlaybackUnresolved = errors.New("video has no playable location")
)
