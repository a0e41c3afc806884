package events

import "errors"

var (
	ErrInvalidEventType    = errors.New("invalid event type")
	ErrInvalidEventPayload = errors.New("invalid event payload")
)
