package events

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/geocoder89/registrationhub/internal/domain/registration"
)

// Message is the broker-neutral form of an event: a routing key plus the JSON body.
// Headers carry metadata such as the trace context.
type Message struct {
	Type    Type
	Key     string
	Payload []byte
	Headers map[string]string
}

// EncodeCreated validates ev and turns it into a message keyed by registration id.
func EncodeCreated(ev registration.CreatedEvent) (Message, error) {
	if err := ValidateCreated(ev); err != nil {
		return Message{}, err
	}

	b, err := json.Marshal(ev)
	if err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrInvalidEventPayload, err)
	}

	return Message{
		Type:    TypeRegistrationCreated,
		Key:     Key(ev.RegistrationID),
		Payload: b,
	}, nil
}

// DecodeCreated unmarshals and validates a registration-created payload.
func DecodeCreated(payload []byte) (registration.CreatedEvent, error) {
	if len(payload) == 0 {
		return registration.CreatedEvent{}, ErrInvalidEventPayload
	}

	var ev registration.CreatedEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return registration.CreatedEvent{}, fmt.Errorf("%w: %v", ErrInvalidEventPayload, err)
	}

	if err := ValidateCreated(ev); err != nil {
		return registration.CreatedEvent{}, err
	}

	return ev, nil
}

// ValidateCreated performs minimal sanity checks on an event.
func ValidateCreated(ev registration.CreatedEvent) error {
	if ev.RegistrationID <= 0 || strings.TrimSpace(ev.Email) == "" || ev.CreatedAt.IsZero() {
		return ErrInvalidEventPayload
	}
	return nil
}

func Key(registrationID int64) string {
	return strconv.FormatInt(registrationID, 10)
}
