package registration

import "time"

// CreatedEvent announces that a registration was stored. It only lives as a message payload.
type CreatedEvent struct {
	RegistrationID int64     `json:"registrationId"`
	Email          string    `json:"email"`
	CreatedAt      time.Time `json:"createdAt"`
}

func (r Registration) CreatedEvent() CreatedEvent {
	return CreatedEvent{
		RegistrationID: r.ID,
		Email:          r.Email,
		CreatedAt:      r.CreatedAt,
	}
}
