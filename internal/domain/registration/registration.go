package registration

import (
	"errors"
	"time"

	"github.com/geocoder89/registrationhub/internal/patch"
)

type Status string

const (
	StatusProcessing Status = "PROCESSING"
	StatusProcessed  Status = "PROCESSED"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusProcessing, StatusProcessed:
		return true
	default:
		return false
	}
}

type Registration struct {
	ID          int64     `json:"id"`
	FirstName   string    `json:"firstName"`
	LastName    string    `json:"lastName"`
	Email       string    `json:"email"`
	Age         int       `json:"age"`
	CountryCode string    `json:"countryCode"`
	Status      Status    `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

var (
	// ErrEmailTaken is returned when another registration already uses the email.
	ErrEmailTaken = errors.New("email already registered")
	ErrNotFound   = errors.New("registration not found")
)

type CreateRequest struct {
	FirstName   string `json:"firstName" binding:"required,max=50"`
	LastName    string `json:"lastName" binding:"required,max=50"`
	Email       string `json:"email" binding:"required,email"`
	Age         *int   `json:"age" binding:"required,min=0,max=150"`
	CountryCode string `json:"countryCode" binding:"required,countrycode"`
}

// UpdateRequest is a partial update. Only fields present in the document are applied.
type UpdateRequest struct {
	FirstName   patch.Field[string] `json:"firstName"`
	LastName    patch.Field[string] `json:"lastName"`
	Email       patch.Field[string] `json:"email"`
	Age         patch.Field[int]    `json:"age"`
	CountryCode patch.Field[string] `json:"countryCode"`
}

// New builds a registration awaiting notification. Both timestamps are the same instant.
func New(req CreateRequest, now time.Time) Registration {
	age := 0
	if req.Age != nil {
		age = *req.Age
	}

	now = Timestamp(now)

	return Registration{
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Email:       req.Email,
		Age:         age,
		CountryCode: req.CountryCode,
		Status:      StatusProcessing,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Apply overwrites the fields present in req and always refreshes UpdatedAt.
func (r *Registration) Apply(req UpdateRequest, now time.Time) {
	req.FirstName.Apply(&r.FirstName)
	req.LastName.Apply(&r.LastName)
	req.Email.Apply(&r.Email)
	req.Age.Apply(&r.Age)
	req.CountryCode.Apply(&r.CountryCode)

	r.UpdatedAt = Timestamp(now)
}

// MarkProcessed is the only status transition a registration goes through.
func (r *Registration) MarkProcessed(now time.Time) {
	r.Status = StatusProcessed
	r.UpdatedAt = Timestamp(now)
}

// Timestamp normalises t to what Postgres stores: UTC, microsecond precision.
func Timestamp(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}
