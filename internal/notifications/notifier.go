package notifications

import "context"

//go:generate mockgen -source=notifier.go -destination=mocks/notifier_mock.go -package=mocks

type Input struct {
	RegistrationID int64
	Email          string
}

// Notifier delivers the confirmation for a registration.
type Notifier interface {
	SendRegistrationNotification(ctx context.Context, input Input) error
}
