package events

// Type names the kind of fact carried by a message.
type Type string

const (
	TypeRegistrationCreated Type = "registration.created"
)

const (
	DefaultTopic = "notifications"
	DefaultGroup = "notification-group"
)

func (t Type) IsValid() bool {
	switch t {
	case TypeRegistrationCreated:
		return true
	default:
		return false
	}
}
