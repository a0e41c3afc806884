package notifications

import (
	"context"
	"log/slog"
)

// LogNotifier stands in for an email provider: it only writes a log line.
type LogNotifier struct {
	log *slog.Logger
}

func NewLogNotifier(log *slog.Logger) *LogNotifier {
	if log == nil {
		log = slog.Default()
	}
	return &LogNotifier{log: log}
}

func (n *LogNotifier) SendRegistrationNotification(ctx context.Context, in Input) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	n.log.InfoContext(ctx, "sending registration notification",
		"email", in.Email,
		"registration_id", in.RegistrationID,
	)
	return nil
}
