package notifier

import (
	"context"
	"log/slog"

	"github.com/tle-eliminators/cf-tracker/internal/domain/student"
)

// LogNotifier writes reminders to the logger instead of sending them.
// Used in development and when no mail provider is configured.
type LogNotifier struct {
	renderer Renderer
	logger   *slog.Logger
}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier(renderer Renderer, logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{renderer: renderer, logger: logger.With("component", "log_notifier")}
}

// Send logs the rendered reminder and reports success.
func (n *LogNotifier) Send(_ context.Context, st *student.Student) bool {
	msg, err := n.renderer.Render(st)
	if err != nil {
		n.logger.Error("rendering reminder", "student_id", st.ID, "error", err)
		return false
	}

	n.logger.Info("reminder email",
		"student_id", st.ID,
		"to", msg.ToEmail,
		"subject", msg.Subject,
		"body", msg.Text,
	)
	return true
}
