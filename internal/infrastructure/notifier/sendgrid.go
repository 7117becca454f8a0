package notifier

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/tle-eliminators/cf-tracker/internal/domain/student"
)

const (
	DefaultSendGridHost    = "https://api.sendgrid.com"
	DefaultSendGridTimeout = 10 * time.Second
	sendGridEndpoint       = "/v3/mail/send"
)

// SendGridConfig holds provider credentials and the sender identity.
type SendGridConfig struct {
	APIKey    string
	Host      string
	FromName  string
	FromEmail string

	// Timeout bounds one delivery attempt. Zero means DefaultSendGridTimeout.
	Timeout time.Duration
}

// SendGridNotifier sends reminders through the SendGrid v3 API.
type SendGridNotifier struct {
	key      string
	host     string
	client   *rest.Client
	from     *sgmail.Email
	renderer Renderer
	logger   *slog.Logger
}

// NewSendGridNotifier creates a SendGrid-backed notifier.
func NewSendGridNotifier(cfg SendGridConfig, renderer Renderer, logger *slog.Logger) *SendGridNotifier {
	if cfg.Host == "" {
		cfg.Host = DefaultSendGridHost
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultSendGridTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SendGridNotifier{
		key:      cfg.APIKey,
		host:     cfg.Host,
		client:   &rest.Client{HTTPClient: &http.Client{Timeout: cfg.Timeout}},
		from:     sgmail.NewEmail(cfg.FromName, cfg.FromEmail),
		renderer: renderer,
		logger:   logger.With("component", "sendgrid_notifier"),
	}
}

// Send renders and delivers the reminder. It reports false on any failure.
func (n *SendGridNotifier) Send(ctx context.Context, st *student.Student) bool {
	if err := ctx.Err(); err != nil {
		return false
	}
	if st.Email == "" {
		n.logger.Warn("student has no email address", "student_id", st.ID)
		return false
	}

	msg, err := n.renderer.Render(st)
	if err != nil {
		n.logger.Error("rendering reminder", "student_id", st.ID, "error", err)
		return false
	}

	req := sendgrid.GetRequest(n.key, sendGridEndpoint, n.host)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(n.prepare(msg))

	res, err := n.do(ctx, req)
	if err != nil {
		n.logger.Error("sending reminder", "student_id", st.ID, "error", err)
		return false
	}
	if res.StatusCode >= http.StatusBadRequest {
		n.logger.Error("sending reminder rejected",
			"student_id", st.ID,
			"status", res.StatusCode,
			"body", res.Body,
		)
		return false
	}

	n.logger.Debug("reminder sent", "student_id", st.ID, "status", res.StatusCode)
	return true
}

// do is rest.Client.Send bound to ctx, so cancellation aborts an in-flight
// request instead of waiting for the client timeout.
func (n *SendGridNotifier) do(ctx context.Context, req rest.Request) (*rest.Response, error) {
	httpReq, err := rest.BuildRequestObject(req)
	if err != nil {
		return nil, err
	}
	res, err := n.client.MakeRequest(httpReq.WithContext(ctx))
	if err != nil {
		return nil, err
	}
	return rest.BuildResponse(res)
}

func (n *SendGridNotifier) prepare(msg *Message) *sgmail.SGMailV3 {
	p := sgmail.NewPersonalization()
	p.Subject = msg.Subject
	p.AddTos(sgmail.NewEmail(msg.ToName, msg.ToEmail))

	m := sgmail.NewV3Mail()
	m.SetFrom(n.from)
	m.AddPersonalizations(p)
	m.AddContent(
		sgmail.NewContent("text/plain", msg.Text),
		sgmail.NewContent("text/html", msg.HTML),
	)
	return m
}
