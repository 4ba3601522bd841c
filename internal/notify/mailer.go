package notify

import (
	"fmt"
	"net/http"
	"net/mail"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/s/learnhub/internal/logger"
)

// Message is a plain-text email.
type Message struct {
	To      []mail.Address
	Subject string
	Text    string
}

// Mailer delivers email messages.
type Mailer interface {
	Send(msg Message) error
}

var (
	sendgridHost     = "https://api.sendgrid.com"
	sendgridEndpoint = "/v3/mail/send"
)

// SendgridMailer sends through the SendGrid v3 API.
type SendgridMailer struct {
	key        string
	from       *sgmail.Email
	subjPrefix string
}

var _ Mailer = (*SendgridMailer)(nil)

func NewSendgridMailer(apiKey string, from mail.Address, appName string) *SendgridMailer {
	return &SendgridMailer{
		key:        apiKey,
		from:       sgmail.NewEmail(from.Name, from.Address),
		subjPrefix: "[" + appName + "] ",
	}
}

func (m *SendgridMailer) prepare(msg Message) *sgmail.SGMailV3 {
	p := sgmail.NewPersonalization()
	p.Subject = m.subjPrefix + msg.Subject
	for _, to := range msg.To {
		p.AddTos(sgmail.NewEmail(to.Name, to.Address))
	}

	v3 := sgmail.NewV3Mail()
	v3.SetFrom(m.from)
	v3.AddPersonalizations(p)
	v3.AddContent(sgmail.NewContent("text/plain", msg.Text))
	return v3
}

func (m *SendgridMailer) Send(msg Message) error {
	if len(msg.To) == 0 {
		return nil
	}
	req := sendgrid.GetRequest(m.key, sendgridEndpoint, sendgridHost)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(m.prepare(msg))

	res, err := sendgrid.API(req)
	if err != nil {
		return errors.Wrap(err, "sending email")
	}
	if res.StatusCode >= http.StatusBadRequest {
		return errors.Errorf("sending email - status: %d - body: %s", res.StatusCode, res.Body)
	}
	return nil
}

// ConsoleMailer writes messages to the log and keeps them for inspection.
type ConsoleMailer struct {
	log logger.Logger

	mu   sync.Mutex
	sent []Message
}

var _ Mailer = (*ConsoleMailer)(nil)

func NewConsoleMailer(log logger.Logger) *ConsoleMailer {
	return &ConsoleMailer{log: log}
}

func (m *ConsoleMailer) Send(msg Message) error {
	to := make([]string, 0, len(msg.To))
	for _, a := range msg.To {
		to = append(to, a.String())
	}
	m.log.Info(fmt.Sprintf("email to=%s subject=%q\n%s", strings.Join(to, ", "), msg.Subject, msg.Text))

	m.mu.Lock()
	m.sent = append(m.sent, msg)
	m.mu.Unlock()
	return nil
}

// Sent returns a copy of every message sent so far.
func (m *ConsoleMailer) Sent() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Message(nil), m.sent...)
}
