package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	htmltemplate "html/template"
	"text/template"
	"time"

	"santa.share/internal/logging"
	"santa.share/internal/models"
)

var ErrNotConfigured = errors.New("server email not configured (missing SMTP_USER/SMTP_PASS)")

// Message is one rendered email.
type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

// Sender delivers a single message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Mailer sends reveal links one recipient at a time. A failed recipient is
// recorded and the rest of the batch still goes out; there are no retries.
type Mailer struct {
	sender Sender
	log    logging.Logger
	now    func() time.Time
}

// NewMailer returns a mailer. A nil sender makes every Send fail with
// ErrNotConfigured.
func NewMailer(sender Sender, log logging.Logger) *Mailer {
	return &Mailer{sender: sender, log: log, now: time.Now}
}

func (m *Mailer) Configured() bool {
	return m != nil && m.sender != nil
}

// Send mails every notification that has an address. The error is non-nil
// only when the mailer cannot send at all.
func (m *Mailer) Send(ctx context.Context, notes []models.Notification) (models.DeliveryReport, error) {
	report := models.DeliveryReport{Sent: []string{}, Failed: []models.DeliveryFailure{}}

	if !m.Configured() {
		return report, ErrNotConfigured
	}

	for _, n := range notes {
		if n.Email == "" {
			continue
		}

		msg, err := render(n, m.now())
		if err == nil {
			err = m.sender.Send(ctx, msg)
		}
		if err != nil {
			m.log.Warnf("failed to send to %s: %v", n.Email, err)
			report.Failed = append(report.Failed, models.DeliveryFailure{Email: n.Email, Reason: err.Error()})
			continue
		}

		report.Sent = append(report.Sent, n.Email)
	}

	m.log.Infof("mail batch done: %d sent, %d failed", len(report.Sent), len(report.Failed))
	return report, nil
}

const subject = "🎅 Your Secret Santa Match is Here!"

var textBody = template.Must(template.New("text").Parse(`Hi {{.Name}},

You have been invited to Secret Santa!

Click the link below to see who you got (Link self-destructs after viewing!):
{{.Link}}

Merry Christmas!

(Sent at: {{.SentAt}})
`))

var htmlBody = htmltemplate.Must(htmltemplate.New("html").Parse(`<div style="font-family: sans-serif; padding: 20px; text-align: center;">
  <h1>🎅 Secret Santa</h1>
  <p>Hi <strong>{{.Name}}</strong>,</p>
  <p>You have been invited to join the fun!</p>
  <div style="margin: 30px 0;">
    <a href="{{.Link}}" style="background-color: #D42426; color: white; padding: 12px 24px; text-decoration: none; border-radius: 5px; font-weight: bold;">Reveal My Match</a>
  </div>
  <p style="color: #666; font-size: 12px;">This link will self-destruct after you view it once. Do not share it!</p>
  <p style="color: #999; font-size: 10px; margin-top: 20px;">Sent at: {{.SentAt}}</p>
</div>
`))

func render(n models.Notification, now time.Time) (Message, error) {
	data := struct {
		Name   string
		Link   string
		SentAt string
	}{n.Name, n.Link, now.Format(time.RFC1123)}

	var text, html bytes.Buffer
	if err := textBody.Execute(&text, data); err != nil {
		return Message{}, fmt.Errorf("rendering text body: %w", err)
	}
	if err := htmlBody.Execute(&html, data); err != nil {
		return Message{}, fmt.Errorf("rendering html body: %w", err)
	}

	return Message{
		To:      n.Email,
		Subject: subject,
		Text:    text.String(),
		HTML:    html.String(),
	}, nil
}
