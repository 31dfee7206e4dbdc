package notification

import (
	"context"
	"fmt"
	"html/template"
	"strings"

	"github.com/pawmatch/pawmatch/internal/interfaces"
	"github.com/pawmatch/pawmatch/internal/telemetry"
	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

type mailSender interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

// EmailNotifier sends notifications through SendGrid to an owner's email address
type EmailNotifier struct {
	client   mailSender
	from     *mail.Email
	contacts interfaces.ContactDirectory
}

func NewEmailNotifier(apiKey, fromAddress, fromName string, contacts interfaces.ContactDirectory) (*EmailNotifier, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("sendgrid api key is required")
	}
	return &EmailNotifier{
		client:   sendgrid.NewSendClient(apiKey),
		from:     mail.NewEmail(fromName, fromAddress),
		contacts: contacts,
	}, nil
}

func (n *EmailNotifier) Name() string { return "email" }

func (n *EmailNotifier) SendMatchNotification(ctx context.Context, userID, title, message string, data map[string]string) error {
	return n.send(ctx, userID, title, message)
}

func (n *EmailNotifier) SendPlaydateRequestNotification(ctx context.Context, userID, requestID, otherDogName string) error {
	title, message := playdateRequestText(otherDogName)
	return n.send(ctx, userID, title, message)
}

func (n *EmailNotifier) send(ctx context.Context, userID, subject, body string) error {
	contact, err := n.contacts.GetContact(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to resolve email address: %w", err)
	}
	if contact == nil || contact.Email == "" {
		telemetry.GetContextualLogger(ctx).WithFields(map[string]interface{}{
			"operation": "email_notify",
			"user_id":   userID,
		}).Debug("Owner has no email address")
		return nil
	}

	to := mail.NewEmail(contact.DisplayName, contact.Email)
	message := mail.NewSingleEmail(n.from, subject, to, body, htmlBody(subject, body))

	response, err := n.client.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("failed to send email via SendGrid: %w", err)
	}
	if response.StatusCode >= 400 {
		return fmt.Errorf("SendGrid returned error status: %d", response.StatusCode)
	}
	return nil
}

func htmlBody(subject, body string) string {
	var b strings.Builder
	b.WriteString("<h2>")
	b.WriteString(template.HTMLEscapeString(subject))
	b.WriteString("</h2><p>")
	b.WriteString(template.HTMLEscapeString(body))
	b.WriteString("</p>")
	return b.String()
}
