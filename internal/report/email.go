package report

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/jordan-wright/email"
	"github.com/lalmajed/citysh/internal/harvest"
	"github.com/lalmajed/citysh/lib/telemetry"
	"go.opentelemetry.io/otel/codes"
)

var tracer = telemetry.Tracer("citysh.internal.report")

type SmtpConfig struct {
	Server       string
	Port         int
	EmailAddress string
	Password     string
	Recipients   []string
}

// Notifier mails a run report when a harvest finishes. Configure it
// with an empty server to disable.
type Notifier struct {
	config SmtpConfig
}

func NewNotifier(config SmtpConfig) Notifier {
	return Notifier{config: config}
}

func (n Notifier) Enabled() bool {
	return n.config.Server != "" && len(n.config.Recipients) > 0
}

// SendRunReport emails the rendered summary. body is whatever Render
// produced, recipients read it in a monospace client anyway.
func (n Notifier) SendRunReport(ctx context.Context, result *harvest.Result, body string) error {
	ctx, span := tracer.Start(ctx, "SendRunReport")
	defer span.End()

	mail := email.NewEmail()
	mail.From = fmt.Sprintf("Parcel Harvest <%s>", n.config.EmailAddress)
	mail.To = n.config.Recipients
	mail.Subject = fmt.Sprintf("Parcel harvest %s: %d records", result.State.String(), len(result.Records))

	text := fmt.Sprintf("Run %s finished as %s.\n", result.RunID, result.State.String())
	if result.Err != nil {
		text += fmt.Sprintf("Error: %v\n", result.Err)
	}
	if len(result.Outputs) > 0 {
		text += fmt.Sprintf("Outputs: %s\n", strings.Join(result.Outputs, ", "))
	}
	text += "\n" + body
	mail.Text = []byte(text)

	addr := fmt.Sprintf("%s:%d", n.config.Server, n.config.Port)
	err := mail.Send(
		addr,
		smtp.PlainAuth("", n.config.EmailAddress, n.config.Password, n.config.Server),
	)
	if err != nil && strings.Contains(err.Error(), "server doesn't support AUTH") {
		err = mail.Send(addr, nil)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to send email")
		return err
	}
	return nil
}
