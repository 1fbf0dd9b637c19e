// Package notify delivers upload completion notices. Delivery failures are
// reported to the caller but never change the outcome of a job.
package notify

import (
	"context"
	"fmt"

	"github.com/wneessen/go-mail"
	"go.uber.org/zap"

	"github.com/clubops/querycsv/internal/config"
	"github.com/clubops/querycsv/internal/store/model"
)

type Notifier interface {
	UploadComplete(ctx context.Context, job *model.UploadJob) error
}

// NewFromConfig returns the SMTP mailer when delivery is enabled, a no-op
// notifier otherwise.
func NewFromConfig(cfg *config.Config) Notifier {
	if cfg.Smtp == nil || !cfg.Smtp.Enabled {
		return &Noop{}
	}
	return NewMailer(cfg)
}

type Noop struct{}

func (n *Noop) UploadComplete(ctx context.Context, job *model.UploadJob) error {
	return nil
}

type Mailer struct {
	cfg *config.Config
	log *zap.SugaredLogger
}

func NewMailer(cfg *config.Config) *Mailer {
	return &Mailer{
		cfg: cfg,
		log: zap.S().Named("notify"),
	}
}

func (m *Mailer) UploadComplete(ctx context.Context, job *model.UploadJob) error {
	if job.NotifyAddress == "" {
		return nil
	}

	msg := mail.NewMsg()
	if err := msg.From(m.cfg.Smtp.From); err != nil {
		return fmt.Errorf("setting sender: %w", err)
	}
	if err := msg.To(job.NotifyAddress); err != nil {
		return fmt.Errorf("setting recipient: %w", err)
	}
	msg.Subject(fmt.Sprintf("Upload to %s processed", job.SchemaRef))
	msg.SetBodyString(mail.TypeTextPlain, body(job))
	if job.Report != "" {
		msg.AttachFile(job.Report)
	}

	client, err := mail.NewClient(m.cfg.Smtp.Hostname,
		mail.WithPort(m.cfg.Smtp.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(m.cfg.Smtp.Username),
		mail.WithPassword(m.cfg.Smtp.Password),
	)
	if err != nil {
		return fmt.Errorf("creating smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("sending notification: %w", err)
	}
	m.log.Infof("sent upload notice for job %s to %s", job.ID, job.NotifyAddress)
	return nil
}

func body(job *model.UploadJob) string {
	switch job.Status {
	case model.UploadStatusSuccess:
		return fmt.Sprintf(
			"Your upload %s finished.\n\nRows imported: %d\nRows failed: %d\n\nThe attached report lists each row outcome.\n",
			job.File, job.SuccessCount, job.FailureCount,
		)
	default:
		reason := "unknown error"
		if job.Error != nil {
			reason = *job.Error
		}
		return fmt.Sprintf("Your upload %s could not be processed: %s\n", job.File, reason)
	}
}
