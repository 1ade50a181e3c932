package service

import (
	"context"
	"fmt"
	"io"

	"gopkg.in/gomail.v2"

	"github.com/propwatch/propwatch/internal/models"
	"github.com/propwatch/propwatch/pkg/logger"
)

// EmailReportSender delivers rendered reports over SMTP. HTML reports go in
// the body; CSV and Excel go as attachments.
type EmailReportSender struct {
	cfg EmailConfig
	log *logger.Logger
}

func NewEmailReportSender(cfg EmailConfig, log *logger.Logger) *EmailReportSender {
	return &EmailReportSender{cfg: cfg, log: log}
}

func (s *EmailReportSender) SendReport(ctx context.Context, recipients []string, subject string, body []byte, format string) error {
	if s.cfg.SMTPHost == "" {
		return fmt.Errorf("report sender has no SMTP host configured")
	}
	if len(recipients) == 0 {
		return fmt.Errorf("report has no recipients")
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.cfg.FromEmail)
	m.SetHeader("To", recipients...)
	m.SetHeader("Subject", subject)

	switch format {
	case models.ReportFormatHTML:
		m.SetBody("text/html", string(body))
	case models.ReportFormatCSV:
		m.SetBody("text/plain", "The report is attached.")
		m.Attach("report.csv", gomail.SetCopyFunc(copyBytes(body)))
	case models.ReportFormatExcel:
		m.SetBody("text/plain", "The report is attached.")
		m.Attach("report.xlsx", gomail.SetCopyFunc(copyBytes(body)))
	default:
		return fmt.Errorf("unknown report format %q", format)
	}

	d := gomail.NewDialer(s.cfg.SMTPHost, s.cfg.SMTPPort, s.cfg.SMTPUsername, s.cfg.SMTPPassword)
	if err := d.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send report email: %w", err)
	}
	return nil
}

func copyBytes(data []byte) func(io.Writer) error {
	return func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	}
}
