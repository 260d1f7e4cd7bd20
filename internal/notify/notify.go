// package notify emails the administrator the outcome of a sync run.
package notify

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	htmltemplate "html/template"
	"io"
	"strings"
	"text/template"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/rostersync/internal/formatter"
	"github.com/desertthunder/rostersync/internal/models"
	"github.com/desertthunder/rostersync/internal/services"
	"github.com/desertthunder/rostersync/internal/shared"
)

const (
	subjectPrefix     = "[MonClub-Brevo Sync]"
	SuccessSubject    = subjectPrefix + " Sync Completed Successfully"
	defaultSenderName = "MonClub-Brevo Sync"
	timeLayout        = "2006-01-02 15:04:05"
)

//go:embed templates/*.tmpl
var templateFiles embed.FS

var funcs = map[string]any{
	"rule":     func() string { return strings.Repeat("=", 60) },
	"problems": problems,
}

var (
	textTemplate = template.Must(template.New("run.txt.tmpl").Funcs(funcs).ParseFS(templateFiles, "templates/run.txt.tmpl"))
	htmlTemplate = htmltemplate.Must(htmltemplate.New("run.html.tmpl").Funcs(funcs).ParseFS(templateFiles, "templates/run.html.tmpl"))
)

// Notifier sends run results through a [services.Mailer].
type Notifier struct {
	mailer services.Mailer
	cfg    shared.NotifyConfig
	logger *log.Logger
}

// New creates a notifier. A nil logger discards output.
func New(mailer services.Mailer, cfg shared.NotifyConfig, logger *log.Logger) *Notifier {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Notifier{mailer: mailer, cfg: cfg, logger: logger}
}

// Configured reports whether both the admin and sender addresses are set.
func (n *Notifier) Configured() bool {
	return strings.TrimSpace(n.cfg.AdminEmail) != "" && strings.TrimSpace(n.cfg.SenderEmail) != ""
}

// Notify emails the outcome of run and reports whether an email was sent.
//
// Missing addresses disable notification with a warning. With on_error_only, completed runs are not reported.
// A send failure is returned to the caller but never changes the run's outcome.
func (n *Notifier) Notify(ctx context.Context, run *models.SyncRun) (bool, error) {
	if !n.cfg.Enabled {
		n.logger.Debug("notifications disabled")
		return false, nil
	}
	if !n.Configured() {
		n.logger.Warn("email notification not configured", "required", "ADMIN_EMAIL, BREVO_SENDER_EMAIL")
		return false, nil
	}
	if run.Status() == models.RunCompleted && n.cfg.OnErrorOnly {
		n.logger.Info("email notification skipped", "reason", "on_error_only")
		return false, nil
	}

	msg, err := BuildMessage(run, n.cfg)
	if err != nil {
		return false, err
	}

	if err := n.mailer.SendEmail(ctx, msg); err != nil {
		return false, fmt.Errorf("failed to send sync results email: %w", err)
	}

	n.logger.Info("sync results email sent", "to", n.cfg.AdminEmail, "subject", msg.Subject)
	return true, nil
}

// Subject returns the email subject for a run.
func Subject(run *models.SyncRun) string {
	if run.Status() == models.RunCompleted {
		return SuccessSubject
	}
	errType := run.ErrorType()
	if errType == "" {
		errType = "Error"
	}
	return fmt.Sprintf("%s Sync Failed: %s", subjectPrefix, errType)
}

// BuildMessage renders the email for a run.
func BuildMessage(run *models.SyncRun, cfg shared.NotifyConfig) (services.EmailMessage, error) {
	data := newMessageData(run)

	var text, html bytes.Buffer
	if err := textTemplate.Execute(&text, data); err != nil {
		return services.EmailMessage{}, fmt.Errorf("failed to render text body: %w", err)
	}
	if err := htmlTemplate.Execute(&html, data); err != nil {
		return services.EmailMessage{}, fmt.Errorf("failed to render html body: %w", err)
	}

	senderName := cfg.SenderName
	if senderName == "" {
		senderName = defaultSenderName
	}

	return services.EmailMessage{
		SenderName:  senderName,
		SenderEmail: cfg.SenderEmail,
		To:          []string{cfg.AdminEmail},
		Subject:     Subject(run),
		Text:        text.String(),
		HTML:        html.String(),
	}, nil
}

type messageData struct {
	Success      bool
	ErrorType    string
	ErrorMessage string
	Started      string
	Finished     string
	Duration     string
	HasSummary   bool
	Summary      models.SyncSummary
	Reports      []string
	Lists        []models.ReconciliationReport
}

func newMessageData(run *models.SyncRun) messageData {
	d := messageData{
		Success:      run.Status() == models.RunCompleted,
		ErrorType:    run.ErrorType(),
		ErrorMessage: run.ErrorMessage(),
		Started:      "N/A",
		Finished:     "N/A",
		Duration:     "N/A",
		Summary:      run.Summary(),
		Lists:        run.Reports(),
	}
	if !run.StartedAt().IsZero() {
		d.Started = run.StartedAt().Format(timeLayout)
	}
	if run.FinishedAt() != nil {
		d.Finished = run.FinishedAt().Format(timeLayout)
		d.Duration = formatter.FormatDuration(run.Duration())
	}
	d.HasSummary = d.Success || len(run.Reports()) > 0

	for _, r := range run.Reports() {
		d.Reports = append(d.Reports, formatter.ReportLine(r))
	}
	return d
}

func problems(r models.ReconciliationReport) string {
	if r.Error != "" {
		return r.Error
	}

	var parts []string
	if r.UpsertsFailed > 0 {
		parts = append(parts, fmt.Sprintf("%d contacts not upserted", r.UpsertsFailed))
	}
	if r.AddBatchesFailed > 0 {
		parts = append(parts, fmt.Sprintf("%d add batches failed", r.AddBatchesFailed))
	}
	if r.RemoveBatchesFailed > 0 {
		parts = append(parts, fmt.Sprintf("%d remove batches failed", r.RemoveBatchesFailed))
	}
	return strings.Join(parts, ", ")
}
