// -----------------------------------------------------------------------
// Delivery Service - composes the report email for each audit run
// Messages are written to an outbox directory; sending happens elsewhere
// -----------------------------------------------------------------------

package delivery

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/macrolens/internal/common"
	"github.com/ternarybob/macrolens/internal/models"
)

const defaultSubjectPrefix = "[macrolens]"

// Attachment is a file carried by the message
type Attachment struct {
	Filename    string
	ContentType string
	Content     []byte
}

// Content is the rendered report for one run
type Content struct {
	Text string // Markdown document, sent as the text/plain alternative
	HTML []byte
	PDF  []byte
}

// Service builds report emails and writes them to the outbox
type Service struct {
	config common.DeliveryConfig
	logger arbor.ILogger
	now    func() time.Time
}

// NewService creates a new delivery service
func NewService(cfg common.DeliveryConfig, logger arbor.ILogger) *Service {
	if cfg.SubjectPrefix == "" {
		cfg.SubjectPrefix = defaultSubjectPrefix
	}
	return &Service{
		config: cfg,
		logger: logger,
		now:    time.Now,
	}
}

// Enabled reports whether delivery artifacts should be produced
func (s *Service) Enabled() bool {
	return s.config.Enabled
}

// Subject returns the subject line for a run
func (s *Service) Subject(run *models.AuditRun) string {
	subject := fmt.Sprintf("%s Macro Dashboard %s", s.config.SubjectPrefix, run.EffectiveDate)
	switch run.Mode {
	case models.RunModeAB:
		subject += " (A/B Test)"
	case models.RunModeBenchmark:
		subject += fmt.Sprintf(" (Benchmark, %d models)", len(run.Narratives))
	}
	if !run.Completeness.Complete && len(run.Completeness.Missing) > 0 {
		subject += " (DATA INCOMPLETE)"
	}
	return subject
}

// BuildMessage composes a MIME message with text and HTML alternatives and the PDF attached.
func (s *Service) BuildMessage(run *models.AuditRun, content Content) ([]byte, error) {
	from, err := mail.ParseAddress(s.config.From)
	if err != nil {
		return nil, fmt.Errorf("invalid from address %q: %w", s.config.From, err)
	}
	if len(s.config.To) == 0 {
		return nil, fmt.Errorf("no recipients configured")
	}
	to := make([]*mail.Address, 0, len(s.config.To))
	for _, addr := range s.config.To {
		a, err := mail.ParseAddress(addr)
		if err != nil {
			return nil, fmt.Errorf("invalid recipient %q: %w", addr, err)
		}
		to = append(to, a)
	}

	var h mail.Header
	h.SetDate(s.now())
	h.SetAddressList("From", []*mail.Address{from})
	h.SetAddressList("To", to)
	h.SetSubject(s.Subject(run))
	h.Set("X-Macrolens-Run", run.ID)
	if err := h.GenerateMessageID(); err != nil {
		return nil, fmt.Errorf("failed to generate message id: %w", err)
	}

	var buf bytes.Buffer
	mw, err := mail.CreateWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("failed to create mail writer: %w", err)
	}

	iw, err := mw.CreateInline()
	if err != nil {
		return nil, fmt.Errorf("failed to create inline part: %w", err)
	}
	if err := writeInline(iw, "text/plain", []byte(content.Text)); err != nil {
		return nil, err
	}
	if len(content.HTML) > 0 {
		if err := writeInline(iw, "text/html", content.HTML); err != nil {
			return nil, err
		}
	}
	if err := iw.Close(); err != nil {
		return nil, fmt.Errorf("failed to close inline part: %w", err)
	}

	if len(content.PDF) > 0 {
		att := Attachment{
			Filename:    fmt.Sprintf("macro_%s.pdf", run.EffectiveDate),
			ContentType: "application/pdf",
			Content:     content.PDF,
		}
		if err := writeAttachment(mw, att); err != nil {
			return nil, err
		}
	}

	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to close message: %w", err)
	}
	return buf.Bytes(), nil
}

func writeInline(iw *mail.InlineWriter, contentType string, body []byte) error {
	var ph mail.InlineHeader
	ph.SetContentType(contentType, map[string]string{"charset": "utf-8"})
	w, err := iw.CreatePart(ph)
	if err != nil {
		return fmt.Errorf("failed to create %s part: %w", contentType, err)
	}
	if _, err := w.Write(body); err != nil {
		return fmt.Errorf("failed to write %s part: %w", contentType, err)
	}
	return w.Close()
}

func writeAttachment(mw *mail.Writer, att Attachment) error {
	var ah mail.AttachmentHeader
	ah.SetContentType(att.ContentType, nil)
	ah.SetFilename(att.Filename)
	w, err := mw.CreateAttachment(ah)
	if err != nil {
		return fmt.Errorf("failed to create attachment %s: %w", att.Filename, err)
	}
	if _, err := io.Copy(w, bytes.NewReader(att.Content)); err != nil {
		return fmt.Errorf("failed to write attachment %s: %w", att.Filename, err)
	}
	return w.Close()
}

// WriteOutbox writes a composed message to the outbox directory as .eml and returns its path.
func (s *Service) WriteOutbox(run *models.AuditRun, msg []byte) (string, error) {
	dir := s.config.OutboxDir
	if dir == "" {
		return "", fmt.Errorf("outbox directory not configured")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create outbox: %w", err)
	}

	name := fmt.Sprintf("%s_%s.eml", run.EffectiveDate, strings.ReplaceAll(run.ID, string(filepath.Separator), "_"))
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, msg, 0644); err != nil {
		return "", fmt.Errorf("failed to write outbox message: %w", err)
	}
	return path, nil
}

// Deliver builds the message and writes it to the outbox.
// It returns an empty path without error when delivery is disabled.
func (s *Service) Deliver(run *models.AuditRun, content Content) (string, error) {
	if !s.config.Enabled {
		s.logger.Debug().Str("run_id", run.ID).Msg("Delivery disabled, skipping outbox")
		return "", nil
	}

	msg, err := s.BuildMessage(run, content)
	if err != nil {
		return "", err
	}
	path, err := s.WriteOutbox(run, msg)
	if err != nil {
		return "", err
	}

	s.logger.Info().
		Str("run_id", run.ID).
		Str("path", path).
		Int("recipients", len(s.config.To)).
		Int("size", len(msg)).
		Msg("Report email written to outbox")
	return path, nil
}
