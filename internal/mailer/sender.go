package mailer

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// Message is one email to one recipient.
type Message struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

// Sender delivers email.
type Sender interface {
	SendEmail(ctx context.Context, msg Message) error
}

var ErrInvalidMessage = errors.New("mailer: message requires to, subject and a body")

func (m Message) validate() error {
	if m.To == "" || m.Subject == "" || (m.HTML == "" && m.Text == "") {
		return ErrInvalidMessage
	}
	return nil
}

// LogSender writes messages to the log instead of sending them. It is used
// when no SMTP host is configured.
type LogSender struct {
	log *slog.Logger
}

func NewLogSender(log *slog.Logger) *LogSender {
	if log == nil {
		log = slog.Default()
	}
	return &LogSender{log: log}
}

func (s *LogSender) SendEmail(ctx context.Context, msg Message) error {
	if err := msg.validate(); err != nil {
		return err
	}
	s.log.InfoContext(ctx, "email not sent (smtp disabled)", "to", msg.To, "subject", msg.Subject)
	return nil
}

// MemorySender keeps sent messages for tests.
type MemorySender struct {
	mu   sync.Mutex
	sent []Message

	// Err, when set, is returned for every send.
	Err error
}

func (s *MemorySender) SendEmail(ctx context.Context, msg Message) error {
	if err := msg.validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.sent = append(s.sent, msg)
	return nil
}

func (s *MemorySender) Sent() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.sent))
	copy(out, s.sent)
	return out
}
