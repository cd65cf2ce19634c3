package importer

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Severity classifies an import message.
type Severity uint8

// Message severities.
const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
)

// String returns the severity name.
func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return "info"
	}
}

// Message is a recoverable problem reported during import.
type Message struct {
	Severity Severity
	Text     string
}

func (m Message) String() string {
	return fmt.Sprintf("[%s] %s", m.Severity, m.Text)
}

// MessageLog collects messages and mirrors them to a logger. It is safe for
// concurrent use.
type MessageLog struct {
	log  *zap.Logger
	msgs []Message
	mu   sync.Mutex
}

func newMessageLog(log *zap.Logger) *MessageLog {
	return &MessageLog{log: log}
}

// Add records a message.
func (l *MessageLog) Add(sev Severity, text string) {
	l.mu.Lock()
	l.msgs = append(l.msgs, Message{Severity: sev, Text: text})
	l.mu.Unlock()

	switch sev {
	case SeverityError:
		l.log.Error(text)
	case SeverityWarning:
		l.log.Warn(text)
	default:
		l.log.Info(text)
	}
}

// Warnf records a formatted warning.
func (l *MessageLog) Warnf(format string, args ...any) {
	l.Add(SeverityWarning, fmt.Sprintf(format, args...))
}

// Errorf records a formatted error.
func (l *MessageLog) Errorf(format string, args ...any) {
	l.Add(SeverityError, fmt.Sprintf(format, args...))
}

// Messages returns a copy of the recorded messages.
func (l *MessageLog) Messages() []Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Message(nil), l.msgs...)
}

// Count returns how many messages have severity sev.
func (l *MessageLog) Count(sev Severity) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, m := range l.msgs {
		if m.Severity == sev {
			n++
		}
	}
	return n
}
