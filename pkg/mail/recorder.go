package mail

import (
	"context"
	"sync"
)

// Recorder is an in-memory Mailer that keeps every accepted message.
type Recorder struct {
	mu       sync.Mutex
	messages []Message
	// FailFor makes Send return the mapped error when any recipient matches.
	FailFor map[string]error
}

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{FailFor: make(map[string]error)}
}

// Send records msg unless a recipient is configured to fail.
func (r *Recorder) Send(ctx context.Context, msg Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, rcpt := range msg.To {
		if err, ok := r.FailFor[rcpt]; ok {
			return err
		}
	}
	msg.To = append([]string(nil), msg.To...)
	r.messages = append(r.messages, msg)
	return nil
}

// Messages returns a copy of the recorded messages.
func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Message, len(r.messages))
	copy(out, r.messages)
	return out
}

// SentTo returns the recorded messages addressed to rcpt.
func (r *Recorder) SentTo(rcpt string) []Message {
	var out []Message
	for _, msg := range r.Messages() {
		for _, to := range msg.To {
			if to == rcpt {
				out = append(out, msg)
				break
			}
		}
	}
	return out
}

// WithTemplate returns the recorded messages produced by template.
func (r *Recorder) WithTemplate(template string) []Message {
	var out []Message
	for _, msg := range r.Messages() {
		if msg.Template == template {
			out = append(out, msg)
		}
	}
	return out
}

// Reset drops all recorded messages.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = nil
}
