package events

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
)

// ErrOutboxClosed is returned by Drain once the outbox is closed and empty.
var ErrOutboxClosed = errors.New("outbox closed")

// Outbox is an unbounded FIFO Sink. Producers never block; a single consumer
// delivers messages with Drain. Messages pushed after Close are dropped.
type Outbox struct {
	mu     sync.Mutex
	queue  []Message
	notify chan struct{}
	closed bool
}

// NewOutbox creates an empty outbox.
func NewOutbox() *Outbox {
	return &Outbox{notify: make(chan struct{}, 1)}
}

// Push enqueues m.
func (o *Outbox) Push(m Message) {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.queue = append(o.queue, m)
	o.mu.Unlock()

	select {
	case o.notify <- struct{}{}:
	default:
	}
}

func (o *Outbox) Status(msg string) { o.Push(StatusMessage(msg)) }
func (o *Outbox) Media(r Resolved) { o.Push(MediaMessage(r)) }
func (o *Outbox) Error(msg string) { o.Push(ErrorMessage(msg)) }

// Len returns the number of undelivered messages.
func (o *Outbox) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.queue)
}

// Close stops accepting messages. Messages already queued are still delivered.
func (o *Outbox) Close() {
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()

	select {
	case o.notify <- struct{}{}:
	default:
	}
}

func (o *Outbox) take() ([]Message, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	batch := o.queue
	o.queue = nil
	return batch, o.closed
}

// Drain delivers messages to send in order until ctx is done, send fails, or the
// outbox is closed and empty (ErrOutboxClosed).
func (o *Outbox) Drain(ctx context.Context, send func(Message) error) error {
	for {
		batch, closed := o.take()
		for _, m := range batch {
			if err := send(m); err != nil {
				return err
			}
		}
		if len(batch) > 0 {
			continue
		}
		if closed {
			return ErrOutboxClosed
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-o.notify:
		}
	}
}

// Recorder is a Sink that keeps every message, for tests and one-shot callers.
type Recorder struct {
	mu       sync.Mutex
	messages []Message
}

func (r *Recorder) record(m Message) {
	r.mu.Lock()
	r.messages = append(r.messages, m)
	r.mu.Unlock()
}

func (r *Recorder) Status(msg string) { r.record(StatusMessage(msg)) }
func (r *Recorder) Media(res Resolved) { r.record(MediaMessage(res)) }
func (r *Recorder) Error(msg string) { r.record(ErrorMessage(msg)) }

// Messages returns a copy of everything recorded so far.
func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.messages...)
}

// Actions returns the action of each recorded message.
func (r *Recorder) Actions() []Action {
	msgs := r.Messages()
	out := make([]Action, len(msgs))
	for i, m := range msgs {
		out[i] = m.Action
	}
	return out
}

// Errors returns the text of every error message.
func (r *Recorder) Errors() []string {
	var out []string
	for _, m := range r.Messages() {
		if m.Action == ActionError {
			out = append(out, m.Message)
		}
	}
	return out
}

// WriterSink writes each message as one JSON line.
type WriterSink struct {
	mu  sync.Mutex
	enc *json.Encoder
	err error
}

// NewWriterSink creates a WriterSink on w.
func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{enc: json.NewEncoder(w)}
}

func (s *WriterSink) write(m Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return
	}
	s.err = s.enc.Encode(m)
}

func (s *WriterSink) Status(msg string) { s.write(StatusMessage(msg)) }
func (s *WriterSink) Media(r Resolved) { s.write(MediaMessage(r)) }
func (s *WriterSink) Error(msg string) { s.write(ErrorMessage(msg)) }

// Err returns the first write error, if any.
func (s *WriterSink) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}
