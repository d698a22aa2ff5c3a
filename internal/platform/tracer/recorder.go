package tracer

import (
	"context"
	"sync"
)

// FinishedSpan is a span captured by Recorder.
type FinishedSpan struct {
	Name   string
	Attrs  map[string]any
	Events []string
	Err    error
}

// Recorder keeps every ended span in memory. Tests use it to assert what
// a rewrite or consent write reported.
type Recorder struct {
	mu    sync.Mutex
	spans []FinishedSpan
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Start(ctx context.Context, name string, attrs ...Attribute) (context.Context, Span) {
	s := &recordedSpan{r: r, span: FinishedSpan{Name: name, Attrs: map[string]any{}}}
	s.SetAttributes(attrs...)
	return ctx, s
}

// Spans returns a copy of the ended spans in end order.
func (r *Recorder) Spans() []FinishedSpan {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]FinishedSpan, len(r.spans))
	copy(out, r.spans)
	return out
}

// Named returns the ended spans called name.
func (r *Recorder) Named(name string) []FinishedSpan {
	var out []FinishedSpan
	for _, s := range r.Spans() {
		if s.Name == name {
			out = append(out, s)
		}
	}
	return out
}

type recordedSpan struct {
	r    *Recorder
	mu   sync.Mutex
	span FinishedSpan
}

func (s *recordedSpan) End(err error) {
	s.mu.Lock()
	s.span.Err = err
	done := s.span
	s.mu.Unlock()

	s.r.mu.Lock()
	s.r.spans = append(s.r.spans, done)
	s.r.mu.Unlock()
}

func (s *recordedSpan) SetAttributes(attrs ...Attribute) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range attrs {
		s.span.Attrs[a.Key] = a.Value
	}
}

func (s *recordedSpan) AddEvent(name string, _ ...Attribute) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.span.Events = append(s.span.Events, name)
}

var (
	_ Tracer = (*Recorder)(nil)
	_ Span   = (*recordedSpan)(nil)
)
