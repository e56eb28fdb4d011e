package llm

import (
	"context"

	"github.com/Geldren1/nato-website-2/internal/interfaces"
)

// InstrumentedService reports every backend call to a RunRecorder
type InstrumentedService struct {
	inner    interfaces.LLMService
	recorder interfaces.RunRecorder
}

var _ interfaces.LLMService = (*InstrumentedService)(nil)

// NewInstrumentedService wraps inner. A nil inner stays nil so callers keep
// their pattern-only fallback.
func NewInstrumentedService(inner interfaces.LLMService, recorder interfaces.RunRecorder) interfaces.LLMService {
	if inner == nil {
		return nil
	}
	if recorder == nil {
		return inner
	}
	return &InstrumentedService{inner: inner, recorder: recorder}
}

func (s *InstrumentedService) Chat(ctx context.Context, messages []interfaces.Message, opts interfaces.ChatOptions) (string, error) {
	text, err := s.inner.Chat(ctx, messages, opts)
	s.recorder.ObserveBackendCall(s.inner.Name(), err == nil)
	return text, err
}

func (s *InstrumentedService) Name() string {
	return s.inner.Name()
}

func (s *InstrumentedService) Close() error {
	return s.inner.Close()
}
