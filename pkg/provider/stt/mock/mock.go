// Package mock provides test doubles for the stt package interfaces.
//
// Use Provider to verify that the caller starts streams with the expected
// StreamConfig. Use Stream to feed controlled Fragment values and inspect
// which audio chunks were delivered.
//
// Example:
//
//	s := &mock.Stream{
//	    PartialsCh: make(chan stt.Fragment, 1),
//	    FinalsCh:   make(chan stt.Fragment, 1),
//	}
//	p := &mock.Provider{Stream: s}
//	stream, _ := p.StartStream(ctx, cfg)
package mock

import (
	"context"
	"sync"

	"github.com/hyunw00/lectern/pkg/provider/stt"
)

// StartStreamCall records a single invocation of Provider.StartStream.
type StartStreamCall struct {
	// Ctx is the context passed to StartStream.
	Ctx context.Context
	// Cfg is the StreamConfig passed to StartStream.
	Cfg stt.StreamConfig
}

// Provider is a mock implementation of stt.Provider.
type Provider struct {
	mu sync.Mutex

	// Stream is the Stream returned by StartStream. If nil, StartStream
	// returns a new default Stream with buffered channels.
	Stream stt.Stream

	// StartStreamErr, if non-nil, is returned as the error from StartStream.
	StartStreamErr error

	// StartStreamCalls records every call to StartStream.
	StartStreamCalls []StartStreamCall
}

// StartStream records the call and returns Stream, StartStreamErr.
func (p *Provider) StartStream(ctx context.Context, cfg stt.StreamConfig) (stt.Stream, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.StartStreamCalls = append(p.StartStreamCalls, StartStreamCall{Ctx: ctx, Cfg: cfg})
	if p.StartStreamErr != nil {
		return nil, p.StartStreamErr
	}
	if p.Stream != nil {
		return p.Stream, nil
	}
	return &Stream{
		PartialsCh: make(chan stt.Fragment, 16),
		FinalsCh:   make(chan stt.Fragment, 16),
	}, nil
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.StartStreamCalls = nil
}

// Ensure Provider implements stt.Provider at compile time.
var _ stt.Provider = (*Provider)(nil)

// SendAudioCall records a single invocation of Stream.SendAudio.
type SendAudioCall struct {
	// Chunk is a copy of the audio bytes that were passed to SendAudio.
	Chunk []byte
}

// Stream is a mock implementation of stt.Stream.
// Callers should pre-populate PartialsCh and FinalsCh with the Fragment values
// they want the consumer to receive, then close them when done.
type Stream struct {
	mu sync.Mutex

	// PartialsCh is the channel returned by Partials(). Callers own this
	// channel and are responsible for sending to and closing it in tests.
	PartialsCh chan stt.Fragment

	// FinalsCh is the channel returned by Finals(). Callers own this channel.
	FinalsCh chan stt.Fragment

	// SendAudioErr, if non-nil, is returned by every SendAudio call.
	SendAudioErr error

	// CloseErr, if non-nil, is returned by Close.
	CloseErr error

	// --- Call records ---

	// SendAudioCalls records every call to SendAudio in order.
	SendAudioCalls []SendAudioCall

	// CloseCallCount is the number of times Close was called.
	CloseCallCount int
}

// SendAudio records the call and returns SendAudioErr.
func (s *Stream) SendAudio(chunk []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(chunk))
	copy(cp, chunk)
	s.SendAudioCalls = append(s.SendAudioCalls, SendAudioCall{Chunk: cp})
	return s.SendAudioErr
}

// Partials returns PartialsCh. The caller must have initialised PartialsCh
// before calling this method.
func (s *Stream) Partials() <-chan stt.Fragment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.PartialsCh
}

// Finals returns FinalsCh.
func (s *Stream) Finals() <-chan stt.Fragment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.FinalsCh
}

// SendAudioCallCount returns the number of SendAudio calls. Thread-safe.
func (s *Stream) SendAudioCallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.SendAudioCalls)
}

// Close records the call and returns CloseErr.
func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CloseCallCount++
	return s.CloseErr
}

// ResetCalls clears all recorded calls. Thread-safe.
func (s *Stream) ResetCalls() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SendAudioCalls = nil
	s.CloseCallCount = 0
}

// Ensure Stream implements stt.Stream at compile time.
var _ stt.Stream = (*Stream)(nil)
