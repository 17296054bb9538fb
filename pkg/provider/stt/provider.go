// Package stt defines the Provider interface for Speech-to-Text backends.
//
// An STT provider wraps a real-time transcription service (e.g., Deepgram or
// Google Speech-to-Text) and exposes a uniform streaming interface. The
// central abstraction is Stream: once opened, a stream accepts raw PCM audio
// frames and emits two channels of Fragment values, low-latency partials for
// responsiveness and authoritative finals for the note pipeline.
//
// Implementations must be safe for concurrent use. Audio input and fragment
// output channels are goroutine-safe by construction.
package stt

import "context"

// StreamConfig describes the audio format and recognition hints for a new
// STT stream. All fields must be compatible with what the underlying provider
// supports; see each provider's documentation for valid ranges.
type StreamConfig struct {
	// SampleRate is the audio sample rate in Hz. 16000 is the usual value for
	// STT-optimised mono capture.
	SampleRate int

	// Channels is the number of audio channels. 1 = mono (required by most
	// STT providers).
	Channels int

	// Language is the BCP-47 language tag for recognition (e.g., "ko", "en-US").
	// An empty string lets the provider auto-detect the language, if supported.
	Language string

	// Keywords is a list of vocabulary hints that increase recognition
	// probability for uncommon words such as lecture-specific terminology.
	Keywords []KeywordBoost
}

// Stream represents an open STT streaming session. It is an interface so that
// test code can provide mock implementations without a live provider
// connection.
//
// Callers must call Close when the stream is no longer needed. Failing to do
// so may leak goroutines and network connections inside the provider
// implementation. All methods must be safe for concurrent use.
type Stream interface {
	// SendAudio delivers a chunk of raw PCM audio bytes to the provider for
	// transcription. The chunk must match the SampleRate, Channels, and
	// bit-depth agreed in StreamConfig. Calling SendAudio after Close returns
	// an error.
	SendAudio(chunk []byte) error

	// Partials returns a read-only channel that emits low-latency interim
	// Fragment values as the provider makes preliminary guesses. These are
	// suitable for driving UI indicators but must not be fed to the note
	// pipeline. The channel is closed when the stream ends.
	Partials() <-chan Fragment

	// Finals returns a read-only channel that emits authoritative Fragment
	// values once the provider has committed to a recognition result. These
	// are the values the note pipeline consumes. The channel is closed when
	// the stream ends.
	Finals() <-chan Fragment

	// Close terminates the stream, flushes any pending audio, and releases
	// all associated resources. After Close returns, the Partials and Finals
	// channels will be closed. Calling Close more than once is safe and
	// returns nil.
	Close() error
}

// Provider is the abstraction over any STT backend.
//
// Implementations must be safe for concurrent use.
type Provider interface {
	// StartStream opens a new streaming transcription session with the given
	// audio format and recognition configuration. The returned Stream is
	// ready to accept audio immediately.
	//
	// Returns an error if the provider cannot establish the session (e.g.,
	// authentication failure, unsupported configuration, or ctx already
	// cancelled). The caller owns the Stream and must call Close when done.
	StartStream(ctx context.Context, cfg StreamConfig) (Stream, error)
}
