package stt

import "time"

// Fragment is a single transcript fragment produced by an STT backend.
//
// SpokenAt and End are absolute wall-clock times: streaming providers report
// offsets relative to the start of the audio stream, and implementations
// anchor those offsets to the moment the stream was opened. Fragments may
// arrive out of order relative to SpokenAt; consumers that care about
// chronology must reorder them.
type Fragment struct {
	// Text is the recognized speech for this fragment.
	Text string

	// SpokenAt is when the speech in this fragment began.
	SpokenAt time.Time

	// End is when the speech in this fragment ended. Always >= SpokenAt.
	End time.Time

	// Final reports whether the provider has committed to this recognition
	// result. Interim fragments may be revised by later ones covering the
	// same audio.
	Final bool

	// Confidence is the provider's recognition confidence in [0, 1].
	// Providers that do not report confidence use 1.
	Confidence float64
}

// Duration returns the length of speech covered by the fragment.
func (f Fragment) Duration() time.Duration {
	return f.End.Sub(f.SpokenAt)
}

// KeywordBoost is a vocabulary hint that increases recognition probability
// for uncommon words such as course-specific technical terms.
type KeywordBoost struct {
	// Keyword is the word or short phrase to boost.
	Keyword string

	// Boost is the provider-specific boost intensity. For Deepgram this maps
	// to the keywords query parameter intensifier; typical values are 1-10.
	Boost float64
}
