package memory

import "time"

// Speaker identifies which side of the conversation produced a transcript
// record.
type Speaker string

const (
	SpeakerUser      Speaker = "user"
	SpeakerAssistant Speaker = "assistant"
)

// GroundingSource is a web or maps citation attached to an assistant turn when
// search grounding is enabled.
type GroundingSource struct {
	// Title is the human-readable title of the source page or place.
	Title string

	// URI links to the source.
	URI string
}

// TranscriptRecord is one finalized conversation turn. Records are written by
// the turn aggregator when the model signals turn completion, never from
// partial streaming deltas.
type TranscriptRecord struct {
	// ID uniquely identifies the record (a UUID).
	ID string

	// Speaker is who produced the turn.
	Speaker Speaker

	// Text is the full turn text, accumulated from streamed fragments.
	Text string

	// Timestamp is when the turn was finalized.
	Timestamp time.Time

	// Sources are grounding citations for assistant turns. Empty for user
	// turns and for assistant turns without grounding.
	Sources []GroundingSource
}

// Fact is a single piece of long-term knowledge saved on the model's behalf
// through the save_knowledge tool.
type Fact struct {
	// ID uniquely identifies the fact (a UUID).
	ID string

	// Text is the fact itself, phrased by the model.
	Text string

	// Timestamp is when the fact was saved.
	Timestamp time.Time
}
