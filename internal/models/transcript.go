// Package models defines the transcription result and the events derived from it.
package models

import (
	"encoding/json"
	"fmt"
)

// Speaker identifies who is talking in a segment.
type Speaker int

const (
	SpeakerUnknown Speaker = iota
	SpeakerAgent
	SpeakerClient
	SpeakerSystem
)

// String returns the wire name of the speaker.
func (s Speaker) String() string {
	switch s {
	case SpeakerAgent:
		return "agent"
	case SpeakerClient:
		return "client"
	case SpeakerSystem:
		return "system"
	default:
		return "unknown"
	}
}

// MarshalJSON encodes the speaker as its wire name.
func (s Speaker) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON decodes a wire name.
func (s *Speaker) UnmarshalJSON(b []byte) error {
	var name string
	if err := json.Unmarshal(b, &name); err != nil {
		return err
	}
	switch name {
	case "agent":
		*s = SpeakerAgent
	case "client":
		*s = SpeakerClient
	case "system":
		*s = SpeakerSystem
	case "unknown", "":
		*s = SpeakerUnknown
	default:
		return fmt.Errorf("unknown speaker %q", name)
	}
	return nil
}

// Segment is one time-stamped, speaker-attributed piece of the transcript.
type Segment struct {
	ID            string   `json:"id"`
	Speaker       Speaker  `json:"speaker"`
	Text          string   `json:"text"`
	StartTime     float64  `json:"startTime"`
	EndTime       float64  `json:"endTime"`
	Confidence    float64  `json:"confidence"`
	CriticalWords []string `json:"criticalWords"`
}

// ContentAnalysis holds the signals derived from the merged transcript.
type ContentAnalysis struct {
	Sentiment       float64  `json:"sentiment"`
	CriticalWords   []string `json:"criticalWords"`
	Topics          []string `json:"topics"`
	Recommendations []string `json:"recommendations"`
}

// TranscriptionResult is the single artifact produced by one invocation.
type TranscriptionResult struct {
	Text        string          `json:"text"`
	Segments    []Segment       `json:"segments"`
	Duration    float64         `json:"duration"`
	Success     bool            `json:"success"`
	Engine      string          `json:"engine"`
	Placeholder bool            `json:"placeholder"`
	Error       string          `json:"error,omitempty"`
	Analysis    ContentAnalysis `json:"analysis"`
}

// Failed builds the result reported when the pipeline aborts. The caller
// supplies the degraded analysis.
func Failed(engine string, err error, a ContentAnalysis) *TranscriptionResult {
	return &TranscriptionResult{
		Segments: []Segment{},
		Engine:   engine,
		Error:    err.Error(),
		Analysis: a,
	}
}
