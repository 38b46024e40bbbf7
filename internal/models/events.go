package models

// Event types published for each invocation.
const (
	EventSegmentTranscribed     = "call.transcript.segment"
	EventTranscriptionCompleted = "call.transcript.completed"
)

// SegmentTranscribed is published once per emitted segment.
type SegmentTranscribed struct {
	EventType    string  `json:"eventType"`
	InvocationID string  `json:"invocationId"`
	Source       string  `json:"source"`
	Timestamp    int64   `json:"timestamp"`
	SegmentID    string  `json:"segmentId"`
	Speaker      Speaker `json:"speaker"`
	Text         string  `json:"text"`
	StartTime    float64 `json:"startTime"`
	EndTime      float64 `json:"endTime"`
	Confidence   float64 `json:"confidence"`
}

// TranscriptionCompleted is published once per invocation, success or not.
type TranscriptionCompleted struct {
	EventType     string   `json:"eventType"`
	InvocationID  string   `json:"invocationId"`
	Source        string   `json:"source"`
	Timestamp     int64    `json:"timestamp"`
	Engine        string   `json:"engine"`
	Success       bool     `json:"success"`
	Placeholder   bool     `json:"placeholder"`
	Duration      float64  `json:"duration"`
	SegmentCount  int      `json:"segmentCount"`
	Sentiment     float64  `json:"sentiment"`
	CriticalWords []string `json:"criticalWords"`
	Topics        []string `json:"topics"`
	Error         string   `json:"error,omitempty"`
}

// NewSegmentTranscribed builds the event for one segment.
func NewSegmentTranscribed(invocationID, source string, ts int64, seg Segment) SegmentTranscribed {
	return SegmentTranscribed{
		EventType:    EventSegmentTranscribed,
		InvocationID: invocationID,
		Source:       source,
		Timestamp:    ts,
		SegmentID:    seg.ID,
		Speaker:      seg.Speaker,
		Text:         seg.Text,
		StartTime:    seg.StartTime,
		EndTime:      seg.EndTime,
		Confidence:   seg.Confidence,
	}
}

// NewTranscriptionCompleted builds the completion event for a result.
func NewTranscriptionCompleted(invocationID, source string, ts int64, r *TranscriptionResult) TranscriptionCompleted {
	return TranscriptionCompleted{
		EventType:     EventTranscriptionCompleted,
		InvocationID:  invocationID,
		Source:        source,
		Timestamp:     ts,
		Engine:        r.Engine,
		Success:       r.Success,
		Placeholder:   r.Placeholder,
		Duration:      r.Duration,
		SegmentCount:  len(r.Segments),
		Sentiment:     r.Analysis.Sentiment,
		CriticalWords: r.Analysis.CriticalWords,
		Topics:        r.Analysis.Topics,
		Error:         r.Error,
	}
}
