package store

import (
	"time"
)

// WorkflowStatus is the single monotonic status an episode moves through.
// Values are ordered; the workflow manager only ever advances an episode by
// one step per successful stage, never backwards except via explicit resets.
type WorkflowStatus int

const (
	StatusInit WorkflowStatus = iota
	StatusDownloaded
	StatusTranscribed
	StatusProofread
	StatusSegmented
	StatusTranslated
	StatusReadyForReview
	StatusApproved
	StatusPublished
)

var workflowLabels = map[WorkflowStatus]string{
	StatusInit:           "init",
	StatusDownloaded:     "downloaded",
	StatusTranscribed:    "transcribed",
	StatusProofread:      "proofread",
	StatusSegmented:      "segmented",
	StatusTranslated:     "translated",
	StatusReadyForReview: "ready_for_review",
	StatusApproved:       "approved",
	StatusPublished:      "published",
}

func (s WorkflowStatus) String() string {
	if label, ok := workflowLabels[s]; ok {
		return label
	}
	return "unknown"
}

// Next returns the status one step forward. Published has no successor.
func (s WorkflowStatus) Next() (WorkflowStatus, bool) {
	if s < StatusInit || s >= StatusPublished {
		return s, false
	}
	return s + 1, true
}

// Terminal reports whether the workflow has nothing left to do.
func (s WorkflowStatus) Terminal() bool {
	return s == StatusPublished
}

// UnitStatus is the lifecycle of a retryable work unit (segment, translation).
type UnitStatus string

const (
	UnitPending    UnitStatus = "pending"
	UnitProcessing UnitStatus = "processing"
	UnitCompleted  UnitStatus = "completed"
	UnitFailed     UnitStatus = "failed"
)

// Episode is the top-level entity owning a workflow status.
type Episode struct {
	ID              int64
	Title           string
	ShowName        string
	SourceURL       string
	SourceHash      string
	AudioPath       string
	DurationSeconds float64
	Language        string
	WorkflowStatus  WorkflowStatus
	ErrorMessage    string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Segment is a virtual audio slice of an episode. Start and end are absolute
// seconds from the start of the episode; StartTime is the immutable ordering
// key. SlicePath points at the extracted audio file while a transcription
// attempt is in flight and is retained on failure so retries can reuse it.
type Segment struct {
	ID           int64
	EpisodeID    int64
	StartTime    float64
	EndTime      float64
	Status       UnitStatus
	ErrorMessage string
	RetryCount   int
	SlicePath    string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// SegmentSpec describes a segment to create during transcription prepare.
type SegmentSpec struct {
	StartTime float64
	EndTime   float64
}

// Cue is one transcript line with absolute timing.
type Cue struct {
	ID            int64
	EpisodeID     int64
	SegmentID     int64
	ChapterID     int64
	StartTime     float64
	EndTime       float64
	Speaker       string
	Text          string
	CorrectedText string
	IsCorrected   bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// EffectiveText returns the proofread text when present, the raw transcript
// otherwise.
func (c *Cue) EffectiveText() string {
	if c.IsCorrected && c.CorrectedText != "" {
		return c.CorrectedText
	}
	return c.Text
}

// CueDraft is a transcript line produced by the transcription collaborator,
// already converted to absolute offsets.
type CueDraft struct {
	StartTime float64
	EndTime   float64
	Speaker   string
	Text      string
}

// Translation is the per-(cue, language) record carrying the dual-text model:
// OriginalText is written once on first successful generation and never
// changed afterwards; CurrentText is the live value and IsEdited flips to true
// the first time a human edit diverges the two. IsEdited never resets.
type Translation struct {
	ID           int64
	CueID        int64
	Language     string
	OriginalText string
	CurrentText  string
	IsEdited     bool
	Status       UnitStatus
	ErrorMessage string
	RetryCount   int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TranslationUnit pairs a pending translation with its cue so stage handlers
// can build prompts without a second lookup.
type TranslationUnit struct {
	Translation Translation
	Cue         Cue
}

// Chapter groups cues into a semantic section of the episode.
type Chapter struct {
	ID           int64
	EpisodeID    int64
	ChapterIndex int
	Title        string
	Summary      string
	StartTime    float64
	EndTime      float64
}

// ChapterDraft describes a chapter to persist during the chaptering stage.
type ChapterDraft struct {
	Title     string
	Summary   string
	StartTime float64
	EndTime   float64
}

// Publication records the outcome of delivering an episode to one target.
type Publication struct {
	ID          int64
	EpisodeID   int64
	Target      string
	Status      string
	Detail      string
	PublishedAt time.Time
}
