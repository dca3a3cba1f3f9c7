package model

import (
	"time"

	"tone-curve-agent/internal/tone"
)

type SessionState string

const (
	StateIdle       SessionState = "idle"
	StateEditing    SessionState = "editing"
	StatePreviewing SessionState = "previewing"
	StateCommitted  SessionState = "committed"
)

const (
	EventSessionOpened  = "session.opened"
	EventSessionClosed  = "session.closed"
	EventCurveChanged   = "curve.changed"
	EventCurveReset     = "curve.reset"
	EventPreviewToggled = "preview.toggled"
	EventPreviewFrame   = "preview.frame"
	EventGammaChanged   = "gamma.changed"
)

type Session struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id"`
	Width     int             `json:"width"`
	Height    int             `json:"height"`
	Format    string          `json:"format"`
	Curve     tone.CurveState `json:"curve"`
	Mapping   Mapping         `json:"mapping"`
	Preview   bool            `json:"preview"`
	State     SessionState    `json:"state"`
	CreatedAt int64           `json:"created_at_unix_ms"`
	UpdatedAt int64           `json:"updated_at_unix_ms"`
}

type Mapping struct {
	Slope     float64 `json:"slope"`
	Intercept float64 `json:"intercept"`
	Step      bool    `json:"step"`
}

type CurveEdit struct {
	Point string `json:"point"`
	Field string `json:"field"`
	Value int    `json:"value"`
}

type EditResult struct {
	Accepted bool            `json:"accepted"`
	Curve    tone.CurveState `json:"curve"`
	Mapping  Mapping         `json:"mapping"`
	State    SessionState    `json:"state"`
}

type ChannelCounts struct {
	R []uint64 `json:"r"`
	G []uint64 `json:"g"`
	B []uint64 `json:"b"`
}

type ChannelBars struct {
	R []int `json:"r"`
	G []int `json:"g"`
	B []int `json:"b"`
}

type Histogram struct {
	SessionID string        `json:"session_id"`
	Pixels    uint64        `json:"pixels"`
	MaxCount  uint64        `json:"max_count"`
	Scale     int           `json:"scale"`
	Counts    ChannelCounts `json:"counts"`
	Bars      ChannelBars   `json:"bars"`
}

type PreviewFrame struct {
	SessionID string          `json:"session_id"`
	Width     int             `json:"width"`
	Height    int             `json:"height"`
	Curve     tone.CurveState `json:"curve"`
	DataURI   string          `json:"data_uri"`
	CreatedAt int64           `json:"created_at_unix_ms"`
}

// CommitRecord describes one output handed to the sink. Curves are not kept.
type CommitRecord struct {
	ID         string `json:"id"`
	SessionID  string `json:"session_id"`
	UserID     string `json:"user_id"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	Format     string `json:"format"`
	Bytes      int    `json:"bytes"`
	OutputPath string `json:"output_path"`
	CreatedAt  int64  `json:"created_at_unix_ms"`
}

type Commit struct {
	Record  CommitRecord `json:"record"`
	DataURI string       `json:"data_uri"`
}

type StoredState struct {
	Commits           []CommitRecord `json:"commits"`
	LastUpdatedUnixMS int64          `json:"last_updated_unix_ms"`
	CreatedAt         time.Time      `json:"created_at"`
}

type Event struct {
	Type      string      `json:"type"`
	Payload   interface{} `json:"payload"`
	CreatedAt int64       `json:"created_at_unix_ms"`
}
