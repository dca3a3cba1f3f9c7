package service

import (
	"sync"
	"time"

	"tone-curve-agent/internal/model"
	"tone-curve-agent/internal/tone"
)

// session is one image under edit. source, previewSrc and hist never
// change after Open; everything below mu is guarded by it, and mu is held
// across a whole edit so CurveState has a single writer.
type session struct {
	id         string
	userID     string
	format     string
	source     tone.PixelBuffer
	previewSrc tone.PixelBuffer
	hist       *tone.Histogram
	createdAt  time.Time

	mu        sync.Mutex
	curve     tone.CurveState
	previewOn bool
	state     model.SessionState
	updatedAt time.Time
}

func (s *session) touchLocked(now time.Time) {
	s.updatedAt = now
}

// settleLocked picks the state after an edit or reset.
func (s *session) settleLocked() {
	switch {
	case s.previewOn:
		s.state = model.StatePreviewing
	case s.curve.IsIdentity():
		s.state = model.StateIdle
	default:
		s.state = model.StateEditing
	}
}

func (s *session) viewLocked() model.Session {
	return model.Session{
		ID:        s.id,
		UserID:    s.userID,
		Width:     s.source.Width,
		Height:    s.source.Height,
		Format:    s.format,
		Curve:     s.curve,
		Mapping:   mappingView(s.curve),
		Preview:   s.previewOn,
		State:     s.state,
		CreatedAt: s.createdAt.UnixMilli(),
		UpdatedAt: s.updatedAt.UnixMilli(),
	}
}

func (s *session) editResultLocked(accepted bool) model.EditResult {
	return model.EditResult{
		Accepted: accepted,
		Curve:    s.curve,
		Mapping:  mappingView(s.curve),
		State:    s.state,
	}
}

func mappingView(c tone.CurveState) model.Mapping {
	m := tone.DeriveMapping(c)
	return model.Mapping{Slope: m.Slope, Intercept: m.Intercept, Step: m.Step}
}
