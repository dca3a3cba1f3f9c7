package service

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"tone-curve-agent/internal/config"
	"tone-curve-agent/internal/guide"
	"tone-curve-agent/internal/imageio"
	"tone-curve-agent/internal/model"
	"tone-curve-agent/internal/tone"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrImageTooLarge   = errors.New("image too large")
	ErrEmptyImage      = errors.New("image has no pixels")
	ErrScaleRange      = errors.New("histogram scale out of range")
)

// MaxHistogramScale bounds the bar height a client may ask for.
const MaxHistogramScale = 1 << 16

type EventPublisher interface {
	BroadcastEvent(evt model.Event)
}

type PreviewPublisher interface {
	PushPreview(frame model.PreviewFrame)
	CloseSession(sessionID string)
}

// CommitSink receives the encoded output of a commit.
type CommitSink interface {
	SaveCommit(rec model.CommitRecord, ext string, data []byte) (model.CommitRecord, error)
}

type CurvesService struct {
	cfg      config.Config
	format   imageio.Format
	sink     CommitSink
	events   EventPublisher
	previews PreviewPublisher
	now      func() time.Time

	mu       sync.RWMutex
	sessions map[string]*session
}

func NewCurvesService(cfg config.Config, sink CommitSink, events EventPublisher, previews PreviewPublisher) (*CurvesService, error) {
	format, err := imageio.ParseFormat(cfg.CommitFormat)
	if err != nil {
		return nil, err
	}
	return &CurvesService{
		cfg:      cfg,
		format:   format,
		sink:     sink,
		events:   events,
		previews: previews,
		now:      time.Now,
		sessions: map[string]*session{},
	}, nil
}

func (s *CurvesService) Open(userID string, imageBytes []byte) (model.Session, error) {
	hdr, format, err := imageio.Probe(imageBytes)
	if err != nil {
		return model.Session{}, err
	}
	if hdr.Width <= 0 || hdr.Height <= 0 {
		return model.Session{}, ErrEmptyImage
	}
	if hdr.Width*hdr.Height > s.cfg.MaxImagePixels {
		return model.Session{}, fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrImageTooLarge, hdr.Width, hdr.Height, s.cfg.MaxImagePixels)
	}
	buf, err := imageio.Decode(imageBytes)
	if err != nil {
		return model.Session{}, err
	}

	now := s.now()
	sess := &session{
		id:         uuid.NewString(),
		userID:     userID,
		format:     format,
		source:     buf,
		previewSrc: imageio.Fit(buf, s.cfg.PreviewMaxEdge),
		hist:       tone.BuildHistogram(buf),
		createdAt:  now,
		curve:      tone.DefaultCurve(),
		state:      model.StateIdle,
		updatedAt:  now,
	}
	s.mu.Lock()
	s.sessions[sess.id] = sess
	s.mu.Unlock()

	sess.mu.Lock()
	view := sess.viewLocked()
	sess.mu.Unlock()

	log.Printf("session opened: id=%s user=%s size=%dx%d format=%s", sess.id, userID, buf.Width, buf.Height, format)
	s.events.BroadcastEvent(model.Event{Type: model.EventSessionOpened, Payload: view, CreatedAt: now.UnixMilli()})
	return view, nil
}

func (s *CurvesService) lookup(id string) (*session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return sess, nil
}

func (s *CurvesService) Get(id string) (model.Session, error) {
	sess, err := s.lookup(id)
	if err != nil {
		return model.Session{}, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.viewLocked(), nil
}

func (s *CurvesService) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *CurvesService) Close(id string) error {
	s.mu.Lock()
	_, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	s.closed(id, "closed")
	return nil
}

func (s *CurvesService) closed(id, reason string) {
	s.previews.CloseSession(id)
	log.Printf("session %s: id=%s", reason, id)
	s.events.BroadcastEvent(model.Event{
		Type:      model.EventSessionClosed,
		Payload:   map[string]string{"session_id": id, "reason": reason},
		CreatedAt: s.now().UnixMilli(),
	})
}

func (s *CurvesService) Histogram(id string, scale int) (model.Histogram, error) {
	sess, err := s.lookup(id)
	if err != nil {
		return model.Histogram{}, err
	}
	if scale <= 0 {
		scale = s.cfg.HistogramScale
	}
	if scale > MaxHistogramScale {
		return model.Histogram{}, fmt.Errorf("%w: %d > %d", ErrScaleRange, scale, MaxHistogramScale)
	}
	h := sess.hist
	bars := h.Bars(scale)
	r, g, b := h.Counts(tone.Red), h.Counts(tone.Green), h.Counts(tone.Blue)
	return model.Histogram{
		SessionID: id,
		Pixels:    uint64(sess.source.Pixels()),
		MaxCount:  h.MaxCount(),
		Scale:     scale,
		Counts:    model.ChannelCounts{R: r[:], G: g[:], B: b[:]},
		Bars:      model.ChannelBars{R: bars[tone.Red][:], G: bars[tone.Green][:], B: bars[tone.Blue][:]},
	}, nil
}

// Guide renders the histogram panel with the session's current curve.
func (s *CurvesService) Guide(id string) ([]byte, error) {
	sess, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	curve := sess.curve
	sess.mu.Unlock()
	return guide.RenderPNG(curve, guide.Options{Background: color.White, Histogram: sess.hist})
}

func (s *CurvesService) SetControlPoint(id string, edit model.CurveEdit) (model.EditResult, error) {
	p, err := tone.ParsePoint(edit.Point)
	if err != nil {
		return model.EditResult{}, err
	}
	f, err := tone.ParseField(edit.Field)
	if err != nil {
		return model.EditResult{}, err
	}
	sess, err := s.lookup(id)
	if err != nil {
		return model.EditResult{}, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	next, accepted, err := sess.curve.SetControlPoint(p, f, edit.Value)
	if err != nil {
		return model.EditResult{}, err
	}
	now := s.now()
	sess.touchLocked(now)
	if !accepted {
		return sess.editResultLocked(false), nil
	}
	sess.curve = next
	sess.settleLocked()
	s.curveChangedLocked(sess)

	res := sess.editResultLocked(true)
	s.events.BroadcastEvent(model.Event{
		Type:      model.EventCurveChanged,
		Payload:   map[string]interface{}{"session_id": id, "edit": edit, "result": res},
		CreatedAt: now.UnixMilli(),
	})
	return res, nil
}

func (s *CurvesService) Reset(id string) (model.EditResult, error) {
	sess, err := s.lookup(id)
	if err != nil {
		return model.EditResult{}, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	now := s.now()
	sess.touchLocked(now)
	sess.curve = sess.curve.Reset()
	sess.settleLocked()
	s.curveChangedLocked(sess)

	res := sess.editResultLocked(true)
	s.events.BroadcastEvent(model.Event{
		Type:      model.EventCurveReset,
		Payload:   map[string]interface{}{"session_id": id, "result": res},
		CreatedAt: now.UnixMilli(),
	})
	return res, nil
}

// SetPreview toggles live preview. Turning it on renders a frame at once.
func (s *CurvesService) SetPreview(id string, enabled bool) (model.Session, error) {
	sess, err := s.lookup(id)
	if err != nil {
		return model.Session{}, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	now := s.now()
	sess.touchLocked(now)
	sess.previewOn = enabled
	sess.settleLocked()
	if enabled {
		s.curveChangedLocked(sess)
	}

	view := sess.viewLocked()
	s.events.BroadcastEvent(model.Event{
		Type:      model.EventPreviewToggled,
		Payload:   map[string]interface{}{"session_id": id, "enabled": enabled},
		CreatedAt: now.UnixMilli(),
	})
	return view, nil
}

// Preview renders the downscaled source through the current curve as PNG,
// whether or not live preview is on.
func (s *CurvesService) Preview(id string) ([]byte, error) {
	sess, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	_, data, err := s.renderPreviewLocked(sess)
	return data, err
}

// curveChangedLocked pushes a fresh preview frame when live preview is on.
func (s *CurvesService) curveChangedLocked(sess *session) {
	if !sess.previewOn {
		return
	}
	frame, _, err := s.renderPreviewLocked(sess)
	if err != nil {
		log.Printf("render preview: id=%s err=%v", sess.id, err)
		return
	}
	s.previews.PushPreview(frame)
}

func (s *CurvesService) renderPreviewLocked(sess *session) (model.PreviewFrame, []byte, error) {
	out := tone.ApplyCurve(sess.previewSrc, sess.curve)
	data, err := imageio.Encode(out, imageio.FormatPNG, 0)
	if err != nil {
		return model.PreviewFrame{}, nil, err
	}
	return model.PreviewFrame{
		SessionID: sess.id,
		Width:     out.Width,
		Height:    out.Height,
		Curve:     sess.curve,
		DataURI:   imageio.DataURI(data, imageio.FormatPNG),
		CreatedAt: s.now().UnixMilli(),
	}, data, nil
}

// Commit applies the curve to the full-resolution source, hands the encoded
// result to the sink and announces it as gamma.changed.
func (s *CurvesService) Commit(id string) (model.Commit, error) {
	sess, err := s.lookup(id)
	if err != nil {
		return model.Commit{}, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	out := tone.ApplyCurve(sess.source, sess.curve)
	data, err := imageio.Encode(out, s.format, s.cfg.JPEGQuality)
	if err != nil {
		return model.Commit{}, err
	}
	now := s.now()
	rec, err := s.sink.SaveCommit(model.CommitRecord{
		ID:        uuid.NewString(),
		SessionID: sess.id,
		UserID:    sess.userID,
		Width:     out.Width,
		Height:    out.Height,
		Format:    string(s.format),
		CreatedAt: now.UnixMilli(),
	}, s.format.Ext(), data)
	if err != nil {
		return model.Commit{}, fmt.Errorf("save commit: %w", err)
	}
	sess.touchLocked(now)
	sess.state = model.StateCommitted

	commit := model.Commit{Record: rec, DataURI: imageio.DataURI(data, s.format)}
	log.Printf("session committed: id=%s commit=%s curve=%s bytes=%d", sess.id, rec.ID, sess.curve, rec.Bytes)
	s.events.BroadcastEvent(model.Event{Type: model.EventGammaChanged, Payload: commit, CreatedAt: now.UnixMilli()})
	return commit, nil
}

// Sweep drops sessions idle for longer than the configured TTL.
func (s *CurvesService) Sweep(now time.Time) int {
	var expired []string
	s.mu.Lock()
	for id, sess := range s.sessions {
		sess.mu.Lock()
		idle := now.Sub(sess.updatedAt)
		sess.mu.Unlock()
		if idle > s.cfg.SessionTTL {
			delete(s.sessions, id)
			expired = append(expired, id)
		}
	}
	s.mu.Unlock()
	for _, id := range expired {
		s.closed(id, "expired")
	}
	return len(expired)
}

func (s *CurvesService) RunJanitor(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.SessionSweep)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(s.now())
		}
	}
}
