package api

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"tone-curve-agent/internal/config"
	"tone-curve-agent/internal/imageio"
	"tone-curve-agent/internal/model"
	"tone-curve-agent/internal/service"
	"tone-curve-agent/internal/storage"
	"tone-curve-agent/internal/tone"
	"tone-curve-agent/internal/ws"
)

type Handler struct {
	cfg        config.Config
	store      *storage.Store
	hub        *ws.Hub
	sessionHub *ws.SessionHub
	curvesSvc  *service.CurvesService
	upgrader   websocket.Upgrader
}

type apiError struct {
	Error string `json:"error"`
}

func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "ok",
		"sessions": h.curvesSvc.Count(),
		"commits":  len(h.store.Snapshot().Commits),
	})
}

func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	if !websocket.IsWebSocketUpgrade(r) {
		writeErr(w, http.StatusBadRequest, errors.New("websocket upgrade required"))
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: remote=%s host=%s uri=%s err=%v", r.RemoteAddr, r.Host, r.RequestURI, err)
		return
	}
	client := ws.NewClient(h.hub, conn)
	h.hub.BroadcastEvent(model.Event{Type: "ws.client_connected", Payload: map[string]string{"id": uuid.NewString()}, CreatedAt: time.Now().UnixMilli()})
	h.hub.Register(client)
	go client.WritePump()
	go client.ReadPump()
}

func (h *Handler) SessionWebSocket(w http.ResponseWriter, r *http.Request) {
	if !websocket.IsWebSocketUpgrade(r) {
		writeErr(w, http.StatusBadRequest, errors.New("websocket upgrade required"))
		return
	}
	id := r.PathValue("id")
	if _, err := h.curvesSvc.Get(id); err != nil {
		writeSvcErr(w, err)
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("session ws upgrade failed: remote=%s session=%s err=%v", r.RemoteAddr, id, err)
		return
	}
	if !h.attachWatcher(id, conn) {
		log.Printf("session ws closed on attach: remote=%s session=%s", r.RemoteAddr, id)
	}
}

// attachWatcher registers conn for preview frames of id. Registration comes
// before the existence check, so a session closed in between still has its
// watchers disconnected.
func (h *Handler) attachWatcher(id string, conn *websocket.Conn) bool {
	client := h.sessionHub.Register(id, conn)
	go client.WritePump()
	go client.ReadPump()
	if _, err := h.curvesSvc.Get(id); err != nil {
		h.sessionHub.CloseSession(id)
		return false
	}
	return true
}

func (h *Handler) OpenSession(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(h.cfg.MaxUploadSizeBytes); err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	userID := firstOr(r.FormValue("user_id"), userIDFromRequest(r))

	file, fileHeader, err := r.FormFile("image")
	if err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	defer file.Close()

	if err := imageio.ValidateExt(fileHeader.Filename); err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	b, err := io.ReadAll(file)
	if err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}

	sess, err := h.curvesSvc.Open(userID, b)
	if err != nil {
		writeSvcErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := h.curvesSvc.Get(r.PathValue("id"))
	if err != nil {
		writeSvcErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (h *Handler) CloseSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.curvesSvc.Close(id); err != nil {
		writeSvcErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "closed", "session_id": id})
}

func (h *Handler) Histogram(w http.ResponseWriter, r *http.Request) {
	scale := atoiDefault(r.URL.Query().Get("scale"), h.cfg.HistogramScale)
	hist, err := h.curvesSvc.Histogram(r.PathValue("id"), scale)
	if err != nil {
		writeSvcErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, hist)
}

func (h *Handler) HistogramGuide(w http.ResponseWriter, r *http.Request) {
	b, err := h.curvesSvc.Guide(r.PathValue("id"))
	if err != nil {
		writeSvcErr(w, err)
		return
	}
	writePNG(w, b)
}

func (h *Handler) SetControlPoint(w http.ResponseWriter, r *http.Request) {
	var req model.CurveEdit
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	res, err := h.curvesSvc.SetControlPoint(r.PathValue("id"), req)
	if err != nil {
		writeSvcErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) ResetCurve(w http.ResponseWriter, r *http.Request) {
	res, err := h.curvesSvc.Reset(r.PathValue("id"))
	if err != nil {
		writeSvcErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) SetPreview(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Enabled *bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	if req.Enabled == nil {
		writeErr(w, http.StatusBadRequest, errors.New("enabled required"))
		return
	}
	sess, err := h.curvesSvc.SetPreview(r.PathValue("id"), *req.Enabled)
	if err != nil {
		writeSvcErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	b, err := h.curvesSvc.Preview(r.PathValue("id"))
	if err != nil {
		writeSvcErr(w, err)
		return
	}
	writePNG(w, b)
}

func (h *Handler) Commit(w http.ResponseWriter, r *http.Request) {
	commit, err := h.curvesSvc.Commit(r.PathValue("id"))
	if err != nil {
		writeSvcErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, commit)
}

func (h *Handler) ListCommits(w http.ResponseWriter, r *http.Request) {
	if sessionID := strings.TrimSpace(r.URL.Query().Get("session_id")); sessionID != "" {
		writeJSON(w, http.StatusOK, h.store.CommitsForSession(sessionID))
		return
	}
	writeJSON(w, http.StatusOK, h.store.ListCommits())
}

func (h *Handler) GetCommit(w http.ResponseWriter, r *http.Request) {
	rec := h.store.GetCommit(r.PathValue("id"))
	if rec == nil {
		writeErr(w, http.StatusNotFound, errors.New("commit not found"))
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *Handler) CommitImage(w http.ResponseWriter, r *http.Request) {
	rec := h.store.GetCommit(r.PathValue("id"))
	if rec == nil {
		writeErr(w, http.StatusNotFound, errors.New("commit not found"))
		return
	}
	b, err := os.ReadFile(rec.OutputPath)
	if err != nil {
		log.Printf("read commit output: id=%s path=%s err=%v", rec.ID, rec.OutputPath, err)
		writeErr(w, http.StatusGone, errors.New("commit output missing"))
		return
	}
	format, err := imageio.ParseFormat(rec.Format)
	if err != nil {
		writeSvcErr(w, err)
		return
	}
	w.Header().Set("Content-Type", format.MIME())
	w.Header().Set("Content-Length", strconv.Itoa(len(b)))
	_, _ = w.Write(b)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrImageTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, imageio.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, service.ErrEmptyImage),
		errors.Is(err, service.ErrScaleRange),
		errors.Is(err, tone.ErrValueRange),
		errors.Is(err, tone.ErrUnknownPoint),
		errors.Is(err, tone.ErrUnknownField):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func writeSvcErr(w http.ResponseWriter, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		log.Printf("request failed: %v", err)
	}
	writeErr(w, code, err)
}

func writeJSON(w http.ResponseWriter, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(data)
}

func writePNG(w http.ResponseWriter, b []byte) {
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(b)))
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(b)
}

func writeErr(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, apiError{Error: err.Error()})
}

func firstOr(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}

func userIDFromRequest(r *http.Request) string {
	v := strings.TrimSpace(r.Header.Get("X-User-ID"))
	if v != "" {
		return v
	}
	return "anon"
}

func atoiDefault(v string, d int) int {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n <= 0 {
		return d
	}
	return n
}
