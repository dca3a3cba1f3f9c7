package api

import (
	"net/http"

	"github.com/gorilla/websocket"

	"tone-curve-agent/internal/config"
	"tone-curve-agent/internal/service"
	"tone-curve-agent/internal/storage"
	"tone-curve-agent/internal/ws"
)

func NewRouter(
	cfg config.Config,
	store *storage.Store,
	hub *ws.Hub,
	sessionHub *ws.SessionHub,
	curvesSvc *service.CurvesService,
) http.Handler {
	h := &Handler{
		cfg:        cfg,
		store:      store,
		hub:        hub,
		sessionHub: sessionHub,
		curvesSvc:  curvesSvc,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /v1/ws", h.WebSocket)
	mux.HandleFunc("POST /v1/sessions", h.OpenSession)
	mux.HandleFunc("GET /v1/sessions/{id}", h.GetSession)
	mux.HandleFunc("DELETE /v1/sessions/{id}", h.CloseSession)
	mux.HandleFunc("GET /v1/sessions/{id}/ws", h.SessionWebSocket)
	mux.HandleFunc("GET /v1/sessions/{id}/histogram", h.Histogram)
	mux.HandleFunc("GET /v1/sessions/{id}/histogram.png", h.HistogramGuide)
	mux.HandleFunc("PUT /v1/sessions/{id}/curve", h.SetControlPoint)
	mux.HandleFunc("POST /v1/sessions/{id}/curve/reset", h.ResetCurve)
	mux.HandleFunc("PUT /v1/sessions/{id}/preview", h.SetPreview)
	mux.HandleFunc("GET /v1/sessions/{id}/preview.png", h.Preview)
	mux.HandleFunc("POST /v1/sessions/{id}/commit", h.Commit)
	mux.HandleFunc("GET /v1/commits", h.ListCommits)
	mux.HandleFunc("GET /v1/commits/{id}", h.GetCommit)
	mux.HandleFunc("GET /v1/commits/{id}/image", h.CommitImage)

	return limitBody(cfg.MaxUploadSizeBytes, mux)
}

func limitBody(maxSize int64, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxSize)
		next.ServeHTTP(w, r)
	})
}
