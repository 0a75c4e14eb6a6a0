package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"santa.share/internal/links"
	"santa.share/internal/logging"
	"santa.share/internal/models"
	"santa.share/internal/notify"
	"santa.share/web"
)

const maxBodyBytes = 1 << 20

// Handler serves the storage and notification API. backend is nil when the
// deployment runs without a store.
type Handler struct {
	backend links.Backend
	mailer  *notify.Mailer
	log     logging.Logger
}

func NewHandler(backend links.Backend, mailer *notify.Mailer, log logging.Logger) *Handler {
	return &Handler{
		backend: backend,
		mailer:  mailer,
		log:     log,
	}
}

type StoreRequest struct {
	Matches []models.StoredMatch `json:"matches"`
}

type StoreResponse struct {
	Success bool `json:"success"`
	Stored  int  `json:"stored"`
}

type NotifyRequest struct {
	Notifications []models.Notification `json:"notifications"`
}

type NotifyResponse struct {
	Success bool                     `json:"success"`
	Sent    int                      `json:"sent"`
	SentTo  []string                 `json:"sent_to"`
	Failed  []models.DeliveryFailure `json:"failed"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.json(w, http.StatusOK, map[string]string{"status": "ok"})
}

// StoreMatches saves a batch of sealed matches for stored-mode links.
func (h *Handler) StoreMatches(w http.ResponseWriter, r *http.Request) {
	if h.backend == nil {
		h.error(w, http.StatusNotImplemented, "storage is disabled on this server (stateless links only)")
		return
	}

	var req StoreRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil || req.Matches == nil {
		h.error(w, http.StatusBadRequest, "invalid input")
		return
	}

	for _, m := range req.Matches {
		if m.ID == "" || m.EncryptedMatch == "" || m.IV == "" {
			h.error(w, http.StatusBadRequest, "every match needs id, encryptedMatch and iv")
			return
		}
	}

	if err := h.backend.Put(r.Context(), req.Matches); err != nil {
		h.log.Errorf("storing %d matches: %v", len(req.Matches), err)
		h.error(w, http.StatusInternalServerError, "failed to store matches")
		return
	}

	h.log.Infof("stored %d matches", len(req.Matches))
	h.json(w, http.StatusOK, StoreResponse{Success: true, Stored: len(req.Matches)})
}

// RevealMatch hands out a sealed match once and burns it.
func (h *Handler) RevealMatch(w http.ResponseWriter, r *http.Request) {
	if h.backend == nil {
		h.error(w, http.StatusNotImplemented, "storage is disabled on this server (stateless links only)")
		return
	}

	id := r.URL.Query().Get("id")
	if id == "" {
		h.error(w, http.StatusBadRequest, "missing id")
		return
	}

	match, err := h.backend.Take(r.Context(), id)
	if err != nil {
		if errors.Is(err, links.ErrGone) {
			h.error(w, http.StatusGone, "This match has already been viewed or does not exist.")
			return
		}
		h.log.Errorf("taking match %s: %v", logging.ShortID(id), err)
		h.error(w, http.StatusInternalServerError, "internal error")
		return
	}

	h.log.Debugf("match %s revealed and deleted", logging.ShortID(id))
	h.json(w, http.StatusOK, match)
}

// Notify mails reveal links. Per-recipient failures are reported, not fatal.
func (h *Handler) Notify(w http.ResponseWriter, r *http.Request) {
	var req NotifyRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil || req.Notifications == nil {
		h.error(w, http.StatusBadRequest, "invalid payload")
		return
	}

	report, err := h.mailer.Send(r.Context(), req.Notifications)
	if err != nil {
		if errors.Is(err, notify.ErrNotConfigured) {
			h.log.Warnf("notify requested but SMTP credentials are missing")
			h.error(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		h.error(w, http.StatusInternalServerError, "internal error")
		return
	}

	h.json(w, http.StatusOK, NotifyResponse{
		Success: true,
		Sent:    len(report.Sent),
		SentTo:  report.Sent,
		Failed:  report.Failed,
	})
}

func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	h.serveFile(w, "index.html")
}

func (h *Handler) RevealPage(w http.ResponseWriter, r *http.Request) {
	// The page reads its key from the fragment, which never reaches us.
	w.Header().Set("Referrer-Policy", "no-referrer")
	w.Header().Set("Cache-Control", "no-store")
	h.serveFile(w, "reveal.html")
}

func (h *Handler) serveFile(w http.ResponseWriter, filename string) {
	content, err := web.GetFile(filename)
	if err != nil {
		h.log.Errorf("reading embedded %s: %v", filename, err)
		http.Error(w, "file not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(content)
}

func (h *Handler) json(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (h *Handler) error(w http.ResponseWriter, status int, message string) {
	h.json(w, status, ErrorResponse{Error: message})
}
