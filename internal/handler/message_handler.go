package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/portfolio/backend/internal/export"
	"github.com/portfolio/backend/internal/filter"
	"github.com/portfolio/backend/internal/model"
	"github.com/portfolio/backend/internal/ratelimit"
	"github.com/portfolio/backend/internal/service"
)

const maxUserAgentLength = 512

// MessageHandler handles contact form submission and the admin message API.
type MessageHandler struct {
	svc      service.MessageService
	now      func() time.Time
	clientIP ratelimit.KeyFunc
}

// NewMessageHandler creates a MessageHandler with the given service.
func NewMessageHandler(svc service.MessageService) *MessageHandler {
	return &MessageHandler{svc: svc, now: time.Now, clientIP: ratelimit.ClientIP}
}

// submitRequest is the expected JSON body for POST /api/messages.
// Website is a honeypot that real visitors never see.
type submitRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Message string `json:"message"`
	Website string `json:"website"`
}

type recordResponse struct {
	Success             bool           `json:"success"`
	Data                *model.Message `json:"data,omitempty"`
	NotificationDelayed bool           `json:"notificationDelayed,omitempty"`
}

// Submit handles POST /api/messages.
func (h *MessageHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}

	// Bots get a normal-looking success and nothing is stored.
	if req.Website != "" {
		slog.InfoContext(r.Context(), "honeypot triggered", "remote_addr", h.clientIP(r))
		writeJSON(w, http.StatusCreated, recordResponse{Success: true})
		return
	}

	ua := r.UserAgent()
	if len(ua) > maxUserAgentLength {
		ua = ua[:maxUserAgentLength]
	}
	res, err := h.svc.Create(r.Context(), model.NewMessage{
		Name:      req.Name,
		Email:     req.Email,
		Phone:     req.Phone,
		Message:   req.Message,
		IPAddress: h.clientIP(r),
		UserAgent: ua,
	})
	if err != nil {
		writeServiceError(w, r, "create message", err)
		return
	}
	writeJSON(w, http.StatusCreated, recordResponse{
		Success:             true,
		Data:                res.Message,
		NotificationDelayed: res.NotificationDelayed,
	})
}

// List handles GET /api/messages?page&limit&read&starred&tag&search&dateFrom&dateTo.
func (h *MessageHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	c, ok := parseCriteria(w, r)
	if !ok {
		return
	}
	page, ok := queryInt(w, q.Get("page"), "page")
	if !ok {
		return
	}
	limit, ok := queryInt(w, q.Get("limit"), "limit")
	if !ok {
		return
	}

	result, err := h.svc.List(r.Context(), c, page, limit)
	if err != nil {
		writeServiceError(w, r, "list messages", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Get handles GET /api/messages/{id}. Viewing an unread message marks it read.
func (h *MessageHandler) Get(w http.ResponseWriter, r *http.Request) {
	msg, err := h.svc.MarkViewed(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, "get message", err)
		return
	}
	writeJSON(w, http.StatusOK, recordResponse{Success: true, Data: msg})
}

// SetRead handles PATCH /api/messages/{id}/read with body {"read": bool}.
func (h *MessageHandler) SetRead(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Read *bool `json:"read"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	if req.Read == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "read_required", "field": "read"})
		return
	}
	msg, err := h.svc.SetRead(r.Context(), chi.URLParam(r, "id"), *req.Read)
	if err != nil {
		writeServiceError(w, r, "set read", err)
		return
	}
	writeJSON(w, http.StatusOK, recordResponse{Success: true, Data: msg})
}

// SetStarred handles PATCH /api/messages/{id}/star with body {"starred": bool}.
func (h *MessageHandler) SetStarred(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Starred *bool `json:"starred"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	if req.Starred == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "starred_required", "field": "starred"})
		return
	}
	msg, err := h.svc.SetStarred(r.Context(), chi.URLParam(r, "id"), *req.Starred)
	if err != nil {
		writeServiceError(w, r, "set starred", err)
		return
	}
	writeJSON(w, http.StatusOK, recordResponse{Success: true, Data: msg})
}

// UpdateTags handles PATCH /api/messages/{id}/tags with body
// {"tags": [...], "action": "add"|"remove"|"set"}.
func (h *MessageHandler) UpdateTags(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Tags   *[]string `json:"tags"`
		Action string    `json:"action"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	if req.Tags == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "tags_required", "field": "tags"})
		return
	}
	action, err := model.ParseTagAction(req.Action)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_action", "field": "action"})
		return
	}
	msg, err := h.svc.UpdateTags(r.Context(), chi.URLParam(r, "id"), action, *req.Tags)
	if err != nil {
		writeServiceError(w, r, "update tags", err)
		return
	}
	writeJSON(w, http.StatusOK, recordResponse{Success: true, Data: msg})
}

// Delete handles DELETE /api/messages/{id} (admin only).
func (h *MessageHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, r, "delete message", err)
		return
	}
	writeJSON(w, http.StatusOK, recordResponse{Success: true})
}

// Export handles GET /api/messages/export with the same filters as List and
// responds with a CSV attachment.
func (h *MessageHandler) Export(w http.ResponseWriter, r *http.Request) {
	c, ok := parseCriteria(w, r)
	if !ok {
		return
	}
	limit, ok := queryInt(w, r.URL.Query().Get("limit"), "limit")
	if !ok {
		return
	}

	msgs, err := h.svc.Export(r.Context(), c, limit)
	if errors.Is(err, service.ErrNothingToExport) {
		writeError(w, http.StatusNotFound, "nothing_to_export")
		return
	}
	if err != nil {
		writeServiceError(w, r, "export messages", err)
		return
	}

	// Render fully before writing headers so a failure can still become a 500.
	var buf bytes.Buffer
	if err := export.WriteCSV(&buf, msgs); err != nil {
		writeServiceError(w, r, "export messages", err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.FileName(h.now())+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func parseCriteria(w http.ResponseWriter, r *http.Request) (filter.Criteria, bool) {
	c, err := filter.Parse(r.URL.Query())
	if err != nil {
		var pe *filter.ParseError
		field := ""
		if errors.As(err, &pe) {
			field = pe.Param
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_query", "field": field})
		return filter.Criteria{}, false
	}
	return c, true
}

// queryInt parses an optional non-negative integer parameter. Empty means 0,
// which the service replaces with its default.
func queryInt(w http.ResponseWriter, v, name string) (int, bool) {
	if v == "" {
		return 0, true
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_query", "field": name})
		return 0, false
	}
	return n, true
}
