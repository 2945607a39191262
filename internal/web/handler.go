package web

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/funnyzak/reqput/internal/config"
	"github.com/funnyzak/reqput/internal/group"
	"github.com/funnyzak/reqput/internal/logger"
	"github.com/funnyzak/reqput/internal/session"
	"github.com/funnyzak/reqput/internal/storage"
	"github.com/funnyzak/reqput/pkg/request"
)

const (
	contentTypeJSON = "application/json"
	maxSendBytes    = 1 << 20
)

// Session is the part of session.Session the API drives.
type Session interface {
	AddListener(ctx context.Context, l session.Listener) error
	Submit(ctx context.Context, text string) (uint32, error)
	Cancel(ctx context.Context) (uint32, bool, error)
	SwitchGroup(ctx context.Context, groupID, filter string) error
	GroupID(ctx context.Context) (string, error)
	Entries(ctx context.Context) ([]storage.Entry, error)
	List(ctx context.Context, groupID, filter string) ([]storage.Entry, error)
	Find(ctx context.Context, groupID, method, url string) (string, string, bool, error)
	Delete(ctx context.Context, groupID, method, url string) error
	Rename(ctx context.Context, groupID, method, url, title string) error
}

// Service exposes the session over a JSON API and a websocket result stream.
type Service struct {
	cfg     *config.WebConfig
	logger  logger.Logger
	session Session
	groups  *group.Registry
	hub     *WebsocketHub
}

// NewService builds a Service from configuration.
func NewService(cfg *config.WebConfig, log logger.Logger, sess Session, groups *group.Registry) *Service {
	return &Service{
		cfg:     cfg,
		logger:  log,
		session: sess,
		groups:  groups,
		hub:     NewWebsocketHub(log),
	}
}

// Attach subscribes the service to session outcomes. The session loop must be running.
func (s *Service) Attach(ctx context.Context) error {
	return s.session.AddListener(ctx, s)
}

// Hub returns the websocket hub
func (s *Service) Hub() *WebsocketHub {
	return s.hub
}

// RegisterRoutes wires HTTP routes into the provided router.
func (s *Service) RegisterRoutes(router *mux.Router) {
	if s == nil {
		return
	}

	api := router.PathPrefix(normalizePath(s.cfg.AdminPath)).Subrouter()
	api.HandleFunc("/groups", s.handleGroups).Methods(http.MethodGet)
	api.HandleFunc("/groups/active", s.handleSwitchGroup).Methods(http.MethodPut)
	api.HandleFunc("/requests", s.handleRequests).Methods(http.MethodGet)
	api.HandleFunc("/requests/item", s.handleItem).Methods(http.MethodGet)
	api.HandleFunc("/requests/item", s.handleDelete).Methods(http.MethodDelete)
	api.HandleFunc("/requests/title", s.handleRename).Methods(http.MethodPut)
	api.HandleFunc("/send", s.handleSend).Methods(http.MethodPost)
	api.HandleFunc("/cancel", s.handleCancel).Methods(http.MethodPost)
	api.HandleFunc("/ws", s.handleWebsocket).Methods(http.MethodGet)
}

// resultEvent is the websocket payload of one outcome
type resultEvent struct {
	Type       string          `json:"type"`
	Data       session.Outcome `json:"data"`
	Error      string          `json:"error,omitempty"`
	StoreError string          `json:"store_error,omitempty"`
}

// OnOutcome pushes an outcome to websocket clients. Runs on the session loop.
func (s *Service) OnOutcome(o session.Outcome) {
	event := resultEvent{Type: "result", Data: o}
	if o.Err != nil {
		event.Type = "error"
		event.Error = o.Err.Error()
	}
	if o.StoreErr != nil {
		event.StoreError = o.StoreErr.Error()
	}
	s.hub.Broadcast(event)
}

// Close releases resources.
func (s *Service) Close() {
	if s == nil {
		return
	}
	s.hub.Close()
}

func (s *Service) handleGroups(w http.ResponseWriter, r *http.Request) {
	active, err := s.session.GroupID(r.Context())
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"data":   s.groups.Groups(),
		"active": active,
	})
}

func (s *Service) handleSwitchGroup(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Group  string `json:"group"`
		Filter string `json:"filter"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "Invalid payload", http.StatusBadRequest)
		return
	}
	if err := s.session.SwitchGroup(r.Context(), payload.Group, payload.Filter); err != nil {
		s.respondError(w, err)
		return
	}
	entries, err := s.session.Entries(r.Context())
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"group": payload.Group,
		"data":  nonNil(entries),
	})
}

// handleRequests returns the visible list of the active group, or a storage
// query when group or q is given.
func (s *Service) handleRequests(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	active, err := s.session.GroupID(r.Context())
	if err != nil {
		s.respondError(w, err)
		return
	}

	groupID := active
	if query.Has("group") {
		groupID = query.Get("group")
	}
	filter := query.Get("q")

	var entries []storage.Entry
	if groupID == active && filter == "" {
		entries, err = s.session.Entries(r.Context())
	} else {
		entries, err = s.session.List(r.Context(), groupID, filter)
	}
	if err != nil {
		s.respondError(w, err)
		return
	}

	items := make([]listItem, 0, len(entries))
	for _, e := range entries {
		items = append(items, listItem{Entry: e, Display: e.DisplayTitle()})
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"group": groupID,
		"data":  items,
		"total": len(items),
	})
}

type listItem struct {
	storage.Entry
	Display string `json:"display"`
}

func (s *Service) handleItem(w http.ResponseWriter, r *http.Request) {
	key, ok := s.itemKey(w, r.URL.Query())
	if !ok {
		return
	}
	raw, body, found, err := s.session.Find(r.Context(), key.Group, key.Method, key.URL)
	if err != nil {
		s.respondError(w, err)
		return
	}
	if !found {
		http.Error(w, "Request not found", http.StatusNotFound)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"group":    key.Group,
		"method":   key.Method,
		"url":      key.URL,
		"request":  raw,
		"response": body,
	})
}

func (s *Service) handleDelete(w http.ResponseWriter, r *http.Request) {
	key, ok := s.itemKey(w, r.URL.Query())
	if !ok {
		return
	}
	if err := s.session.Delete(r.Context(), key.Group, key.Method, key.URL); err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"message": "deleted"})
}

func (s *Service) handleRename(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		itemRef
		Title string `json:"title"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "Invalid payload", http.StatusBadRequest)
		return
	}
	if payload.Method == "" || payload.URL == "" {
		http.Error(w, "method and url are required", http.StatusBadRequest)
		return
	}
	err := s.session.Rename(r.Context(), payload.Group, strings.ToUpper(payload.Method), payload.URL, payload.Title)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"message": "renamed"})
}

// handleSend accepts the request definition text as the raw body.
func (s *Service) handleSend(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxSendBytes))
	if err != nil {
		http.Error(w, "Request body too large", http.StatusRequestEntityTooLarge)
		return
	}
	id, err := s.session.Submit(r.Context(), string(data))
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusAccepted, map[string]interface{}{"id": id})
}

func (s *Service) handleCancel(w http.ResponseWriter, r *http.Request) {
	id, had, err := s.session.Cancel(r.Context())
	if err != nil {
		s.respondError(w, err)
		return
	}
	resp := map[string]interface{}{"cancelled": had}
	if had {
		resp["id"] = id
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Service) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	if _, err := s.hub.Upgrade(w, r); err != nil {
		s.logger.Error("Failed to upgrade websocket", "error", err)
		return
	}
}

type itemRef struct {
	Group  string `json:"group"`
	Method string `json:"method"`
	URL    string `json:"url"`
}

func (s *Service) itemKey(w http.ResponseWriter, query map[string][]string) (itemRef, bool) {
	get := func(k string) string {
		if v := query[k]; len(v) > 0 {
			return v[0]
		}
		return ""
	}
	ref := itemRef{Group: get("group"), Method: strings.ToUpper(get("method")), URL: get("url")}
	if ref.Method == "" || ref.URL == "" {
		http.Error(w, "method and url are required", http.StatusBadRequest)
		return ref, false
	}
	return ref, true
}

// statusFor maps domain errors to HTTP status codes
func statusFor(err error) int {
	var (
		invalid *request.InvalidFormatError
		decode  *request.BodyDecodeError
	)
	switch {
	case errors.Is(err, request.ErrEmptyContent), errors.As(err, &invalid), errors.As(err, &decode):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrUnknownGroup):
		return http.StatusNotFound
	case errors.Is(err, session.ErrClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Service) respondError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("API request failed", "error", err)
	}
	s.respondJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Service) respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("Failed to encode JSON response", "error", err)
	}
}

func nonNil(entries []storage.Entry) []storage.Entry {
	if entries == nil {
		return []storage.Entry{}
	}
	return entries
}

func normalizePath(p string) string {
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}
