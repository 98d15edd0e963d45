package watch

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/HollowOak/sitewatch/pkg/plugin"
	"go.uber.org/zap"
)

type subscriberRequest struct {
	ID string `json:"id"`
}

type subscriberResponse struct {
	ID         string `json:"id"`
	Subscribed bool   `json:"subscribed"`
}

type subscriberListResponse struct {
	Subscribers []string `json:"subscribers"`
	Count       int      `json:"count"`
}

// Routes implements plugin.HTTPProvider.
func (m *Module) Routes() []plugin.Route {
	return []plugin.Route{
		{Method: "GET", Path: "/status", Handler: m.handleStatus},
		{Method: "GET", Path: "/stats", Handler: m.handleStats},
		{Method: "GET", Path: "/alerts", Handler: m.handleListAlerts},
		{Method: "GET", Path: "/subscribers", Handler: m.handleListSubscribers},
		{Method: "POST", Path: "/subscribers", Handler: m.handleAddSubscriber},
		{Method: "DELETE", Path: "/subscribers/{id}", Handler: m.handleRemoveSubscriber},
	}
}

// handleStatus returns the current availability classification of the target.
//
//	@Summary		Monitoring status
//	@Description	Returns the current availability status of the monitored endpoint.
//	@Tags			watch
//	@Produce		json
//	@Success		200 {object} github_com_HollowOak_sitewatch_pkg_roles.MonitorStatus
//	@Failure		500 {object} map[string]any
//	@Router			/watch/status [get]
func (m *Module) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := m.Status(r.Context())
	if err != nil {
		m.logger.Warn("failed to get status", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to get status")
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// handleStats returns the full rolling statistics snapshot.
//
//	@Summary		Monitoring statistics
//	@Description	Returns rolling health statistics for the monitored endpoint: check counters, availability percentage, status timestamps, and the latest probe result.
//	@Tags			watch
//	@Produce		json
//	@Success		200 {object} Snapshot
//	@Router			/watch/stats [get]
func (m *Module) handleStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, m.monitor.Snapshot())
}

// handleListAlerts returns recent alerts, newest first.
//
//	@Summary		List alerts
//	@Description	Returns recent down and recovery alerts, newest first.
//	@Tags			watch
//	@Produce		json
//	@Param			limit query int false "Maximum alerts" default(50)
//	@Success		200 {array} Alert
//	@Router			/watch/alerts [get]
func (m *Module) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, 50)
	writeJSON(w, http.StatusOK, m.monitor.History(limit))
}

// handleListSubscribers returns all registered alert subscribers.
//
//	@Summary		List subscribers
//	@Description	Returns the IDs of all registered alert subscribers.
//	@Tags			watch
//	@Produce		json
//	@Success		200 {object} subscriberListResponse
//	@Router			/watch/subscribers [get]
func (m *Module) handleListSubscribers(w http.ResponseWriter, _ *http.Request) {
	subscribers := m.monitor.Subscribers()
	writeJSON(w, http.StatusOK, subscriberListResponse{
		Subscribers: subscribers,
		Count:       len(subscribers),
	})
}

// handleAddSubscriber registers a subscriber for alert notifications.
// Registering an already-subscribed ID is a no-op.
//
//	@Summary		Add subscriber
//	@Description	Registers a subscriber ID for alert notifications. Returns 201 for a new subscription, 200 if already subscribed.
//	@Tags			watch
//	@Accept			json
//	@Produce		json
//	@Param			request body subscriberRequest true "Subscriber ID"
//	@Success		200 {object} subscriberResponse
//	@Success		201 {object} subscriberResponse
//	@Failure		400 {object} map[string]any
//	@Router			/watch/subscribers [post]
func (m *Module) handleAddSubscriber(w http.ResponseWriter, r *http.Request) {
	var req subscriberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.ID) == "" {
		writeError(w, http.StatusBadRequest, "id is required")
		return
	}

	added := m.monitor.Subscribe(req.ID)
	status := http.StatusOK
	if added {
		status = http.StatusCreated
		m.logger.Info("subscriber added", zap.String("subscriber_id", req.ID))
	}
	writeJSON(w, status, subscriberResponse{ID: req.ID, Subscribed: true})
}

// handleRemoveSubscriber removes a subscriber.
//
//	@Summary		Remove subscriber
//	@Description	Removes a subscriber so it no longer receives alert notifications.
//	@Tags			watch
//	@Param			id path string true "Subscriber ID"
//	@Success		204 "subscriber removed"
//	@Failure		404 {object} map[string]any
//	@Router			/watch/subscribers/{id} [delete]
func (m *Module) handleRemoveSubscriber(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "id is required")
		return
	}
	if !m.monitor.Unsubscribe(id) {
		writeError(w, http.StatusNotFound, "subscriber not found")
		return
	}
	m.logger.Info("subscriber removed", zap.String("subscriber_id", id))
	w.WriteHeader(http.StatusNoContent)
}

// -- helpers --

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"type":   "https://sitewatch.dev/problems/" + http.StatusText(status),
		"title":  http.StatusText(status),
		"status": status,
		"detail": detail,
	})
}

func parseLimit(r *http.Request, defaultLimit int) int {
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 && n <= 1000 {
			return n
		}
	}
	return defaultLimit
}
