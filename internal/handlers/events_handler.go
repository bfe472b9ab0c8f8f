package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/castfund/backend/internal/events"
)

const wsWriteWait = 10 * time.Second

type EventsHandler struct {
	dispatcher *events.Dispatcher
	publisher  events.Publisher
	heartbeat  time.Duration
	logger     *slog.Logger
	upgrader   websocket.Upgrader
}

// NewEventsHandler serves the push stream from dispatcher. publisher is
// where USER_LOGOUT goes, so that it reaches every instance.
func NewEventsHandler(dispatcher *events.Dispatcher, publisher events.Publisher, heartbeat time.Duration, logger *slog.Logger) *EventsHandler {
	return &EventsHandler{
		dispatcher: dispatcher,
		publisher:  publisher,
		heartbeat:  heartbeat,
		logger:     logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Origins are already restricted by the CORS layer and the token.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

type ConnectedPayload struct {
	ConnectionID string `json:"connectionId"`
}

// watchRequest is also the message format clients send over the websocket.
type watchRequest struct {
	EpisodeIDs []string `json:"episodeIds"`
	ReviewIDs  []string `json:"reviewIds"`
	SeriesIDs  []string `json:"seriesIds"`
}

func (req watchRequest) keys() []string {
	keys := make([]string, 0, len(req.EpisodeIDs)+len(req.ReviewIDs)+len(req.SeriesIDs))
	for _, id := range req.EpisodeIDs {
		keys = append(keys, events.EpisodeKey(id))
	}
	for _, id := range req.ReviewIDs {
		keys = append(keys, events.ReviewKey(id))
	}
	for _, id := range req.SeriesIDs {
		keys = append(keys, events.SeriesKey(id))
	}
	return keys
}

func connectedEvent(sub *events.Subscription) events.Event {
	return events.New(events.Connected, events.Keys{Accounts: []string{sub.AccountID}},
		ConnectedPayload{ConnectionID: sub.ID})
}

// writeSSE writes one event as a text/event-stream frame.
func writeSSE(w io.Writer, e events.Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "id: %s\nevent: %s\ndata: %s\n\n", e.ID, e.Type, data)
	return err
}

func (h *EventsHandler) ticker() (<-chan time.Time, func()) {
	if h.heartbeat <= 0 {
		return nil, func() {}
	}
	t := time.NewTicker(h.heartbeat)
	return t.C, t.Stop
}

// Subscribe opens a server-sent event stream
// @Summary Event stream (SSE)
// @Description The first frame is CONNECTED with the connection id; clients treat it as "everything is stale". Heartbeats are SSE comments.
// @Tags Events
// @Produce text/event-stream
// @Security BearerAuth
// @Param access_token query string false "JWT, for clients that cannot set headers"
// @Success 200 {string} string "event stream"
// @Router /events/subscribe [get]
func (h *EventsHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, "Streaming unsupported", http.StatusInternalServerError, nil)
		return
	}

	sub := h.dispatcher.Subscribe(userID)
	defer sub.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	if err := writeSSE(w, connectedEvent(sub)); err != nil {
		return
	}
	flusher.Flush()

	beat, stop := h.ticker()
	defer stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-sub.Done():
			h.logger.Info("[STREAM] sse closed by server", "connection_id", sub.ID, "reason", sub.Err())
			return
		case e := <-sub.Events():
			if err := writeSSE(w, e); err != nil {
				return
			}
			flusher.Flush()
		case <-beat:
			if _, err := io.WriteString(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// WebSocket serves the same stream over a websocket
// @Summary Event stream (WebSocket)
// @Description Server messages are JSON events. Client messages are watch requests.
// @Tags Events
// @Security BearerAuth
// @Param access_token query string false "JWT, for clients that cannot set headers"
// @Router /events/ws [get]
func (h *EventsHandler) WebSocket(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("[STREAM] websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	sub := h.dispatcher.Subscribe(userID)
	defer sub.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Only this goroutine reads; only the loop below writes.
	go func() {
		defer cancel()
		for {
			var req watchRequest
			if err := conn.ReadJSON(&req); err != nil {
				return
			}
			sub.Watch(req.keys()...)
		}
	}()

	send := func(e events.Event) error {
		conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		return conn.WriteJSON(e)
	}
	if err := send(connectedEvent(sub)); err != nil {
		return
	}

	beat, stop := h.ticker()
	defer stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-sub.Done():
			h.logger.Info("[STREAM] websocket closed by server", "connection_id", sub.ID, "reason", sub.Err())
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "resync required"),
				time.Now().Add(wsWriteWait))
			return
		case e := <-sub.Events():
			if err := send(e); err != nil {
				return
			}
		case <-beat:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return
			}
		}
	}
}

// Watch extends the interest set of a live connection
// @Summary Watch entities
// @Tags Events
// @Accept json
// @Security BearerAuth
// @Param connectionId path string true "Connection ID from CONNECTED"
// @Param request body watchRequest true "Entities to watch"
// @Success 204
// @Failure 404 {object} ErrorResponse
// @Router /events/{connectionId}/watch [post]
func (h *EventsHandler) Watch(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	sub, ok := h.dispatcher.Get(chi.URLParam(r, "connectionId"))
	if !ok || sub.AccountID != userID {
		writeError(w, "Connection not found", http.StatusNotFound, nil)
		return
	}

	var req watchRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	sub.Watch(req.keys()...)
	w.WriteHeader(http.StatusNoContent)
}

// Logout tells the caller's other sessions to drop their caches
// @Summary Broadcast logout
// @Tags Events
// @Security BearerAuth
// @Success 204
// @Router /events/logout [post]
func (h *EventsHandler) Logout(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	e := events.New(events.UserLogout, events.Keys{Accounts: []string{userID}}, nil)
	if err := h.publisher.Publish(r.Context(), e); err != nil {
		h.logger.Warn("[EVENTS] logout publish failed", "account_id", userID, "error", err)
	}
	w.WriteHeader(http.StatusNoContent)
}
