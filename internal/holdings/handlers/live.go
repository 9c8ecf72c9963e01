package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"holdings-server/internal/location"
	"holdings-server/internal/metrics"
	"holdings-server/internal/shared/errors"
	"holdings-server/internal/shared/response"
	"holdings-server/internal/view"

	"github.com/gorilla/websocket"
)

const maxClientMessage = 1024

// LiveHandler streams the arranged content of one location over a websocket.
// The client changes the sort by sending {"sort": ..., "dir": ...}; every
// tree change or sort change pushes a new frame.
type LiveHandler struct {
	holdings    *HoldingsHandler
	upgrader    websocket.Upgrader
	writeWindow time.Duration
	logger      *slog.Logger
}

func NewLiveHandler(holdings *HoldingsHandler, frontendURL string, writeWindow time.Duration, logger *slog.Logger) *LiveHandler {
	return &LiveHandler{
		holdings: holdings,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || origin == frontendURL
			},
		},
		writeWindow: writeWindow,
		logger:      logger,
	}
}

func (h *LiveHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	logger := h.logger.With("handler", "holdings_live")

	s, err := h.holdings.service(r)
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}

	query := r.URL.Query()
	sort, err := view.ParseSort(query.Get("sort"), query.Get("dir"))
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}

	tree := s.Tree()
	key := location.Key(r.PathValue("key"))
	if _, err := tree.Node(key); err != nil {
		response.Error(w, r, logger, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// the upgrader has already replied
		logger.Warn("Websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	metrics.LiveSubscribers.Inc()
	defer metrics.LiveSubscribers.Dec()

	logger = logger.With("location", key)
	logger.Debug("Live view opened")

	changes, unsubscribe := tree.Subscribe()
	defer unsubscribe()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	live := view.NewLive(sort)
	go h.readSorts(ctx, cancel, conn, live, logger)

	refresh := func() error {
		records, err := tree.Records(key)
		if err != nil {
			return err
		}
		live.SetRecords(view.Items(records))
		return nil
	}
	if err := refresh(); err != nil {
		h.close(conn, err)
		return
	}

	for {
		select {
		case <-ctx.Done():
			logger.Debug("Live view closed")
			return
		case <-changes:
			if err := refresh(); err != nil {
				h.close(conn, err)
				return
			}
		case frame := <-live.Frames():
			if err := conn.SetWriteDeadline(time.Now().Add(h.writeWindow)); err != nil {
				return
			}
			if err := conn.WriteJSON(frame); err != nil {
				logger.Debug("Live view write failed", "error", err)
				return
			}
		}
	}
}

// readSorts is the only reader of conn. It ends the stream when the client
// goes away.
func (h *LiveHandler) readSorts(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, live *view.Live, logger *slog.Logger) {
	defer cancel()
	conn.SetReadLimit(maxClientMessage)

	for ctx.Err() == nil {
		var msg struct {
			Sort string `json:"sort"`
			Dir  string `json:"dir"`
		}
		if err := conn.ReadJSON(&msg); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Debug("Live view read ended", "error", err)
			}
			return
		}

		sort, err := view.ParseSort(msg.Sort, msg.Dir)
		if err != nil {
			logger.Debug("Ignoring invalid sort message", "error", err)
			continue
		}
		live.SetSort(sort)
	}
}

func (h *LiveHandler) close(conn *websocket.Conn, err error) {
	code := websocket.CloseInternalServerErr
	if errors.Is(err, errors.ErrorTypeNotFound) {
		code = websocket.ClosePolicyViolation
	}
	deadline := time.Now().Add(h.writeWindow)
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, err.Error()), deadline)
}
