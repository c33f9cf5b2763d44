// Package httpapi serves the read-only status API: health, Prometheus
// metrics, the current game view and a WebSocket stream of view changes.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/klauspost/compress/gzhttp"

	"github.com/R3E-Network/random-winner-game/internal/controller"
	"github.com/R3E-Network/random-winner-game/internal/logging"
	"github.com/R3E-Network/random-winner-game/internal/metrics"
	"github.com/R3E-Network/random-winner-game/internal/middleware"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
	pongWait   = pingPeriod + 10*time.Second
)

// StateSource provides the current UiState.
type StateSource interface {
	State() controller.UiState
}

// Options configures the handler.
type Options struct {
	Currency       string
	AllowedOrigins []string
	// RequestsPerSecond per client; zero disables limiting.
	RequestsPerSecond float64
}

type handler struct {
	source   StateSource
	hub      *Hub
	opts     Options
	log      *logging.Logger
	upgrader websocket.Upgrader
}

// NewHandler builds the status API router.
func NewHandler(source StateSource, hub *Hub, opts Options, log *logging.Logger) http.Handler {
	if log == nil {
		log = logging.NewDiscard("httpapi")
	}
	cors := middleware.NewCORSMiddleware(opts.AllowedOrigins)
	h := &handler{
		source: source,
		hub:    hub,
		opts:   opts,
		log:    log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" || sameOrigin(r, origin) {
					return true
				}
				return len(opts.AllowedOrigins) > 0 && cors.Allows(origin)
			},
		},
	}

	r := mux.NewRouter()
	r.Use(middleware.LoggingMiddleware(log))
	r.Use(middleware.MetricsMiddleware())
	r.Use(cors.Handler)
	if opts.RequestsPerSecond > 0 {
		r.Use(middleware.NewRateLimiter(opts.RequestsPerSecond, int(opts.RequestsPerSecond)+1, log).Handler)
	}

	r.Handle("/healthz", gzhttp.GzipHandler(http.HandlerFunc(h.health))).Methods(http.MethodGet, http.MethodOptions)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	r.Handle("/v1/state", gzhttp.GzipHandler(http.HandlerFunc(h.state))).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/v1/stream", h.stream).Methods(http.MethodGet)
	return r
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	st := h.source.State()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":           "ok",
		"phase":            st.Phase.String(),
		"wallet_connected": st.WalletConnected,
	})
}

func (h *handler) state(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, NewStateView(h.source.State(), h.opts.Currency))
}

func (h *handler) stream(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithContext(r.Context()).WithError(err).Debug("websocket upgrade failed")
		return
	}
	defer conn.Close()

	updates, cancel := h.hub.Subscribe()
	defer cancel()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	if err := h.push(conn); err != nil {
		return
	}
	for {
		select {
		case _, ok := <-updates:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
					time.Now().Add(writeWait))
				return
			}
			if err := h.push(conn); err != nil {
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-closed:
			return
		}
	}
}

func (h *handler) push(conn *websocket.Conn) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(NewStateView(h.source.State(), h.opts.Currency))
}

// sameOrigin reports whether origin names the host the request was sent to.
func sameOrigin(r *http.Request, origin string) bool {
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return false
	}
	return strings.EqualFold(u.Host, r.Host)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// Serve runs handler on addr until ctx is done, then shuts down gracefully.
func Serve(ctx context.Context, addr string, handler http.Handler, hub *Hub, log *logging.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv.RegisterOnShutdown(hub.Close)

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", addr).Info("status API listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}
