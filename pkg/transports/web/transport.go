package web

import (
	"context"
	"encoding/json"
	"errors"
	"iter"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/harunnryd/mcpchat/pkg/errorsx"
	"github.com/harunnryd/mcpchat/pkg/llm"
	"github.com/harunnryd/mcpchat/pkg/metrics"
	"github.com/harunnryd/mcpchat/pkg/orchestrator"
	"github.com/harunnryd/mcpchat/pkg/redact"
	"github.com/harunnryd/mcpchat/pkg/session"
)

const (
	usernameCookie = "username"
	guestUser      = "Guest"

	authFailedMessage    = "Authentication failed. Please log in again."
	invalidFrameMessage  = "Invalid message format."
	writeTimeout         = 10 * time.Second
	defaultSendBuffer    = 64
	defaultRequestBuffer = 8
)

type Config struct {
	Addr            string   `mapstructure:"addr"`
	WebsocketPath   string   `mapstructure:"ws_path"`
	AllowAnyOrigin  bool     `mapstructure:"allow_any_origin"`
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	DefaultProvider string   `mapstructure:"default_provider"`
	SendBuffer      int      `mapstructure:"send_buffer"`
}

func (c Config) withDefaults() Config {
	if c.Addr == "" {
		c.Addr = ":3000"
	}
	if c.WebsocketPath == "" {
		c.WebsocketPath = "/ws"
	}
	if c.DefaultProvider == "" {
		c.DefaultProvider = "openai"
	}
	if c.SendBuffer <= 0 {
		c.SendBuffer = defaultSendBuffer
	}
	if !c.AllowAnyOrigin && len(c.AllowedOrigins) == 0 {
		c.AllowAnyOrigin = true
	}
	return c
}

// TurnHandler runs chat turns. *orchestrator.Orchestrator implements it.
type TurnHandler interface {
	HandleTurn(ctx context.Context, s *session.Session, req orchestrator.Request) iter.Seq[orchestrator.Event]
}

type Deps struct {
	Turns     TurnHandler
	Sessions  *session.Manager
	Tools     llm.ToolProvider
	Providers *llm.Registry
	Observer  metrics.Observer
	Logger    *slog.Logger
}

// Transport serves the browser chat: login pages, the chat WebSocket,
// and the status endpoints.
type Transport struct {
	cfg      Config
	deps     Deps
	upgrader websocket.Upgrader
	server   *http.Server
	logger   *slog.Logger

	mu      sync.Mutex
	clients map[*client]struct{}
	turns   sync.WaitGroup

	draining atomic.Bool
}

func New(cfg Config, deps Deps) *Transport {
	cfg = cfg.withDefaults()
	if deps.Observer == nil {
		deps.Observer = metrics.NoopObserver{}
	}
	if deps.Providers == nil {
		deps.Providers = llm.NewRegistry()
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	t := &Transport{
		cfg:     cfg,
		deps:    deps,
		logger:  deps.Logger,
		clients: make(map[*client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
	}
	t.upgrader.CheckOrigin = t.checkOrigin
	return t
}

func (t *Transport) Name() string { return "web" }

func (t *Transport) ReadyFields() map[string]any {
	return map[string]any{
		"addr":    t.cfg.Addr,
		"ws_path": t.cfg.WebsocketPath,
	}
}

// Handler returns the HTTP routes without starting a listener.
func (t *Transport) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/login", t.handleLogin)
	mux.HandleFunc("/index", t.handleIndex)
	mux.HandleFunc("/{$}", t.handleIndex)
	mux.HandleFunc(t.cfg.WebsocketPath, t.handleWS)
	mux.HandleFunc("/health", t.handleHealth)
	mux.HandleFunc("/api/ui-config", t.handleUIConfig)
	return mux
}

func (t *Transport) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	t.server = &http.Server{
		Addr:              t.cfg.Addr,
		ReadHeaderTimeout: 5 * time.Second,
		Handler:           t.Handler(),
	}
	go func() {
		<-ctx.Done()
		_ = t.server.Close()
	}()
	go func() {
		if err := t.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			t.logger.Error("web_transport_server_error", "error", err.Error())
		}
	}()
	return nil
}

// Stop refuses new connections, closes open ones and waits for running
// turns to finish or ctx to expire.
func (t *Transport) Stop(ctx context.Context) error {
	t.draining.Store(true)
	if t.server != nil {
		_ = t.server.Shutdown(ctx)
	}
	t.mu.Lock()
	for c := range t.clients {
		c.shutdown()
	}
	t.mu.Unlock()

	done := make(chan struct{})
	go func() {
		t.turns.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// chatRequest is one client frame on the chat socket.
type chatRequest struct {
	Text       string `json:"text"`
	UseMCP     bool   `json:"use_mcp"`
	Provider   string `json:"llm_provider"`
	Model      string `json:"llm_model"`
	Connection string `json:"db_connection_name"`
}

func (t *Transport) handleWS(w http.ResponseWriter, r *http.Request) {
	if t.draining.Load() {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	user := username(r)
	conn, err := t.upgrader.Upgrade(w, r, nil)
	if err != nil {
		t.logger.Warn("ws_upgrade_failed", "error", err)
		return
	}
	if user == "" || user == guestUser {
		t.rejectAuth(conn)
		return
	}

	c := newClient(conn, t.cfg.SendBuffer)
	t.track(c)
	s, _ := t.deps.Sessions.GetOrCreate("", user)
	logger := t.logger.With("session_id", s.ID, "user", redact.Text(user))
	logger.Info("ws_connected")
	t.record(metrics.EventWSConnect, s.ID)

	defer func() {
		c.shutdown()
		t.untrack(c)
		t.deps.Sessions.Remove(s.ID)
		t.record(metrics.EventWSDisconnect, s.ID)
		logger.Info("ws_disconnected")
	}()

	go c.writeLoop(logger)
	reqs := make(chan chatRequest, defaultRequestBuffer)
	go t.readLoop(c, reqs, logger)

	for {
		select {
		case req, ok := <-reqs:
			if !ok {
				return
			}
			t.runTurn(c, s, req)
		case <-c.done:
			return
		}
	}
}

func (t *Transport) rejectAuth(conn *websocket.Conn) {
	defer conn.Close()
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteJSON(orchestrator.Error(authFailedMessage)); err != nil {
		t.logger.Warn("ws_auth_reply_failed", "error", err,
			"reason_code", string(errorsx.ReasonTransportSend))
		return
	}
	msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeTimeout))
	t.logger.Info("ws_auth_rejected", "reason_code", string(errorsx.ReasonTransportAuth))
}

// readLoop decodes frames until the connection ends. Frames with empty
// text are ignored.
func (t *Transport) readLoop(c *client, reqs chan<- chatRequest, logger *slog.Logger) {
	defer close(reqs)
	defer c.shutdown()
	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn("ws_read_error", "error", err)
			}
			return
		}
		var req chatRequest
		if err := json.Unmarshal(msg, &req); err != nil {
			logger.Warn("ws_frame_invalid", "error", err)
			_ = c.enqueue(orchestrator.Error(invalidFrameMessage))
			continue
		}
		if strings.TrimSpace(req.Text) == "" {
			continue
		}
		select {
		case reqs <- req:
		case <-c.done:
			return
		}
	}
}

// runTurn streams one turn to c. The turn does not inherit the request
// context, so a disconnect lets the in-flight call finish and the turn
// stops at its next event.
func (t *Transport) runTurn(c *client, s *session.Session, req chatRequest) {
	t.turns.Add(1)
	defer t.turns.Done()
	provider := req.Provider
	if strings.TrimSpace(provider) == "" {
		provider = t.cfg.DefaultProvider
	}
	turn := orchestrator.Request{
		Text:       req.Text,
		UseTools:   req.UseMCP,
		Provider:   provider,
		Model:      req.Model,
		Connection: req.Connection,
	}
	for ev := range t.deps.Turns.HandleTurn(context.Background(), s, turn) {
		if err := c.enqueue(ev); err != nil {
			return
		}
	}
}

func (t *Transport) track(c *client) {
	t.mu.Lock()
	t.clients[c] = struct{}{}
	t.mu.Unlock()
}

func (t *Transport) untrack(c *client) {
	t.mu.Lock()
	delete(t.clients, c)
	t.mu.Unlock()
}

func (t *Transport) record(name, sessionID string) {
	t.deps.Observer.RecordEvent(metrics.MetricsEvent{
		Name:  name,
		Time:  time.Now(),
		Value: 1,
		Tags:  map[string]string{"session_id": sessionID, "component": "web"},
	})
}

func (t *Transport) checkOrigin(r *http.Request) bool {
	if t.cfg.AllowAnyOrigin {
		return true
	}
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		return true
	}
	origin = strings.TrimRight(origin, "/")
	originHost := strings.TrimPrefix(strings.TrimPrefix(origin, "https://"), "http://")
	for _, allowed := range t.cfg.AllowedOrigins {
		a := strings.TrimRight(strings.TrimSpace(allowed), "/")
		if a == "" {
			continue
		}
		if strings.HasPrefix(a, "http://") || strings.HasPrefix(a, "https://") {
			if strings.EqualFold(a, origin) {
				return true
			}
			continue
		}
		if strings.EqualFold(a, originHost) {
			return true
		}
	}
	return false
}

// username reads the login cookie, or "" when absent.
func username(r *http.Request) string {
	ck, err := r.Cookie(usernameCookie)
	if err != nil {
		return ""
	}
	name, err := url.QueryUnescape(ck.Value)
	if err != nil {
		return ck.Value
	}
	return strings.TrimSpace(name)
}
