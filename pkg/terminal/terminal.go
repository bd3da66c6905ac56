// Package terminal hosts one BASIC session per websocket connection.
package terminal

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/antibyte/workbench/pkg/adventure"
	"github.com/antibyte/workbench/pkg/auth"
	"github.com/antibyte/workbench/pkg/basic"
	"github.com/antibyte/workbench/pkg/configuration"
	"github.com/antibyte/workbench/pkg/console"
	"github.com/antibyte/workbench/pkg/logger"
	"github.com/antibyte/workbench/pkg/resources"
	"github.com/antibyte/workbench/pkg/shared"
)

// Modus-Konstanten für MessageTypeMode
const (
	ModeBasic     = "basic"
	ModeAdventure = "adventure"
)

// storeTimeout begrenzt jeden Datenbankzugriff aus dem Handler
const storeTimeout = 5 * time.Second

// Store persists programs, adventure saves and session activity.
// *store.Store satisfies it.
type Store interface {
	adventure.SaveStore
	SaveProgram(ctx context.Context, sessionID string, program map[int]string) error
	LoadProgram(ctx context.Context, sessionID string) (map[int]string, error)
	TouchSession(ctx context.Context, sessionID, remoteAddr string) error
}

// TerminalHandler verwaltet WebSocket-Verbindungen und Terminal-Sitzungen
type TerminalHandler struct {
	store     Store // darf nil sein
	resources *resources.SessionResourceManager
	source    adventure.Source
	upgrader  websocket.Upgrader
	validator *FrameValidator

	mutex   sync.RWMutex
	clients map[string]*Client // SessionID -> Client
}

// Client repräsentiert einen verbundenen WebSocket-Client
type Client struct {
	conn      *websocket.Conn
	handler   *TerminalHandler
	sessionID string
	ipAddress string

	out    *console.Channel
	interp *basic.Interpreter
	engine *adventure.Engine

	input  chan inputItem
	breaks atomic.Uint64
	ctx    context.Context
	cancel context.CancelFunc

	closeOnce sync.Once
	shutdown  chan struct{}
}

// NewTerminalHandler erstellt einen neuen TerminalHandler. st may be nil,
// in which case nothing survives a reconnect.
func NewTerminalHandler(st Store, rm *resources.SessionResourceManager, source adventure.Source) *TerminalHandler {
	if rm == nil {
		rm = resources.NewSessionResourceManager()
	}
	h := &TerminalHandler{
		store:     st,
		resources: rm,
		source:    source,
		validator: NewFrameValidator(),
		clients:   make(map[string]*Client),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  configuration.GetInt("WebSocket", "read_buffer_size", 16384),
			WriteBufferSize: configuration.GetInt("WebSocket", "write_buffer_size", 16384),
			CheckOrigin:     checkOrigin,
		},
	}
	rm.OnEvict(h.evict)
	return h
}

// checkOrigin akzeptiert nur Origins aus [WebSocket] allowed_origins
func checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		logger.SecurityWarn("WebSocket request without Origin header rejected")
		return false
	}

	allowed := configuration.GetString("WebSocket", "allowed_origins", "http://localhost:8080,http://127.0.0.1:8080")
	for _, a := range strings.Split(allowed, ",") {
		a = strings.TrimSpace(a)
		if a == "*" || a == origin {
			return true
		}
	}
	logger.SecurityWarn("WebSocket request from disallowed origin rejected: %s", origin)
	return false
}

// HandleWebSocket verarbeitet eingehende WebSocket-Verbindungen
func (h *TerminalHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	ipAddress := auth.ClientIP(r)
	logger.WebSocketDebug("connection attempt from %s, origin %s", ipAddress, r.Header.Get("Origin"))

	sessionID, resumed := h.sessionFromRequest(r)

	// Eine zweite Verbindung mit demselben Token übernimmt die Session
	if old := h.client(sessionID); old != nil {
		logger.SessionInfo("session %s taken over by new connection from %s", sessionID, ipAddress)
		old.close()
	}

	if err := h.resources.RegisterSession(sessionID, ipAddress); err != nil {
		logger.SecurityWarn("session rejected for %s: %v", ipAddress, err)
		http.Error(w, "Server overloaded", http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade hat bereits eine HTTP-Antwort geschrieben
		logger.WebSocketWarn("upgrade failed for %s: %v", ipAddress, err)
		h.resources.UnregisterSession(sessionID)
		return
	}

	token, err := auth.GenerateSessionToken(sessionID)
	if err != nil {
		logger.AuthError("failed to issue token for %s: %v", sessionID, err)
	}

	client := h.newClient(conn, sessionID, ipAddress)

	h.mutex.Lock()
	h.clients[sessionID] = client
	count := len(h.clients)
	h.mutex.Unlock()
	logger.WebSocketInfo("session %s established for %s (resumed=%t, %d clients)", sessionID, ipAddress, resumed, count)

	go client.writePump()
	go client.inputPump()
	go client.readPump()

	client.out.Send(shared.Message{Type: shared.MessageTypeSession, SessionID: sessionID, Token: token})
	client.out.SetMode(ModeBasic)
	client.interp.Banner()
}

// sessionFromRequest reuses the session of a valid token, otherwise it
// starts a new one.
func (h *TerminalHandler) sessionFromRequest(r *http.Request) (string, bool) {
	tokenString, err := auth.ExtractTokenFromRequest(r)
	if err == nil {
		claims, err := auth.ValidateSessionToken(tokenString)
		if err == nil && h.validator.ValidateSessionID(claims.SessionID) == nil {
			return claims.SessionID, true
		}
		logger.AuthDebug("ignoring token on websocket request: %v", err)
	}
	return auth.NewSessionID(), false
}

// newClient baut Interpreter und Adventure für eine Session zusammen und
// lädt ein gespeichertes Programm.
func (h *TerminalHandler) newClient(conn *websocket.Conn, sessionID, ipAddress string) *Client {
	c := &Client{
		conn:      conn,
		handler:   h,
		sessionID: sessionID,
		ipAddress: ipAddress,
		out:       console.NewChannel(sessionID, getMaxChannelBuffer()),
		input:     make(chan inputItem, getMaxInputQueue()),
		shutdown:  make(chan struct{}),
	}
	c.ctx, c.cancel = context.WithCancel(context.Background())

	engineOpts := []adventure.Option{
		adventure.WithModeListener(func(active bool) {
			if active {
				c.out.SetMode(ModeAdventure)
			} else {
				c.out.SetMode(ModeBasic)
			}
		}),
	}
	interpOpts := []basic.Option{}
	if h.store != nil {
		engineOpts = append(engineOpts, adventure.WithSaveStore(h.store, sessionID))
		interpOpts = append(interpOpts, basic.WithProgramListener(func(program map[int]string) {
			h.saveProgram(sessionID, program)
		}))
	}
	c.engine = adventure.NewEngine(c.out, h.source, engineOpts...)
	interpOpts = append(interpOpts, basic.WithAdventure(c.engine))
	c.interp = basic.NewInterpreter(c.out, interpOpts...)

	if h.store == nil {
		return c
	}
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	if err := h.store.TouchSession(ctx, sessionID, ipAddress); err != nil {
		logger.DatabaseError("failed to record session %s: %v", sessionID, err)
	}
	program, err := h.store.LoadProgram(ctx, sessionID)
	if err != nil {
		logger.DatabaseError("failed to load program for %s: %v", sessionID, err)
		return c
	}
	if len(program) > 0 {
		if err := c.interp.LoadProgram(program); err != nil {
			logger.SessionWarn("failed to restore program for %s: %v", sessionID, err)
		} else {
			logger.SessionInfo("restored %d program line(s) for %s", len(program), sessionID)
		}
	}
	return c
}

func (h *TerminalHandler) saveProgram(sessionID string, program map[int]string) {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	if err := h.store.SaveProgram(ctx, sessionID, program); err != nil {
		logger.DatabaseError("failed to save program for %s: %v", sessionID, err)
	}
}

func (h *TerminalHandler) client(sessionID string) *Client {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return h.clients[sessionID]
}

// evict is called by the resource manager for idle sessions.
func (h *TerminalHandler) evict(sessionID string) {
	if c := h.client(sessionID); c != nil {
		logger.SessionInfo("closing idle session %s", sessionID)
		c.close()
	}
}

// ClientCount returns the number of connected clients.
func (h *TerminalHandler) ClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// Shutdown schließt alle Verbindungen und speichert die Programme.
func (h *TerminalHandler) Shutdown() {
	h.mutex.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mutex.RUnlock()

	for _, c := range clients {
		c.close()
	}
	logger.WebSocketInfo("closed %d client(s) on shutdown", len(clients))
}

// close räumt den Client genau einmal auf: Programm speichern, Jobs
// abbrechen, Ausgabe schließen, Session freigeben.
func (c *Client) close() {
	c.closeOnce.Do(func() {
		h := c.handler
		// Map und Ressourcen gemeinsam freigeben, damit eine übernehmende
		// Verbindung ihre Registrierung nicht verliert
		h.mutex.Lock()
		if h.clients[c.sessionID] == c {
			delete(h.clients, c.sessionID)
			h.resources.UnregisterSession(c.sessionID)
		}
		h.mutex.Unlock()

		c.cancel()
		c.interp.Shutdown()
		c.engine.Stop()
		if h.store != nil {
			h.saveProgram(c.sessionID, c.interp.Program())
		}
		close(c.shutdown)
		c.out.Close()
		c.conn.Close()
		logger.WebSocketInfo("session %s closed (%d messages dropped)", c.sessionID, c.out.Dropped())
	})
}
