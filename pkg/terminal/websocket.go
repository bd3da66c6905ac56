package terminal

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/antibyte/workbench/pkg/configuration"
	"github.com/antibyte/workbench/pkg/logger"
	"github.com/antibyte/workbench/pkg/resources"
	"github.com/antibyte/workbench/pkg/shared"
)

// WebSocket-Konfigurationswerte aus der [Network] Sektion

func getWriteWait() time.Duration {
	return configuration.GetDuration("Network", "write_wait_timeout", 10*time.Second)
}

func getPongWait() time.Duration {
	return configuration.GetDuration("Network", "pong_timeout", 90*time.Second)
}

func getPingPeriod() time.Duration {
	return (getPongWait() * 9) / 10
}

func getMaxMessageSize() int64 {
	return int64(configuration.GetInt("Network", "max_message_size_kb", 64) * 1024)
}

func getMaxChannelBuffer() int {
	return configuration.GetInt("Network", "max_channel_buffer", 10000)
}

func getMaxInputQueue() int {
	return configuration.GetInt("Network", "max_input_queue", 64)
}

// inputItem ist ein Eingabe-Frame (in Zeilen zerlegt) oder eine Break-Marke.
type inputItem struct {
	lines []string
	brk   bool
	gen   uint64 // Break-Zähler beim Einreihen
}

// readPump liest Frames vom WebSocket und leitet sie an den Interpreter
// weiter. Beim Verlassen wird der Client aufgeräumt.
func (c *Client) readPump() {
	defer func() {
		if r := recover(); r != nil {
			logger.WebSocketError("panic in readPump for session %s: %v", c.sessionID, r)
		}
		c.close()
	}()

	c.conn.SetReadLimit(getMaxMessageSize())
	c.conn.SetReadDeadline(time.Now().Add(getPongWait()))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(getPongWait()))
		c.handler.resources.Touch(c.sessionID)
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNoStatusReceived) {
				logger.WebSocketWarn("unexpected close for session %s: %v", c.sessionID, err)
			} else {
				logger.WebSocketDebug("connection closed for session %s: %v", c.sessionID, err)
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		if err := c.handler.resources.CheckSessionLimits(c.sessionID, len(message)); err != nil {
			if errors.Is(err, resources.ErrRateLimited) {
				logger.SecurityWarn("session %s: %v", c.sessionID, err)
				c.out.WriteLine("?Rate limit exceeded")
				continue
			}
			logger.SessionWarn("dropping connection: %v", err)
			return
		}
		c.handleFrame(message)
	}
}

// handleFrame dispatches one client frame. JSON objects carry a type,
// anything else is a plain input line.
func (c *Client) handleFrame(message []byte) {
	if !IsJSONFrame(message) {
		c.handleInput(string(message))
		return
	}

	msg, err := c.handler.validator.Decode(message)
	if err != nil {
		logger.SecurityWarn("invalid frame from session %s: %v", c.sessionID, err)
		c.out.WriteLine("?Invalid input format")
		return
	}

	switch msg.Type {
	case shared.ClientTypeKeepalive, shared.ClientTypePing:
		return
	case shared.ClientTypeBreak:
		c.handleBreak()
	case shared.ClientTypeInput, "":
		if msg.Content == shared.BreakContent {
			c.handleBreak()
			return
		}
		c.handleInput(msg.Content)
	default:
		logger.WebSocketDebug("ignoring frame type %q from session %s", msg.Type, c.sessionID)
	}
}

// handleInput queues a (possibly pasted) input frame for inputPump.
func (c *Client) handleInput(content string) {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, "\r")
	}
	c.enqueue(inputItem{lines: lines, gen: c.breaks.Load()})
}

// handleBreak stoppt den laufenden Job sofort und verwirft alles, was vor
// dem Break eingereiht wurde. Die Break-Marke fängt einen Job ab, den
// inputPump gerade noch gestartet hat.
func (c *Client) handleBreak() {
	c.breaks.Add(1)
	if !c.interp.Break() {
		c.enqueue(inputItem{brk: true})
	}
}

func (c *Client) enqueue(item inputItem) {
	select {
	case c.input <- item:
	default:
		logger.SecurityWarn("input queue full for session %s, frame dropped", c.sessionID)
		c.out.WriteLine("?Input buffer full")
	}
}

// inputPump feeds queued frames to the interpreter in order. The lines of
// one frame wait for each other, so a pasted program behaves as if typed
// line by line. Lines queued before a Break are dropped.
func (c *Client) inputPump() {
	defer func() {
		if r := recover(); r != nil {
			logger.WebSocketError("panic in inputPump for session %s: %v", c.sessionID, r)
		}
	}()

	for {
		select {
		case item := <-c.input:
			if item.brk {
				c.interp.Break()
				continue
			}
			for i, line := range item.lines {
				if i > 0 {
					c.interp.Wait(c.ctx)
					if c.ctx.Err() != nil {
						return
					}
				}
				if c.breaks.Load() != item.gen {
					logger.WebSocketDebug("session %s: %d queued line(s) dropped after break", c.sessionID, len(item.lines)-i)
					break
				}
				c.interp.HandleLine(line)
			}
		case <-c.shutdown:
			return
		}
	}
}

// writePump schreibt ausgehende Nachrichten und Pings auf den WebSocket
func (c *Client) writePump() {
	ticker := time.NewTicker(getPingPeriod())
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.out.Messages():
			c.conn.SetWriteDeadline(time.Now().Add(getWriteWait()))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.writeMessage(msg); err != nil {
				logger.WebSocketDebug("write failed for session %s: %v", c.sessionID, err)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(getWriteWait()))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				logger.WebSocketDebug("ping failed for session %s: %v", c.sessionID, err)
				return
			}
		case <-c.shutdown:
			return
		}
	}
}

// writeMessage sendet eine Nachricht als JSON-Textframe
func (c *Client) writeMessage(msg shared.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		logger.WebSocketError("failed to marshal message type %d: %v", msg.Type, err)
		return nil
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}
