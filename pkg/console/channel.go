package console

import (
	"sync"

	"github.com/antibyte/workbench/pkg/logger"
	"github.com/antibyte/workbench/pkg/shared"
)

// Channel queues output as shared.Message values for a websocket writer.
// Sends never block; when the buffer is full the message is dropped.
type Channel struct {
	mu        sync.Mutex
	ch        chan shared.Message
	sessionID string
	closed    bool
	dropped   int
}

// NewChannel creates a Channel with the given buffer size.
func NewChannel(sessionID string, buffer int) *Channel {
	if buffer <= 0 {
		buffer = 1
	}
	return &Channel{ch: make(chan shared.Message, buffer), sessionID: sessionID}
}

// Messages is the receive side for the writer goroutine.
func (c *Channel) Messages() <-chan shared.Message {
	return c.ch
}

// Send queues msg. Returns false if the message was dropped.
func (c *Channel) Send(msg shared.Message) bool {
	if msg.SessionID == "" {
		msg.SessionID = c.sessionID
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.ch <- msg:
		return true
	default:
		c.dropped++
		preview := msg.Content
		if len(preview) > 50 {
			preview = preview[:50] + "..."
		}
		logger.TerminalWarn("output buffer full for session %s, dropped type=%d content=%q", c.sessionID, msg.Type, preview)
		return false
	}
}

// Dropped reports how many messages were discarded.
func (c *Channel) Dropped() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dropped
}

// Close closes the receive side. Later sends are discarded.
func (c *Channel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.ch)
}

func (c *Channel) WriteLine(s string) {
	c.Send(shared.Message{Type: shared.MessageTypeText, Content: s})
}

func (c *Channel) WriteRaw(s string) {
	c.Send(shared.Message{Type: shared.MessageTypeText, Content: s, NoNewline: true})
}

func (c *Channel) WriteMarked(s string) {
	c.Send(shared.Message{Type: shared.MessageTypeMarkup, Content: RenderMarked(s)})
}

// WriteHTML sends pre-rendered markup. The caller is responsible for
// escaping.
func (c *Channel) WriteHTML(s string) {
	c.Send(shared.Message{Type: shared.MessageTypeMarkup, Content: s})
}

func (c *Channel) Clear() {
	c.Send(shared.Message{Type: shared.MessageTypeClear})
}

func (c *Channel) Beep() {
	c.Send(shared.Message{Type: shared.MessageTypeBeep})
}

// GuruMeditation asks the browser to show the failure screen.
func (c *Channel) GuruMeditation(reason string) {
	c.Send(shared.Message{
		Type:    shared.MessageTypeGuru,
		Content: "Guru Meditation #" + GuruCode,
		Params:  map[string]interface{}{"reason": reason, "code": GuruCode},
	})
}

func (c *Channel) MusicStart() {
	c.Send(shared.Message{Type: shared.MessageTypeSound, Params: map[string]interface{}{"action": shared.SoundMusicStart}})
}

func (c *Channel) MusicStop() {
	c.Send(shared.Message{Type: shared.MessageTypeSound, Params: map[string]interface{}{"action": shared.SoundMusicStop}})
}

// SetMode tells the browser which prompt style to use.
func (c *Channel) SetMode(mode string) {
	c.Send(shared.Message{Type: shared.MessageTypeMode, Mode: mode})
}
