package shared

// MessageType definiert den Typ einer Nachricht für die WebSocket-Kommunikation.
type MessageType int

// Die Werte entsprechen der RESPONSE_TYPE_MAP des Frontends.
const (
	MessageTypeText         MessageType = 0  // Textausgabe
	MessageTypeClear        MessageType = 1  // Bildschirm löschen
	MessageTypeBeep         MessageType = 2  // Beep-Ton
	MessageTypeSound        MessageType = 5  // Musik starten/stoppen (params.action)
	MessageTypeMode         MessageType = 7  // Moduswechsel ("basic", "adventure")
	MessageTypeSession      MessageType = 8  // Session-ID und Token
	MessageTypeInputControl MessageType = 9  // Eingabe aktivieren/deaktivieren
	MessageTypeMarkup       MessageType = 32 // Vorgerendertes HTML (markierter Text, Adventure)
	MessageTypeGuru         MessageType = 33 // Guru Meditation nach Zyklus-Limit
)

// Sound-Aktionen für MessageTypeSound
const (
	SoundMusicStart = "music_start"
	SoundMusicStop  = "music_stop"
)

// Message repräsentiert eine Nachricht, die über WebSocket gesendet oder empfangen wird.
type Message struct {
	Type    MessageType `json:"type"`
	Content string      `json:"content"`
	// Für TEXT - verhindert automatischen Zeilenumbruch im Frontend
	NoNewline bool `json:"noNewline"`

	// Für SESSION
	SessionID string `json:"sessionId,omitempty"`
	Token     string `json:"token,omitempty"`

	// Für SOUND und GURU
	Params map[string]interface{} `json:"params,omitempty"`

	// Für INPUT_CONTROL
	InputEnabled *bool  `json:"inputEnabled,omitempty"`
	PromptSymbol string `json:"promptSymbol,omitempty"`

	// Für MODE
	Mode string `json:"mode,omitempty"`
}

// ClientMessage ist ein Frame vom Browser an den Server.
type ClientMessage struct {
	Type      string `json:"type"`
	Content   string `json:"content"`
	SessionID string `json:"sessionId,omitempty"`
}

// Bekannte ClientMessage-Typen
const (
	ClientTypeInput     = "input"
	ClientTypeBreak     = "break"
	ClientTypeKeepalive = "keepalive"
	ClientTypePing      = "ping"

	// BreakContent wird von älteren Clients als Inhalt statt als Typ geschickt.
	BreakContent = "__BREAK__"
)
