package terminal

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"unicode"

	"github.com/antibyte/workbench/pkg/shared"
)

// FrameValidator prüft Client-Frames, bevor sie den Interpreter erreichen.
// Inhalte werden nicht bereinigt: BASIC-Quelltext darf Backticks, "${" und
// ähnliches enthalten.
type FrameValidator struct {
	MaxDepth      int
	MaxKeys       int
	MaxStringLen  int
	MaxSessionLen int
}

// Grenzwerte für Client-Frames
const (
	MaxFrameDepth      = 4    // {type, content, sessionId} braucht nur eine Ebene
	MaxFrameKeys       = 16   // Maximale Anzahl Keys pro Objekt
	MaxFrameStringLen  = 8192 // Eine Eingabezeile inklusive eingefügter Programme
	MaxSessionIDLength = 128
)

var (
	ErrFrameTooDeep       = errors.New("frame nesting too deep")
	ErrFrameTooManyKeys   = errors.New("too many keys in frame")
	ErrFrameStringTooLong = errors.New("frame string too long")
	ErrFrameNotObject     = errors.New("frame is not a JSON object")
	ErrInvalidSessionID   = errors.New("invalid session ID")
)

// NewFrameValidator erstellt einen Validator mit den Standardgrenzen
func NewFrameValidator() *FrameValidator {
	return &FrameValidator{
		MaxDepth:      MaxFrameDepth,
		MaxKeys:       MaxFrameKeys,
		MaxStringLen:  MaxFrameStringLen,
		MaxSessionLen: MaxSessionIDLength,
	}
}

// IsJSONFrame reports whether data looks like a JSON object. Everything
// else is treated as a plain input line.
func IsJSONFrame(data []byte) bool {
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) > 0 && trimmed[0] == '{'
}

// Decode validiert einen JSON-Frame und dekodiert ihn.
func (v *FrameValidator) Decode(data []byte) (shared.ClientMessage, error) {
	var msg shared.ClientMessage

	var obj interface{}
	if err := json.Unmarshal(data, &obj); err != nil {
		return msg, fmt.Errorf("invalid JSON: %w", err)
	}
	if _, ok := obj.(map[string]interface{}); !ok {
		return msg, ErrFrameNotObject
	}
	if err := v.validateStructure(obj, 0); err != nil {
		return msg, err
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		return msg, fmt.Errorf("invalid frame: %w", err)
	}
	if msg.SessionID != "" {
		if err := v.ValidateSessionID(msg.SessionID); err != nil {
			return msg, err
		}
	}
	return msg, nil
}

// validateStructure validiert die JSON-Struktur rekursiv
func (v *FrameValidator) validateStructure(obj interface{}, depth int) error {
	if depth > v.MaxDepth {
		return ErrFrameTooDeep
	}

	switch val := obj.(type) {
	case map[string]interface{}:
		if len(val) > v.MaxKeys {
			return ErrFrameTooManyKeys
		}
		for key, value := range val {
			if len(key) > v.MaxStringLen {
				return ErrFrameStringTooLong
			}
			if err := v.validateStructure(value, depth+1); err != nil {
				return err
			}
		}
	case []interface{}:
		if len(val) > v.MaxKeys {
			return ErrFrameTooManyKeys
		}
		for _, item := range val {
			if err := v.validateStructure(item, depth+1); err != nil {
				return err
			}
		}
	case string:
		if len(val) > v.MaxStringLen {
			return ErrFrameStringTooLong
		}
	}
	return nil
}

// ValidateSessionID prüft die Gültigkeit einer Session-ID
func (v *FrameValidator) ValidateSessionID(sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("%w: empty", ErrInvalidSessionID)
	}
	if len(sessionID) > v.MaxSessionLen {
		return fmt.Errorf("%w: too long", ErrInvalidSessionID)
	}
	// Nur alphanumerische Zeichen und Bindestriche erlauben
	for _, r := range sessionID {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-' && r != '_' {
			return fmt.Errorf("%w: invalid characters", ErrInvalidSessionID)
		}
	}
	return nil
}
