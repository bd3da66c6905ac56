// Package resources enforces per-IP and global session limits and evicts
// idle sessions.
package resources

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/antibyte/workbench/pkg/configuration"
	"github.com/antibyte/workbench/pkg/logger"
)

// Fehler, die von RegisterSession und CheckSessionLimits geliefert werden
var (
	ErrTooManySessions      = errors.New("maximum sessions reached")
	ErrTooManySessionsForIP = errors.New("maximum sessions per IP reached")
	ErrRateLimited          = errors.New("rate limit exceeded")
	ErrUnknownSession       = errors.New("session not found")
)

// SessionResourceManager verwaltet die Ressourcen für WebSocket-Sessions
type SessionResourceManager struct {
	mu       sync.RWMutex
	sessions map[string]*SessionResource // SessionID -> SessionResource

	maxSessions      int
	maxSessionsPerIP int
	maxMessages      int64
	maxBandwidth     int64
	onEvict          func(sessionID string)
	now              func() time.Time
}

// SessionResource verwaltet die Ressourcen einer einzelnen Session
type SessionResource struct {
	SessionID     string
	IPAddress     string
	CreatedAt     time.Time
	LastActivity  time.Time
	MessageCount  int64 // Nachrichten im aktuellen Fenster
	BandwidthUsed int64 // Bytes im aktuellen Fenster
	TotalMessages int64
	windowStart   time.Time
}

// NewSessionResourceManager erstellt einen neuen Session-Ressourcenmanager mit
// Limits aus der [Security]-Sektion.
func NewSessionResourceManager() *SessionResourceManager {
	return &SessionResourceManager{
		sessions:         make(map[string]*SessionResource),
		maxSessions:      configuration.GetInt("Security", "max_sessions", 200),
		maxSessionsPerIP: configuration.GetInt("Security", "max_sessions_per_ip", 5),
		maxMessages:      int64(configuration.GetInt("Security", "rate_limit_messages", 120)),
		maxBandwidth:     int64(configuration.GetInt("Security", "rate_limit_bandwidth", 65536)),
		now:              time.Now,
	}
}

// SetLimits overrides the configured session limits.
func (srm *SessionResourceManager) SetLimits(maxSessions, maxPerIP int) {
	srm.mu.Lock()
	defer srm.mu.Unlock()
	srm.maxSessions = maxSessions
	srm.maxSessionsPerIP = maxPerIP
}

// SetRateLimits overrides the per-minute message and byte limits.
func (srm *SessionResourceManager) SetRateLimits(messages, bytes int64) {
	srm.mu.Lock()
	defer srm.mu.Unlock()
	srm.maxMessages = messages
	srm.maxBandwidth = bytes
}

// OnEvict registers fn to be called for every session removed by the
// inactivity cleanup. fn runs without the manager lock held.
func (srm *SessionResourceManager) OnEvict(fn func(sessionID string)) {
	srm.mu.Lock()
	defer srm.mu.Unlock()
	srm.onEvict = fn
}

// RegisterSession registriert eine neue Session. Eine bereits bekannte Session
// wird nur als aktiv markiert.
func (srm *SessionResourceManager) RegisterSession(sessionID, ipAddress string) error {
	srm.mu.Lock()
	defer srm.mu.Unlock()

	now := srm.now()
	if existing, exists := srm.sessions[sessionID]; exists {
		existing.LastActivity = now
		existing.IPAddress = ipAddress
		return nil
	}

	if srm.maxSessions > 0 && len(srm.sessions) >= srm.maxSessions {
		logger.SecurityWarn("Session limit reached (%d), rejecting %s from %s", srm.maxSessions, sessionID, ipAddress)
		return fmt.Errorf("%w: %d", ErrTooManySessions, srm.maxSessions)
	}

	// Prüfe maximale Sessions pro IP
	ipSessionCount := 0
	for _, session := range srm.sessions {
		if session.IPAddress == ipAddress {
			ipSessionCount++
		}
	}
	if srm.maxSessionsPerIP > 0 && ipSessionCount >= srm.maxSessionsPerIP {
		logger.SecurityWarn("Per-IP session limit reached for %s: %d", ipAddress, ipSessionCount)
		return fmt.Errorf("%w for %s: %d", ErrTooManySessionsForIP, ipAddress, ipSessionCount)
	}

	srm.sessions[sessionID] = &SessionResource{
		SessionID:    sessionID,
		IPAddress:    ipAddress,
		CreatedAt:    now,
		LastActivity: now,
		windowStart:  now,
	}
	logger.SessionInfo("Session registered: %s (IP: %s, active: %d)", sessionID, ipAddress, len(srm.sessions))
	return nil
}

// UnregisterSession entfernt eine Session aus dem Ressourcenmanager
func (srm *SessionResourceManager) UnregisterSession(sessionID string) {
	srm.mu.Lock()
	defer srm.mu.Unlock()
	srm.unregisterLocked(sessionID)
}

func (srm *SessionResourceManager) unregisterLocked(sessionID string) bool {
	session, exists := srm.sessions[sessionID]
	if !exists {
		return false
	}
	delete(srm.sessions, sessionID)
	logger.SessionInfo("Session unregistered: %s (duration: %v, messages: %s)",
		sessionID, srm.now().Sub(session.CreatedAt).Round(time.Second), humanize.Comma(session.TotalMessages))
	return true
}

// CheckSessionLimits zählt eine eingehende Nachricht und prüft die
// Minutenlimits für Nachrichten und Bandbreite.
func (srm *SessionResourceManager) CheckSessionLimits(sessionID string, messageSize int) error {
	srm.mu.Lock()
	defer srm.mu.Unlock()

	session, exists := srm.sessions[sessionID]
	if !exists {
		return fmt.Errorf("%w: %s", ErrUnknownSession, sessionID)
	}

	now := srm.now()
	// Rate-Limiting-Fenster nach einer Minute zurücksetzen
	if now.Sub(session.windowStart) >= time.Minute {
		session.windowStart = now
		session.MessageCount = 0
		session.BandwidthUsed = 0
	}
	session.MessageCount++
	session.TotalMessages++
	session.BandwidthUsed += int64(messageSize)
	session.LastActivity = now

	if srm.maxMessages > 0 && session.MessageCount > srm.maxMessages {
		return fmt.Errorf("%w: %d messages per minute", ErrRateLimited, session.MessageCount)
	}
	if srm.maxBandwidth > 0 && session.BandwidthUsed > srm.maxBandwidth {
		return fmt.Errorf("%w: %s per minute", ErrRateLimited, humanize.Bytes(uint64(session.BandwidthUsed)))
	}
	return nil
}

// Touch marks a session active without counting a message.
func (srm *SessionResourceManager) Touch(sessionID string) {
	srm.mu.Lock()
	defer srm.mu.Unlock()
	if session, ok := srm.sessions[sessionID]; ok {
		session.LastActivity = srm.now()
	}
}

// GetSessionResource gibt eine Kopie der Ressourcen-Information zurück
func (srm *SessionResourceManager) GetSessionResource(sessionID string) (SessionResource, bool) {
	srm.mu.RLock()
	defer srm.mu.RUnlock()
	session, exists := srm.sessions[sessionID]
	if !exists {
		return SessionResource{}, false
	}
	return *session, true
}

// GetSessionStats gibt Statistiken über alle Sessions zurück
func (srm *SessionResourceManager) GetSessionStats() map[string]interface{} {
	srm.mu.RLock()
	defer srm.mu.RUnlock()

	totalMessages := int64(0)
	ipCounts := make(map[string]int)
	for _, session := range srm.sessions {
		totalMessages += session.TotalMessages
		ipCounts[session.IPAddress]++
	}
	return map[string]interface{}{
		"total_sessions": len(srm.sessions),
		"total_messages": totalMessages,
		"unique_ips":     len(ipCounts),
	}
}

// CleanupInactiveSessions entfernt Sessions, die länger als maxInactiveTime
// inaktiv waren, und liefert deren IDs.
func (srm *SessionResourceManager) CleanupInactiveSessions(maxInactiveTime time.Duration) []string {
	srm.mu.Lock()
	now := srm.now()
	var inactive []string
	for sessionID, session := range srm.sessions {
		if now.Sub(session.LastActivity) > maxInactiveTime {
			inactive = append(inactive, sessionID)
		}
	}
	for _, sessionID := range inactive {
		srm.unregisterLocked(sessionID)
	}
	onEvict := srm.onEvict
	srm.mu.Unlock()

	if len(inactive) > 0 {
		logger.SessionInfo("Cleaned up %d inactive sessions", len(inactive))
	}
	if onEvict != nil {
		for _, sessionID := range inactive {
			onEvict(sessionID)
		}
	}
	return inactive
}

// StartPeriodicCleanup startet die periodische Bereinigung inaktiver Sessions,
// bis ctx beendet wird.
func (srm *SessionResourceManager) StartPeriodicCleanup(ctx context.Context, interval time.Duration) {
	maxInactive := configuration.GetDuration("Security", "max_inactive_time", 30*time.Minute)
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				srm.CleanupInactiveSessions(maxInactive)
			case <-ctx.Done():
				return
			}
		}
	}()
}
