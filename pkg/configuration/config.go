package configuration

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// LocalOverrideFile wird nach der Hauptdatei geladen und überschreibt einzelne Schlüssel.
const LocalOverrideFile = "settings.local.cfg"

// Config verwaltet die Anwendungskonfiguration
type Config struct {
	settings map[string]map[string]string
	filePath string
	mu       sync.RWMutex
}

var (
	globalConfig *Config
	once         sync.Once
)

// sectionOrder bestimmt die Reihenfolge beim Schreiben der Datei
var sectionOrder = []string{"Server", "BASIC", "Adventure", "Database", "JWT", "Network", "WebSocket", "Security", "TLS", "Debug"}

// Initialize initialisiert die globale Konfiguration
func Initialize(configPath string) error {
	var err error
	once.Do(func() {
		globalConfig, err = loadConfig(configPath)
		if err != nil {
			return
		}
		localPath := filepath.Join(filepath.Dir(configPath), LocalOverrideFile)
		if _, statErr := os.Stat(localPath); statErr == nil {
			// Fehler in der lokalen Datei sind nicht fatal, die Basiskonfiguration bleibt gültig
			_ = globalConfig.loadLocalConfig(localPath)
		}
	})
	return err
}

// loadConfig lädt die Konfiguration aus einer Datei
func loadConfig(filePath string) (*Config, error) {
	config := &Config{
		settings: make(map[string]map[string]string),
		filePath: filePath,
	}
	// Prüfe, ob die Datei existiert
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		config.createDefaultConfig()
		if err := config.saveToFile(); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
		return config, nil
	}

	file, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	if err := config.parse(file); err != nil {
		return nil, err
	}
	return config, nil
}

// Parse liest eine INI-Konfiguration aus r, ohne die globale Konfiguration zu berühren.
func Parse(r io.Reader) (*Config, error) {
	c := &Config{settings: make(map[string]map[string]string)}
	if err := c.parse(r); err != nil {
		return nil, err
	}
	return c, nil
}

// parse liest Sektionen und Schlüssel; spätere Werte überschreiben frühere.
func (c *Config) parse(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	currentSection := ""

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Überspringe leere Zeilen und Kommentare
		if line == "" || strings.HasPrefix(line, ";") || strings.HasPrefix(line, "#") {
			continue
		}

		// Sektion
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			currentSection = strings.TrimSpace(line[1 : len(line)-1])
			if c.settings[currentSection] == nil {
				c.settings[currentSection] = make(map[string]string)
			}
			continue
		}

		// Key-Value Pair
		if strings.Contains(line, "=") && currentSection != "" {
			parts := strings.SplitN(line, "=", 2)
			key := strings.TrimSpace(parts[0])
			value := strings.TrimSpace(parts[1])
			c.settings[currentSection][key] = value
		}
	}
	return scanner.Err()
}

// loadLocalConfig lädt lokale Konfigurationsüberschreibungen
func (c *Config) loadLocalConfig(filePath string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	file, err := os.Open(filePath)
	if err != nil {
		return err
	}
	defer file.Close()

	return c.parse(file)
}

// createDefaultConfig erstellt die Standard-Konfiguration mit nur den verwendeten Parametern
func (c *Config) createDefaultConfig() {
	c.settings["Server"] = map[string]string{
		"http_port":  "8080",
		"static_dir": "public",
	}

	// [BASIC] Interpreter-Grenzen
	c.settings["BASIC"] = map[string]string{
		"cycle_limit":   "3000",
		"yield_every":   "100",
		"max_sleep":     "10s",
		"echo_input":    "true",
		"output_buffer": "10000",
	}

	c.settings["Adventure"] = map[string]string{
		"room_dir":         "public/game",
		"game_file":        "public/game/game.json",
		"build_manifest":   "true",
		"default_win_room": "hall",
	}

	c.settings["Database"] = map[string]string{
		"driver": "sqlite",
		"dsn":    "workbench.db",
	}

	c.settings["JWT"] = map[string]string{
		"secret_key":       "",
		"token_expiration": "24h",
		"issuer":           "workbench",
	}

	c.settings["Network"] = map[string]string{
		"pong_timeout":        "90s",
		"write_wait_timeout":  "10s",
		"max_message_size_kb": "64",
		"max_channel_buffer":  "10000",
		"max_input_queue":     "64",
	}

	c.settings["WebSocket"] = map[string]string{
		"allowed_origins":   "http://localhost:8080,http://127.0.0.1:8080",
		"read_buffer_size":  "16384",
		"write_buffer_size": "16384",
	}

	c.settings["Security"] = map[string]string{
		"max_sessions":         "200",
		"max_sessions_per_ip":  "5",
		"max_inactive_time":    "30m",
		"rate_limit_messages":  "120",
		"rate_limit_bandwidth": "65536",
	}

	c.settings["TLS"] = map[string]string{
		"enable_tls":           "false",
		"enable_letsencrypt":   "false",
		"domain":               "",
		"letsencrypt_email":    "",
		"cert_cache_dir":       "./certs",
		"force_https_redirect": "false",
		"cert_file":            "./certs/server.crt",
		"key_file":             "./certs/server.key",
		"http_port":            "8080",
		"https_port":           "8443",
		"generate_self_signed": "false",
	}

	// [Debug] Sektion
	c.settings["Debug"] = map[string]string{
		"enable_debug_logging": "true",
		"log_level":            "INFO",
		"log_file":             "debug.log",
		"max_log_size_mb":      "10",
		"log_rotation_count":   "3",
		// Selektive Logging-Bereiche
		"log_basic":     "false",
		"log_adventure": "false",
		"log_websocket": "false",
		"log_terminal":  "false",
		"log_auth":      "true",
		"log_database":  "true",
		"log_session":   "true",
		"log_security":  "true",
		"log_config":    "true",
		"log_general":   "true",
	}
}

// saveToFile speichert die aktuelle Konfiguration in die Datei
func (c *Config) saveToFile() error {
	// Erstelle Verzeichnis falls es nicht existiert
	dir := filepath.Dir(c.filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	file, err := os.Create(c.filePath)
	if err != nil {
		return err
	}
	defer file.Close()

	return c.write(file)
}

// write schreibt alle bekannten Sektionen in fester Reihenfolge, danach unbekannte alphabetisch.
func (c *Config) write(w io.Writer) error {
	bw := bufio.NewWriter(w)
	bw.WriteString("; Workbench Configuration File\n")
	bw.WriteString("; Generated automatically - modify with care\n")
	bw.WriteString(";\n\n")

	sections := append([]string(nil), sectionOrder...)
	var extra []string
	for name := range c.settings {
		known := false
		for _, s := range sectionOrder {
			if s == name {
				known = true
				break
			}
		}
		if !known {
			extra = append(extra, name)
		}
	}
	sort.Strings(extra)
	sections = append(sections, extra...)

	for _, section := range sections {
		settings, exists := c.settings[section]
		if !exists {
			continue
		}
		fmt.Fprintf(bw, "[%s]\n", section)

		keys := make([]string, 0, len(settings))
		for key := range settings {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			fmt.Fprintf(bw, "%s = %s\n", key, settings[key])
		}
		bw.WriteString("\n")
	}
	return bw.Flush()
}

// lookup liefert einen Rohwert aus dieser Konfiguration
func (c *Config) lookup(section, key string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if sectionMap, exists := c.settings[section]; exists {
		if value, exists := sectionMap[key]; exists {
			return value, true
		}
	}
	return "", false
}

// GetString gibt einen String-Wert aus der Konfiguration zurück
func GetString(section, key, defaultValue string) string {
	if globalConfig == nil {
		return defaultValue
	}
	if value, ok := globalConfig.lookup(section, key); ok {
		return value
	}
	return defaultValue
}

// GetInt gibt einen Integer-Wert aus der Konfiguration zurück
func GetInt(section, key string, defaultValue int) int {
	str := GetString(section, key, "")
	if str == "" {
		return defaultValue
	}

	if value, err := strconv.Atoi(str); err == nil {
		return value
	}

	return defaultValue
}

// GetFloat gibt einen Float-Wert aus der Konfiguration zurück
func GetFloat(section, key string, defaultValue float64) float64 {
	str := GetString(section, key, "")
	if str == "" {
		return defaultValue
	}

	if value, err := strconv.ParseFloat(str, 64); err == nil {
		return value
	}

	return defaultValue
}

// GetBool gibt einen Boolean-Wert aus der Konfiguration zurück
func GetBool(section, key string, defaultValue bool) bool {
	str := GetString(section, key, "")
	if str == "" {
		return defaultValue
	}

	if value, err := strconv.ParseBool(str); err == nil {
		return value
	}

	return defaultValue
}

// GetDuration gibt einen Duration-Wert aus der Konfiguration zurück
func GetDuration(section, key string, defaultValue time.Duration) time.Duration {
	str := GetString(section, key, "")
	if str == "" {
		return defaultValue
	}

	if value, err := time.ParseDuration(str); err == nil {
		return value
	}

	return defaultValue
}

// GetSection returns all key-value pairs from a configuration section
func GetSection(sectionName string) map[string]string {
	result := make(map[string]string)
	if globalConfig == nil {
		return result
	}

	globalConfig.mu.RLock()
	defer globalConfig.mu.RUnlock()

	for key, value := range globalConfig.settings[sectionName] {
		result[key] = value
	}
	return result
}

// SetString setzt einen String-Wert in der Konfiguration
func SetString(section, key, value string) {
	if globalConfig == nil {
		return
	}

	globalConfig.mu.Lock()
	defer globalConfig.mu.Unlock()

	if globalConfig.settings[section] == nil {
		globalConfig.settings[section] = make(map[string]string)
	}

	globalConfig.settings[section][key] = value
}

// Save speichert die aktuelle Konfiguration in die Datei
func Save() error {
	if globalConfig == nil {
		return fmt.Errorf("configuration not initialized")
	}

	globalConfig.mu.RLock()
	defer globalConfig.mu.RUnlock()

	return globalConfig.saveToFile()
}
