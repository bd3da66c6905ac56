// Package adventure implements the QUEST text adventure: a room graph
// loaded from game.json, a verb parser and save codes.
package adventure

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"html"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/antibyte/workbench/pkg/configuration"
	"github.com/antibyte/workbench/pkg/logger"
)

// Output receives adventure text. WriteHTML gets pre-escaped markup.
type Output interface {
	WriteLine(s string)
	WriteHTML(s string)
	Clear()
}

// Music is optionally implemented by an Output that can play the
// background track.
type Music interface {
	MusicStart()
	MusicStop()
}

// SaveStore persists save codes per session. LatestSave returns "" and a
// nil error when the session has never saved.
type SaveStore interface {
	PutSave(ctx context.Context, sessionID, code string) error
	LatestSave(ctx context.Context, sessionID string) (string, error)
}

var (
	dirShort = map[string]string{"N": "NORTH", "S": "SOUTH", "E": "EAST", "W": "WEST", "U": "UP", "D": "DOWN"}
	dirNames = map[string]bool{"NORTH": true, "SOUTH": true, "EAST": true, "WEST": true, "UP": true, "DOWN": true}
	reLookAt = regexp.MustCompile(`(?i)^AT\s+`)
)

// Engine is one player's game. It is inactive until Start succeeds and
// after QUIT.
type Engine struct {
	mu     sync.Mutex
	out    Output
	source Source

	echo           bool
	defaultWinRoom string
	saves          SaveStore
	sessionID      string
	onMode         func(active bool)

	active    bool
	game      *Game
	room      string
	inventory []string
	flags     []string
	visited   []string
}

// Option configures an Engine.
type Option func(*Engine)

// WithEcho controls whether commands are written back before the reply.
func WithEcho(echo bool) Option { return func(e *Engine) { e.echo = echo } }

// WithSaveStore persists SAVE codes for sessionID and lets a bare RESTORE
// load the latest one.
func WithSaveStore(s SaveStore, sessionID string) Option {
	return func(e *Engine) {
		e.saves = s
		e.sessionID = sessionID
	}
}

// WithModeListener is called with true when the game starts and false
// when it ends.
func WithModeListener(fn func(active bool)) Option { return func(e *Engine) { e.onMode = fn } }

// NewEngine creates an inactive engine.
func NewEngine(out Output, source Source, opts ...Option) *Engine {
	e := &Engine{
		out:            out,
		source:         source,
		echo:           configuration.GetBool("BASIC", "echo_input", true),
		defaultWinRoom: configuration.GetString("Adventure", "default_win_room", "hall"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Active reports whether the engine currently owns the input.
func (e *Engine) Active() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active
}

// Start loads a fresh game document and shows the first room.
func (e *Engine) Start() {
	g, err := e.source()
	e.mu.Lock()
	defer e.mu.Unlock()
	if err != nil {
		if IsNotFound(err) {
			logger.AdventureWarn("game data not found: %v", err)
			e.out.WriteLine("?Game data not found")
		} else {
			logger.AdventureError("failed to load adventure: %v", err)
			e.out.WriteLine("?Failed to load adventure")
		}
		return
	}

	e.game = g
	e.inventory = []string{}
	e.flags = []string{}
	e.visited = []string{}
	e.room = g.Start
	e.active = true
	logger.AdventureInfo("adventure started in room %s (%d rooms)", g.Start, g.Rooms.Len())

	e.out.Clear()
	e.out.WriteLine("=== ADVENTURE ===")
	e.out.WriteLine("Type HELP for commands.")
	e.out.WriteLine("")
	e.look()
	if m, ok := e.out.(Music); ok {
		m.MusicStart()
	}
	if e.onMode != nil {
		e.onMode(true)
	}
}

// Stop leaves the game silently, for example when the session closes.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.active {
		return
	}
	e.active = false
	if m, ok := e.out.(Music); ok {
		m.MusicStop()
	}
}

// HandleLine executes one command.
func (e *Engine) HandleLine(text string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.active {
		return
	}

	raw := strings.TrimSpace(text)
	if raw == "" {
		return
	}
	if e.echo {
		e.out.WriteLine(raw)
	}

	parts := strings.Fields(strings.ToUpper(raw))
	verb := parts[0]
	noun := strings.Join(parts[1:], " ")

	if full, ok := dirShort[verb]; ok {
		verb = full
	}
	if dirNames[verb] && noun == "" {
		noun, verb = verb, "GO"
	}
	if verb == "GO" {
		if full, ok := dirShort[noun]; ok {
			noun = full
		}
	}
	if verb == "EXAMINE" || verb == "X" {
		verb = "LOOK"
	}

	rm, ok := e.game.Rooms.Get(e.room)
	if !ok || rm == nil {
		rm = newRoom()
	}

	switch verb {
	case "HELP":
		e.out.WriteLine("Commands: LOOK, GO, GET, DROP, USE, INVENTORY, SCORE")
		e.out.WriteLine("LOOK AT <thing> also works (or EXAMINE <thing>).")
		e.out.WriteLine("Directions: NORTH/S/E/W/UP/DOWN (or N/S/E/W/U/D)")
		e.out.WriteLine("SAVE, RESTORE, QUIT")
	case "QUIT", "EXIT":
		e.active = false
		if m, ok := e.out.(Music); ok {
			m.MusicStop()
		}
		e.out.WriteLine("Returning to BASIC...")
		e.out.WriteLine("Ok")
		logger.AdventureInfo("adventure ended in room %s", e.room)
		if e.onMode != nil {
			e.onMode(false)
		}
	case "LOOK", "L":
		e.lookAt(rm, noun)
	case "GO":
		e.move(rm, noun)
	case "GET", "TAKE":
		e.take(rm, noun)
	case "DROP":
		e.drop(rm, noun)
	case "USE":
		e.use(rm, noun)
	case "INVENTORY", "I":
		if len(e.inventory) == 0 {
			e.out.WriteLine("You are empty-handed.")
			return
		}
		e.out.WriteLine("You are carrying:")
		for _, id := range e.inventory {
			e.out.WriteLine("  " + id)
		}
	case "SCORE":
		e.score()
	case "SAVE":
		e.save()
	case "RESTORE":
		fields := strings.Fields(raw)
		e.restore(strings.Join(fields[1:], ""))
	default:
		e.out.WriteLine("I don't understand that. Type HELP for commands.")
	}
}

func (e *Engine) lookAt(rm *Room, noun string) {
	if noun == "" {
		e.look()
		return
	}
	id := strings.ToLower(reLookAt.ReplaceAllString(noun, ""))
	if desc, ok := rm.Looks.Get(id); ok {
		e.lookOut(desc)
		return
	}
	if desc, ok := rm.Items.Get(id); ok && !contains(e.inventory, id) {
		e.lookOut(desc)
		return
	}
	if contains(e.inventory, id) {
		if desc, ok := e.game.itemDescription(id); ok {
			e.lookOut(desc)
			return
		}
		e.out.WriteLine("You have it.")
		return
	}
	e.out.WriteLine("You don't see that here.")
}

func (e *Engine) move(rm *Room, dir string) {
	if dir == "" || !dirNames[dir] {
		e.out.WriteLine("Go where?")
		return
	}
	target, ok := rm.Exits.Get(dir)
	if !ok || target == "" {
		e.out.WriteLine("You can't go that way.")
		return
	}
	if nf, ok := rm.NeedFlags[dir]; ok && !contains(e.flags, nf.Flag) {
		e.out.WriteLine(nf.Msg)
		return
	}
	if need, ok := rm.Needs[dir]; ok {
		if !contains(e.inventory, need.Item) {
			e.out.WriteLine(need.Msg)
			return
		}
		if rm.Consumes[dir] {
			e.inventory = remove(e.inventory, need.Item)
			e.out.WriteLine("(Used " + need.Item + ")")
		}
	}
	logger.AdventureDebug("move %s: %s -> %s", dir, e.room, target)
	e.room = target
	e.look()
}

func (e *Engine) take(rm *Room, noun string) {
	if noun == "" {
		e.out.WriteLine("Get what?")
		return
	}
	id := strings.ToLower(noun)
	if contains(e.inventory, id) {
		e.out.WriteLine("You already have it.")
		return
	}
	if !rm.Items.Has(id) {
		e.out.WriteLine("You don't see that here.")
		return
	}
	if flag, ok := rm.Hidden[id]; ok && flag != "" && !contains(e.flags, flag) {
		e.out.WriteLine("You don't see that here.")
		return
	}
	e.inventory = append(e.inventory, id)
	e.out.WriteLine("Taken.")
}

func (e *Engine) drop(rm *Room, noun string) {
	if noun == "" {
		e.out.WriteLine("Drop what?")
		return
	}
	id := strings.ToLower(noun)
	if !contains(e.inventory, id) {
		e.out.WriteLine("You don't have that.")
		return
	}
	e.inventory = remove(e.inventory, id)
	if !rm.Items.Has(id) {
		if desc, ok := e.game.itemDescription(id); ok {
			rm.Items.Set(id, desc)
		}
	}
	e.out.WriteLine("Dropped.")
}

func (e *Engine) use(rm *Room, noun string) {
	if noun == "" {
		e.out.WriteLine("Use what?")
		return
	}
	item, target := strings.ToLower(noun), ""
	if i := strings.Index(noun, " ON "); i >= 0 {
		item = strings.ToLower(noun[:i])
		target = strings.ToLower(noun[i+4:])
	}
	if !contains(e.inventory, item) {
		e.out.WriteLine("You don't have that.")
		return
	}
	if target != "" {
		if msg, ok := rm.Uses[item+":"+target]; ok {
			e.out.WriteLine(msg)
			if flag, ok := rm.Flags[item]; ok {
				e.setFlag(flag)
			}
			return
		}
	}
	if flag, ok := rm.Flags[item]; ok {
		e.setFlag(flag)
		e.out.WriteLine("Used " + item + ".")
		return
	}
	e.out.WriteLine("You can't use that here.")
}

func (e *Engine) setFlag(flag string) {
	if !contains(e.flags, flag) {
		e.flags = append(e.flags, flag)
		logger.AdventureDebug("flag set: %s", flag)
	}
}

func (e *Engine) score() {
	winRoom := e.game.WinRoom
	if winRoom == "" {
		winRoom = e.defaultWinRoom
	}
	treasures := 0
	for _, id := range e.inventory {
		if contains(e.game.Treasures, id) {
			treasures++
		}
	}
	visitPoints := len(e.visited) * 5
	flagPoints := len(e.flags) * 10
	treasurePoints := treasures * 20
	winBonus := 0
	if contains(e.visited, winRoom) {
		winBonus = 50
	}

	e.out.WriteLine("Score: " + strconv.Itoa(visitPoints+flagPoints+treasurePoints+winBonus))
	e.out.WriteLine("  Rooms explored: " + strconv.Itoa(len(e.visited)) + " (" + strconv.Itoa(visitPoints) + ")")
	e.out.WriteLine("  Puzzles solved: " + strconv.Itoa(len(e.flags)) + " (" + strconv.Itoa(flagPoints) + ")")
	e.out.WriteLine("  Treasures carried: " + strconv.Itoa(treasures) + " (" + strconv.Itoa(treasurePoints) + ")")
	if winBonus > 0 {
		e.out.WriteLine("  Victory bonus: " + strconv.Itoa(winBonus))
	}
}

// saveState is the JSON behind a save code.
type saveState struct {
	Room    string   `json:"room"`
	Inv     []string `json:"inv"`
	Flags   []string `json:"flags"`
	Visited []string `json:"visited"`
}

// SaveCode encodes the current position as a save code.
func (e *Engine) SaveCode() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.saveCode()
}

func (e *Engine) saveCode() string {
	data, _ := json.Marshal(saveState{Room: e.room, Inv: e.inventory, Flags: e.flags, Visited: e.visited})
	return base64.StdEncoding.EncodeToString(data)
}

func (e *Engine) save() {
	code := e.saveCode()
	e.out.WriteLine("Save code: " + code)
	if e.saves != nil {
		if err := e.saves.PutSave(context.Background(), e.sessionID, code); err != nil {
			logger.AdventureError("persisting save for session %s: %v", e.sessionID, err)
		}
	}
}

func (e *Engine) restore(code string) {
	if code == "" {
		if e.saves == nil {
			e.out.WriteLine("RESTORE <code>")
			return
		}
		latest, err := e.saves.LatestSave(context.Background(), e.sessionID)
		if err != nil {
			logger.AdventureError("loading save for session %s: %v", e.sessionID, err)
		}
		if latest == "" {
			e.out.WriteLine("?No saved game")
			return
		}
		code = latest
	}

	data, err := base64.StdEncoding.DecodeString(code)
	if err != nil {
		e.out.WriteLine("?Invalid save code")
		return
	}
	var st saveState
	if err := json.Unmarshal(data, &st); err != nil || !e.game.Rooms.Has(st.Room) {
		e.out.WriteLine("?Invalid save code")
		return
	}
	e.room = st.Room
	e.inventory = nonNil(st.Inv)
	e.flags = nonNil(st.Flags)
	e.visited = nonNil(st.Visited)
	e.out.WriteLine("Restored.")
	e.look()
}

// look describes the current room and marks it visited.
func (e *Engine) look() {
	rm, ok := e.game.Rooms.Get(e.room)
	if !ok || rm == nil {
		e.out.WriteLine("?Room not found: " + e.room)
		return
	}
	e.out.WriteHTML(`<span class="adv-room">--- ` + html.EscapeString(rm.Title) + ` ---</span>`)
	e.out.WriteHTML(highlightLookTargets(rm.Desc, rm.Looks.Keys()))

	var visible []string
	for _, id := range rm.Items.Keys() {
		if contains(e.inventory, id) {
			continue
		}
		if flag, ok := rm.Hidden[id]; ok && flag != "" && !contains(e.flags, flag) {
			continue
		}
		visible = append(visible, id)
	}
	if len(visible) > 0 {
		e.out.WriteHTML("You see: " + spanList("adv-item", visible, true))
	}
	if rm.Looks.Len() > 0 {
		e.out.WriteHTML("Look at: " + spanList("adv-look", rm.Looks.Keys(), true))
	}
	if rm.Exits.Len() > 0 {
		e.out.WriteHTML("Exits: " + spanList("adv-dir", rm.Exits.Keys(), false))
	}
	if !contains(e.visited, e.room) {
		e.visited = append(e.visited, e.room)
	}
}

func (e *Engine) lookOut(text string) {
	e.out.WriteHTML(`<span class="adv-look-output">` + html.EscapeString(text) + `</span>`)
}

func spanList(class string, ids []string, upper bool) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		if upper {
			id = strings.ToUpper(id)
		}
		parts[i] = `<span class="` + class + `">` + html.EscapeString(id) + `</span>`
	}
	return strings.Join(parts, ", ")
}

// highlightLookTargets escapes text and wraps whole-word, case-insensitive
// occurrences of the look keys. Longer keys win over their prefixes.
func highlightLookTargets(text string, keys []string) string {
	escaped := html.EscapeString(text)
	if len(keys) == 0 {
		return escaped
	}
	sorted := append([]string(nil), keys...)
	sort.SliceStable(sorted, func(i, j int) bool { return len(sorted[i]) > len(sorted[j]) })
	alts := make([]string, 0, len(sorted))
	for _, k := range sorted {
		if k != "" {
			alts = append(alts, regexp.QuoteMeta(html.EscapeString(k)))
		}
	}
	if len(alts) == 0 {
		return escaped
	}
	re, err := regexp.Compile(`(?i)\b(?:` + strings.Join(alts, "|") + `)\b`)
	if err != nil {
		return escaped
	}
	return re.ReplaceAllString(escaped, `<span class="adv-look">$0</span>`)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func remove(list []string, s string) []string {
	out := list[:0:0]
	for _, v := range list {
		if v != s {
			out = append(out, v)
		}
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
