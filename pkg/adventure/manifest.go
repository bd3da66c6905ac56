package adventure

import (
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"

	"github.com/antibyte/workbench/pkg/logger"
)

var (
	reLookPipe   = regexp.MustCompile(`^(.+?)\s+\|\s+(.+)$`)
	reLookQuoted = regexp.MustCompile(`^"([^"]+)"\s+(.+)$`)
	reUse        = regexp.MustCompile(`(?i)^(?:"([^"]+)"|(\S+))\s+ON\s+(?:"([^"]+)"|(\S+))\s+(.+)$`)
	reOnUse      = regexp.MustCompile(`^(\S+)\s*(?:->)?\s*(\S+)$`)
	reHiddenFlag = regexp.MustCompile(`(?i)^(\S+)\s+NEEDFLAG\s+(\S+)$`)
	reHiddenPair = regexp.MustCompile(`^(\S+)\s+(\S+)$`)
	reTrue       = regexp.MustCompile(`(?i)^(1|true|yes|on)$`)
)

// BuildManifest reads every *.room file in dir, in name order, and
// assembles the game document.
//
// A room file is a list of "KEY: value" lines. The room id is the file
// name without extension unless ROOM overrides it. start.room, or a room
// with START: yes, becomes the start room; without either the first file
// does. A room called hall becomes the win room unless one is declared.
func BuildManifest(dir string) (*Game, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "read room directory %s", dir)
	}
	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".room") {
			files = append(files, entry.Name())
		}
	}
	if len(files) == 0 {
		return nil, errors.Wrapf(ErrNoRooms, "build manifest from %s", dir)
	}
	sort.Strings(files)

	g := &Game{}
	var startRoom, winRoom string
	var treasures []string
	for _, file := range files {
		data, err := os.ReadFile(filepath.Join(dir, file))
		if err != nil {
			return nil, errors.Wrapf(err, "read room file %s", file)
		}
		id, room, isStart, isWin, found := parseRoom(strings.TrimSuffix(file, ".room"), string(data))
		for _, t := range found {
			if !contains(treasures, t) {
				treasures = append(treasures, t)
			}
		}
		g.Rooms.Set(id, room)
		if isStart {
			startRoom = id
		}
		if isWin {
			winRoom = id
		}
		if file == "start.room" || startRoom == "" {
			startRoom = id
		}
		if winRoom == "" && id == "hall" {
			winRoom = id
		}
	}
	g.Start = startRoom
	g.WinRoom = winRoom
	g.Treasures = treasures
	logger.AdventureInfo("game manifest: %d room(s) from %s", g.Rooms.Len(), dir)
	return g, nil
}

// parseRoom decodes one room file. Malformed lines are skipped.
func parseRoom(id, text string) (string, *Room, bool, bool, []string) {
	room := newRoom()
	var isStart, isWin bool
	var treasures []string

	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		colon := strings.Index(line, ":")
		if colon < 0 {
			continue
		}
		key := strings.ToUpper(strings.TrimSpace(line[:colon]))
		val := strings.TrimSpace(line[colon+1:])
		fields := strings.Fields(val)

		switch key {
		case "ROOM":
			id = val
		case "START":
			isStart = reTrue.MatchString(val)
		case "WINROOM", "WIN":
			isWin = reTrue.MatchString(val)
		case "TITLE":
			room.Title = val
		case "DESC":
			if room.Desc != "" {
				room.Desc += " "
			}
			room.Desc += val
		case "EXIT":
			if len(fields) > 0 {
				room.Exits.Set(strings.ToUpper(fields[0]), strings.Join(fields[1:], " "))
			}
		case "ITEM":
			if len(fields) > 0 {
				room.Items.Set(strings.ToLower(fields[0]), strings.Join(fields[1:], " "))
			}
		case "TREASURE":
			treasures = append(treasures, strings.ToLower(val))
		case "NEED":
			if len(fields) >= 2 {
				room.Needs[strings.ToUpper(fields[0])] = Need{Item: strings.ToLower(fields[1]), Msg: strings.Join(fields[2:], " ")}
			}
		case "CONSUME":
			room.Consumes[strings.ToUpper(val)] = true
		case "LOOK":
			if k, desc := parseLook(val); k != "" && desc != "" {
				room.Looks.Set(k, desc)
			}
		case "USE":
			if m := reUse.FindStringSubmatch(val); m != nil {
				item := strings.ToLower(m[1] + m[2])
				target := strings.ToLower(m[3] + m[4])
				room.Uses[item+":"+target] = m[5]
			}
		case "ONUSE", "FLAG":
			if m := reOnUse.FindStringSubmatch(val); m != nil {
				room.Flags[strings.ToLower(m[1])] = m[2]
			}
		case "NEEDFLAG":
			if len(fields) >= 2 {
				room.NeedFlags[strings.ToUpper(fields[0])] = FlagNeed{Flag: fields[1], Msg: strings.Join(fields[2:], " ")}
			}
		case "HIDDEN":
			if m := reHiddenFlag.FindStringSubmatch(val); m != nil {
				room.Hidden[strings.ToLower(m[1])] = m[2]
			} else if m := reHiddenPair.FindStringSubmatch(val); m != nil {
				room.Hidden[strings.ToLower(m[1])] = m[2]
			}
		}
	}
	return id, room, isStart, isWin, treasures
}

// parseLook accepts "key | description", `"multi word key" description`
// and "key description".
func parseLook(val string) (string, string) {
	if m := reLookPipe.FindStringSubmatch(val); m != nil {
		return strings.ToLower(strings.TrimSpace(m[1])), strings.TrimSpace(m[2])
	}
	if m := reLookQuoted.FindStringSubmatch(val); m != nil {
		return strings.ToLower(strings.TrimSpace(m[1])), strings.TrimSpace(m[2])
	}
	fields := strings.Fields(val)
	if len(fields) == 0 {
		return "", ""
	}
	return strings.ToLower(fields[0]), strings.Join(fields[1:], " ")
}

// WriteManifest writes g as indented JSON to path.
func WriteManifest(g *Game, path string) error {
	data, err := json.MarshalIndent(g, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode game document")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrapf(err, "create %s", filepath.Dir(path))
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.Wrapf(err, "write %s", path)
	}
	logger.AdventureInfo("wrote %s (%s)", path, humanize.Bytes(uint64(len(data))))
	return nil
}

// RebuildManifest builds the document from dir and writes it to path. A
// directory without room files leaves path untouched.
func RebuildManifest(dir, path string) error {
	g, err := BuildManifest(dir)
	if err != nil {
		if IsNotFound(err) {
			logger.AdventureInfo("no room files in %s, skipping game manifest", dir)
			return nil
		}
		return err
	}
	return WriteManifest(g, path)
}
