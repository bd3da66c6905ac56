package adventure

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"

	"github.com/antibyte/workbench/pkg/logger"
)

// ErrNoRooms is returned when a room directory holds no *.room files.
var ErrNoRooms = errors.New("no room files")

// Source produces a fresh game document for every Start.
type Source func() (*Game, error)

// FileSource reads game.json from path, or builds the document from the
// room files when path is a directory.
func FileSource(path string) Source {
	return func() (*Game, error) {
		info, err := os.Stat(path)
		if err != nil {
			return nil, errors.Wrapf(err, "stat game data %s", path)
		}
		if info.IsDir() {
			return BuildManifest(path)
		}
		return LoadFile(path)
	}
}

// LoadFile decodes a game.json document.
func LoadFile(path string) (*Game, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read game file %s", path)
	}
	return Decode(data)
}

// Decode parses a game document and checks that it names a start room.
func Decode(data []byte) (*Game, error) {
	var g Game
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, errors.Wrap(err, "decode game document")
	}
	if g.Start == "" {
		return nil, errors.New("game document has no start room")
	}
	logger.AdventureDebug("decoded game document: %d rooms, start=%s", g.Rooms.Len(), g.Start)
	return &g, nil
}

// IsNotFound reports whether err means the game data does not exist.
func IsNotFound(err error) bool {
	cause := errors.Cause(err)
	return cause == ErrNoRooms || os.IsNotExist(cause)
}
