package adventure

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Ordered is a string-keyed JSON object that remembers key order. Room
// listings print items, exits and look targets in document order.
type Ordered[V any] struct {
	keys []string
	m    map[string]V
}

// Get returns the value for key.
func (o Ordered[V]) Get(key string) (V, bool) {
	v, ok := o.m[key]
	return v, ok
}

// Has reports whether key is present.
func (o Ordered[V]) Has(key string) bool {
	_, ok := o.m[key]
	return ok
}

// Keys returns the keys in insertion order.
func (o Ordered[V]) Keys() []string {
	return append([]string(nil), o.keys...)
}

func (o Ordered[V]) Len() int { return len(o.keys) }

// Set adds or replaces key. A replaced key keeps its position.
func (o *Ordered[V]) Set(key string, v V) {
	if o.m == nil {
		o.m = make(map[string]V)
	}
	if _, ok := o.m[key]; !ok {
		o.keys = append(o.keys, key)
	}
	o.m[key] = v
}

func (o Ordered[V]) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range o.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		vb, err := json.Marshal(o.m[k])
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (o *Ordered[V]) UnmarshalJSON(data []byte) error {
	*o = Ordered[V]{}
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("expected object, got %v", tok)
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("expected object key, got %v", tok)
		}
		var v V
		if err := dec.Decode(&v); err != nil {
			return err
		}
		o.Set(key, v)
	}
	_, err = dec.Token()
	return err
}

// Need blocks an exit until the player carries Item.
type Need struct {
	Item string `json:"item"`
	Msg  string `json:"msg"`
}

// FlagNeed blocks an exit until Flag is set.
type FlagNeed struct {
	Flag string `json:"flag"`
	Msg  string `json:"msg"`
}

// Room is one location. Directions are upper case, item ids lower case.
type Room struct {
	Title     string              `json:"title"`
	Desc      string              `json:"desc"`
	Exits     Ordered[string]     `json:"exits"`
	Items     Ordered[string]     `json:"items"`
	Needs     map[string]Need     `json:"needs"`
	Consumes  map[string]bool     `json:"consumes"`
	Looks     Ordered[string]     `json:"looks"`
	Uses      map[string]string   `json:"uses"`
	Flags     map[string]string   `json:"flags"`
	NeedFlags map[string]FlagNeed `json:"needflags"`
	Hidden    map[string]string   `json:"hidden"`
}

func newRoom() *Room {
	return &Room{
		Needs:     make(map[string]Need),
		Consumes:  make(map[string]bool),
		Uses:      make(map[string]string),
		Flags:     make(map[string]string),
		NeedFlags: make(map[string]FlagNeed),
		Hidden:    make(map[string]string),
	}
}

// Game is the document served as game.json.
type Game struct {
	Start     string         `json:"start"`
	Rooms     Ordered[*Room] `json:"rooms"`
	WinRoom   string         `json:"winRoom,omitempty"`
	Treasures []string       `json:"treasures,omitempty"`
}

// itemDescription finds the first room that defines id.
func (g *Game) itemDescription(id string) (string, bool) {
	for _, key := range g.Rooms.keys {
		if rm := g.Rooms.m[key]; rm != nil {
			if desc, ok := rm.Items.Get(id); ok {
				return desc, true
			}
		}
	}
	return "", false
}
