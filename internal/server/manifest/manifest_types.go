package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/etpamelo/gallerybox/internal/jsonx"
)

type MediaType string

const (
	TypeModel   MediaType = "model"
	TypeVideo   MediaType = "video"
	TypePicture MediaType = "picture"
)

// Dir is the folder under models/ a media type is stored in. Unknown types are pictures.
func (t MediaType) Dir() string {
	switch t {
	case TypeModel:
		return "models"
	case TypeVideo:
		return "videos"
	default:
		return "pictures"
	}
}

const (
	keyID     = "id"
	keyType   = "type"
	keySrc    = "src"
	keyHidden = "hidden"
	keyModels = "models"
)

// Entry is one catalog record. Keys other than id/type/src/hidden round-trip untouched.
type Entry struct {
	ID     string
	Type   MediaType
	Src    string
	Hidden *bool
	Extra  map[string]json.RawMessage

	// opaque holds a models element that is not an object, written back verbatim
	opaque json.RawMessage
}

func (e *Entry) IsHidden() bool {
	return e.Hidden != nil && *e.Hidden
}

func (e *Entry) matches(id string) bool {
	return e.opaque == nil && e.ID == id
}

func (e *Entry) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := jsonx.Unmarshal(data, &fields); err != nil || fields == nil {
		e.opaque = append(json.RawMessage(nil), bytes.TrimSpace(data)...)
		return nil
	}

	// a known key with an unexpected shape stays in Extra untouched
	take := func(key string, dst any) {
		raw, ok := fields[key]
		if !ok {
			return
		}
		if err := jsonx.Unmarshal(raw, dst); err == nil {
			delete(fields, key)
		}
	}
	take(keyID, &e.ID)
	take(keyType, &e.Type)
	take(keySrc, &e.Src)
	take(keyHidden, &e.Hidden)

	if len(fields) > 0 {
		e.Extra = fields
	}
	return nil
}

func (e Entry) MarshalJSON() ([]byte, error) {
	if e.opaque != nil {
		return e.opaque, nil
	}

	w := newObjectWriter()
	if e.ID != "" {
		w.field(keyID, e.ID)
	}
	if e.Type != "" {
		w.field(keyType, e.Type)
	}
	if e.Src != "" {
		w.field(keySrc, e.Src)
	}
	if e.Hidden != nil {
		w.field(keyHidden, *e.Hidden)
	}
	w.extra(e.Extra)
	return w.close()
}

// Document is the manifest: the ordered models list plus any other top-level keys.
type Document struct {
	Models []Entry
	Extra  map[string]json.RawMessage
}

func (d *Document) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := jsonx.Unmarshal(data, &fields); err != nil {
		return err
	}
	if fields == nil {
		return fmt.Errorf("manifest is not an object")
	}

	d.Models = []Entry{}
	if raw, ok := fields[keyModels]; ok {
		var models []Entry
		if err := jsonx.Unmarshal(raw, &models); err == nil && models != nil {
			d.Models = models
		}
		delete(fields, keyModels)
	}
	if len(fields) > 0 {
		d.Extra = fields
	}
	return nil
}

func (d Document) MarshalJSON() ([]byte, error) {
	models := d.Models
	if models == nil {
		models = []Entry{}
	}

	w := newObjectWriter()
	w.field(keyModels, models)
	w.extra(d.Extra)
	return w.close()
}

// Find returns copies of every entry with the given id, in manifest order.
func (d *Document) Find(id string) []Entry {
	var found []Entry
	for _, e := range d.Models {
		if e.matches(id) {
			found = append(found, e)
		}
	}
	return found
}

func (d *Document) Append(e Entry) {
	d.Models = append(d.Models, e)
}

// SetHidden flags or unflags every entry with the given id and returns how many matched.
// Unhiding removes the field instead of writing false.
func (d *Document) SetHidden(id string, hidden bool) int {
	changed := 0
	for i := range d.Models {
		e := &d.Models[i]
		if !e.matches(id) {
			continue
		}
		// a non-boolean hidden value never survives a hide or unhide
		delete(e.Extra, keyHidden)
		if hidden {
			v := true
			e.Hidden = &v
		} else if e.IsHidden() {
			e.Hidden = nil
		}
		changed++
	}
	return changed
}

// RemoveByID drops every entry with the given id and returns the removed entries.
func (d *Document) RemoveByID(id string) []Entry {
	var removed []Entry
	kept := d.Models[:0:0]
	for _, e := range d.Models {
		if e.matches(id) {
			removed = append(removed, e)
			continue
		}
		kept = append(kept, e)
	}
	d.Models = kept
	return removed
}

// Encode renders the document the way it is committed: two-space indent, known keys first.
func (d *Document) Encode() ([]byte, error) {
	compact, err := d.MarshalJSON()
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := jsonx.Indent(&buf, compact, "", "  "); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode parses manifest content. Empty content is an empty manifest.
func Decode(content []byte) (*Document, error) {
	doc := &Document{Models: []Entry{}}
	if len(bytes.TrimSpace(content)) == 0 {
		return doc, nil
	}
	if err := jsonx.Unmarshal(content, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// objectWriter builds a JSON object with keys in insertion order.
type objectWriter struct {
	buf   bytes.Buffer
	count int
	err   error
}

func newObjectWriter() *objectWriter {
	w := &objectWriter{}
	w.buf.WriteByte('{')
	return w
}

func (w *objectWriter) field(key string, value any) {
	if w.err != nil {
		return
	}
	raw, err := jsonx.Marshal(value)
	if err != nil {
		w.err = fmt.Errorf("encode %s: %w", key, err)
		return
	}
	w.raw(key, raw)
}

func (w *objectWriter) raw(key string, raw []byte) {
	if w.count > 0 {
		w.buf.WriteByte(',')
	}
	k, _ := jsonx.Marshal(key)
	w.buf.Write(k)
	w.buf.WriteByte(':')
	w.buf.Write(raw)
	w.count++
}

// extra writes the remaining keys sorted so output is stable
func (w *objectWriter) extra(fields map[string]json.RawMessage) {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		w.raw(k, fields[k])
	}
}

func (w *objectWriter) close() ([]byte, error) {
	if w.err != nil {
		return nil, w.err
	}
	w.buf.WriteByte('}')
	return w.buf.Bytes(), nil
}
