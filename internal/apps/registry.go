package apps

import (
	"encoding/json"
	"fmt"
	"github.com/danmuck/mrctl/internal/fsutil"
	"os"
	"path/filepath"

	logs "github.com/danmuck/smplog"
)

const (
	MetadataListFile = "list.json"
	IDSetFile        = ".json"
)

// Registry tracks installed apps in two files under the apps directory:
// the metadata list and the deduplicated identifier set.
type Registry struct {
	dir string
}

func NewRegistry(dir string) *Registry {
	return &Registry{dir: dir}
}

func (r *Registry) MetadataPath() string {
	return filepath.Join(r.dir, MetadataListFile)
}

func (r *Registry) IDsPath() string {
	return filepath.Join(r.dir, IDSetFile)
}

// Metadata returns the recorded metadata list. A missing or unparsable
// file reads as empty; entries that are not metadata objects are skipped.
func (r *Registry) Metadata() []Metadata {
	list := []Metadata{}
	for _, raw := range r.load(r.MetadataPath()) {
		var m Metadata
		if err := json.Unmarshal(raw, &m); err != nil {
			continue
		}
		list = append(list, m)
	}
	return list
}

// IDs returns the installed identifiers. A missing or unparsable file reads
// as empty; entries that are not strings are skipped.
func (r *Registry) IDs() []string {
	ids := []string{}
	for _, raw := range r.load(r.IDsPath()) {
		if id, ok := rawString(raw); ok {
			ids = append(ids, id)
		}
	}
	return ids
}

// AddMetadata records m. An entry with the same non-empty name is replaced
// in place; anything else is appended. Entries that do not decode as
// metadata are written back unchanged.
func (r *Registry) AddMetadata(m Metadata) error {
	entry, err := json.Marshal(m)
	if err != nil {
		return err
	}
	list := r.load(r.MetadataPath())
	replaced := false
	if m.Name != "" {
		for i, raw := range list {
			var cur Metadata
			if json.Unmarshal(raw, &cur) == nil && cur.Name == m.Name {
				list[i] = entry
				replaced = true
				break
			}
		}
	}
	if !replaced {
		list = append(list, entry)
	}
	data, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return err
	}
	if err := r.write(r.MetadataPath(), data); err != nil {
		return fmt.Errorf("write %s: %w", r.MetadataPath(), err)
	}
	return nil
}

// MergeIDs unions ids into the identifier set and returns the identifiers.
// Existing order is kept and new ids are appended in the order given.
// Non-string entries already in the file are kept in place.
func (r *Registry) MergeIDs(ids []string) ([]string, error) {
	seen := make(map[string]struct{})
	out := make([]json.RawMessage, 0)
	merged := make([]string, 0)
	add := func(id string, raw json.RawMessage) {
		if id == "" {
			return
		}
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		out = append(out, raw)
		merged = append(merged, id)
	}
	for _, raw := range r.load(r.IDsPath()) {
		id, ok := rawString(raw)
		if !ok {
			out = append(out, raw)
			continue
		}
		add(id, raw)
	}
	for _, id := range ids {
		raw, err := json.Marshal(id)
		if err != nil {
			return nil, err
		}
		add(id, raw)
	}

	data, err := json.Marshal(out)
	if err != nil {
		return nil, err
	}
	if err := r.write(r.IDsPath(), data); err != nil {
		return nil, fmt.Errorf("write %s: %w", r.IDsPath(), err)
	}
	return merged, nil
}

// load returns the entries of a registry array. Only a missing file or one
// that is not a JSON array reads as empty.
func (r *Registry) load(path string) []json.RawMessage {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			logs.Warnf("apps.registry read %s: %v; treating as empty", path, err)
		}
		return nil
	}
	var list []json.RawMessage
	if err := json.Unmarshal(data, &list); err != nil {
		logs.Warnf("apps.registry parse %s: %v; treating as empty", path, err)
		return nil
	}
	return list
}

func rawString(raw json.RawMessage) (string, bool) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

func (r *Registry) write(path string, data []byte) error {
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return err
	}
	return fsutil.WriteAtomic(path, data, 0o644)
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, id := range in {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
