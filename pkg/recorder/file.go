package recorder

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/renameio/v2"
)

// Save writes rec as JSON, replacing path atomically.
func Save(path string, rec *Recording) error {
	pending, err := renameio.NewPendingFile(path, renameio.WithPermissions(0o644))
	if err != nil {
		return fmt.Errorf("create pending recording file: %w", err)
	}
	defer pending.Cleanup() //nolint:errcheck // no-op after commit

	enc := json.NewEncoder(pending)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rec); err != nil {
		return fmt.Errorf("encode recording: %w", err)
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("replace recording file: %w", err)
	}
	return nil
}

// Load reads a recording written by Save.
func Load(path string) (*Recording, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read recording: %w", err)
	}

	var rec Recording
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("parse recording: %w", err)
	}
	for i := 1; i < len(rec.Frames); i++ {
		if rec.Frames[i].OffsetMS < rec.Frames[i-1].OffsetMS {
			return nil, fmt.Errorf("parse recording: frame %d offset %d before previous %d",
				i, rec.Frames[i].OffsetMS, rec.Frames[i-1].OffsetMS)
		}
	}
	return &rec, nil
}
