package client

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"backoffice-backend/internal/domain"
)

// MaxSnapshotAge is how long a persisted snapshot stays trustworthy as a
// resume hint. Older snapshots are discarded in favor of a fresh fetch.
const MaxSnapshotAge = time.Hour

// Snapshot is the POS imports resume hint written to disk. It is never a
// source of truth; a fresh fetch always wins.
type Snapshot struct {
	Imports       []domain.PosImport `json:"imports"`
	SelectedIDs   []string           `json:"selectedIds"`
	Filters       map[string]string  `json:"filters"`
	LastFetchTime time.Time          `json:"lastFetchTime"`
}

// SaveSnapshot writes the snapshot atomically (temp file plus rename).
func SaveSnapshot(path string, snap Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".snapshot-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// LoadSnapshot reads a snapshot back. It returns nil without error when the
// file does not exist, cannot be parsed, or is older than maxAge; all three
// mean "fetch fresh". maxAge <= 0 uses MaxSnapshotAge.
func LoadSnapshot(path string, maxAge time.Duration) (*Snapshot, error) {
	if maxAge <= 0 {
		maxAge = MaxSnapshotAge
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		// A corrupt resume hint is not worth failing over.
		return nil, nil
	}
	if time.Since(snap.LastFetchTime) > maxAge {
		return nil, nil
	}
	return &snap, nil
}
