package client_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"backoffice-backend/internal/domain"
	"backoffice-backend/pkg/client"
)

func TestSnapshotRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "imports.json")

	saved := client.Snapshot{
		Imports:       []domain.PosImport{{ID: "imp-1", Status: domain.ImportStatusAnalyzed}},
		SelectedIDs:   []string{"imp-1"},
		Filters:       map[string]string{"status": "analyzed"},
		LastFetchTime: time.Now(),
	}
	require.NoError(t, client.SaveSnapshot(path, saved))

	loaded, err := client.LoadSnapshot(path, time.Hour)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, saved.SelectedIDs, loaded.SelectedIDs)
	assert.Equal(t, saved.Filters, loaded.Filters)
	require.Len(t, loaded.Imports, 1)
	assert.Equal(t, "imp-1", loaded.Imports[0].ID)
}

func TestStaleSnapshotIsDiscarded(t *testing.T) {
	path := filepath.Join(t.TempDir(), "imports.json")
	require.NoError(t, client.SaveSnapshot(path, client.Snapshot{
		Imports:       []domain.PosImport{{ID: "imp-1"}},
		LastFetchTime: time.Now().Add(-2 * time.Hour),
	}))

	loaded, err := client.LoadSnapshot(path, time.Hour)
	require.NoError(t, err)
	assert.Nil(t, loaded, "snapshots older than the max age must be dropped")
}

func TestMissingOrCorruptSnapshotMeansFreshFetch(t *testing.T) {
	dir := t.TempDir()

	loaded, err := client.LoadSnapshot(filepath.Join(dir, "absent.json"), time.Hour)
	require.NoError(t, err)
	assert.Nil(t, loaded)

	corrupt := filepath.Join(dir, "corrupt.json")
	require.NoError(t, os.WriteFile(corrupt, []byte("{not json"), 0o644))
	loaded, err = client.LoadSnapshot(corrupt, time.Hour)
	require.NoError(t, err)
	assert.Nil(t, loaded)
}
