package index

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hoplite-ai/hoplite/types"
)

// tenantSnapshot is the on-disk representation of one tenant's index state.
// Graph topology is deliberately absent: rebuilding it on load is cheap
// relative to the cost of keeping a serialized graph consistent.
type tenantSnapshot struct {
	TenantID   string         `json:"tenant_id"`
	Dimension  int            `json:"dimension"`
	SavedAt    time.Time      `json:"saved_at"`
	Chunks     []*types.Chunk `json:"chunks"`
	Tombstones []string       `json:"tombstones,omitempty"`
}

// saveSnapshot writes the snapshot atomically: marshal to a temp file in the
// same directory, then rename over the target. A crash mid-write leaves the
// previous snapshot intact.
func saveSnapshot(dir string, snap *tenantSnapshot) error {
	snap.SavedAt = time.Now()

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return types.NewError(types.KindStorage, "marshal tenant snapshot").WithCause(err)
	}

	path := snapshotPath(dir, snap.TenantID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return types.Errorf(types.KindStorage, "write snapshot for tenant %s", snap.TenantID).WithCause(err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return types.Errorf(types.KindStorage, "commit snapshot for tenant %s", snap.TenantID).WithCause(err)
	}
	return nil
}

// loadSnapshots reads every tenant snapshot in dir. Unreadable files are
// returned as errors rather than skipped: silently dropping a tenant's data
// at startup is worse than failing loudly.
func loadSnapshots(dir string) ([]*tenantSnapshot, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, types.NewError(types.KindStorage, "read snapshot directory").WithCause(err)
	}

	var snaps []*tenantSnapshot
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, "tenant_") || !strings.HasSuffix(name, ".json") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, types.Errorf(types.KindStorage, "read snapshot %s", name).WithCause(err)
		}

		var snap tenantSnapshot
		if err := json.Unmarshal(data, &snap); err != nil {
			return nil, types.Errorf(types.KindStorage, "decode snapshot %s", name).WithCause(err)
		}
		if snap.TenantID == "" {
			return nil, types.Errorf(types.KindStorage, "snapshot %s has no tenant id", name)
		}
		snaps = append(snaps, &snap)
	}
	return snaps, nil
}

// snapshotPath maps a tenant id to its snapshot file. Tenant ids may contain
// characters that are unsafe in filenames; those are replaced, and the real
// id is read back from the snapshot body, never from the filename.
func snapshotPath(dir, tenantID string) string {
	safe := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-' || r == '_' || r == '.':
			return r
		default:
			return '-'
		}
	}, tenantID)
	return filepath.Join(dir, fmt.Sprintf("tenant_%s.json", safe))
}
