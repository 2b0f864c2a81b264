package persist

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/jitrealm/jitrealm/internal/driverr"
)

// SnapshotVersion is the current world-snapshot document version.
const SnapshotVersion = 1

// InstanceRecord is one cloned instance's durable state: its identity
// and its state store, nothing else — code is never serialized (spec
// §3: "restore re-instantiates from the world source tree").
type InstanceRecord struct {
	ObjectID    string         `json:"objectId"`
	BlueprintID string         `json:"blueprintId"`
	State       map[string]any `json:"state"`
}

// ContainmentEdge is one (child, parent) containment relation.
type ContainmentEdge struct {
	Child  string `json:"child"`
	Parent string `json:"parent"`
}

// EquipmentEntry is one (wearer, slot, item) equip relation.
type EquipmentEntry struct {
	Wearer string `json:"wearer"`
	Slot   string `json:"slot"`
	Item   string `json:"item"`
}

// CombatPairing is one (attacker, defender, nextRound) pairing.
type CombatPairing struct {
	Attacker  string    `json:"attacker"`
	Defender  string    `json:"defender"`
	NextRound time.Time `json:"nextRound"`
}

// Snapshot is the versioned world-state document of spec §4.N: every
// instance's (blueprintId, objectId, state), the containment graph, the
// equipment map, combat pairings, and each blueprint's ordinal counter
// so object IDs are never reused across a restore.
type Snapshot struct {
	Version    int                `json:"version"`
	SavedAt    time.Time          `json:"savedAt"`
	Instances  []InstanceRecord   `json:"instances"`
	Containment []ContainmentEdge `json:"containment"`
	Equipment  []EquipmentEntry   `json:"equipment"`
	Combat     []CombatPairing    `json:"combat"`
	Counters   map[string]uint64  `json:"counters"` // blueprint id -> next ordinal
}

// Snapshots manages the world.json checkpoint file.
type Snapshots struct {
	path string
}

// NewSnapshots returns a store bound to the given file path (config
// document's Paths.SaveDirectory/Paths.SaveFileName, joined by the
// caller).
func NewSnapshots(path string) *Snapshots {
	return &Snapshots{path: path}
}

// Write serializes snap to disk via write-to-temp + atomic rename.
func (s *Snapshots) Write(snap *Snapshot) error {
	snap.Version = SnapshotVersion
	snap.SavedAt = time.Now()

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return driverr.PersistenceError("encode snapshot: " + err.Error())
	}
	if err := writeFileAtomic(s.path, data); err != nil {
		return driverr.PersistenceError(fmt.Sprintf("write snapshot: %v", err))
	}
	return nil
}

// Read loads the snapshot from disk. A missing file is a plain
// os.IsNotExist error — the first boot of a fresh world has none.
func (s *Snapshots) Read() (*Snapshot, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, err
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, driverr.PersistenceError("decode snapshot: " + err.Error())
	}
	return &snap, nil
}
