package persist

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCreateAndValidateAccount(t *testing.T) {
	accs := NewAccounts(t.TempDir())

	_, err := accs.Create("alice", "hunter2")
	require.NoError(t, err)

	require.True(t, accs.Validate("alice", "hunter2"))
	require.False(t, accs.Validate("alice", "wrong"))
}

func TestValidateUnknownAccountBehavesLikeWrongPassword(t *testing.T) {
	accs := NewAccounts(t.TempDir())
	require.False(t, accs.Validate("nobody", "whatever"))
}

func TestCreateRejectsDuplicateName(t *testing.T) {
	accs := NewAccounts(t.TempDir())
	_, err := accs.Create("alice", "hunter2")
	require.NoError(t, err)

	_, err = accs.Create("alice", "different")
	require.Error(t, err)
}

func TestCreateRejectsInvalidName(t *testing.T) {
	accs := NewAccounts(t.TempDir())
	_, err := accs.Create("a1", "hunter2")
	require.Error(t, err)
}

func TestSnapshotWriteAndReadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "world.json")
	snaps := NewSnapshots(path)

	snap := &Snapshot{
		Instances: []InstanceRecord{
			{ObjectID: "items/rock#000001", BlueprintID: "items/rock", State: map[string]any{"weight": float64(3)}},
		},
		Containment: []ContainmentEdge{{Child: "items/rock#000001", Parent: "rooms/start#000001"}},
		Counters:    map[string]uint64{"items/rock": 2},
	}
	require.NoError(t, snaps.Write(snap))

	got, err := snaps.Read()
	require.NoError(t, err)
	require.Equal(t, SnapshotVersion, got.Version)
	require.Len(t, got.Instances, 1)
	require.Equal(t, "items/rock#000001", got.Instances[0].ObjectID)
	require.EqualValues(t, 2, got.Counters["items/rock"])
}

func TestSnapshotReadMissingFileReturnsNotExist(t *testing.T) {
	snaps := NewSnapshots(filepath.Join(t.TempDir(), "missing.json"))
	_, err := snaps.Read()
	require.Error(t, err)
	require.True(t, os.IsNotExist(err))
}
