package ident

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBlueprintID(t *testing.T) {
	id, err := BlueprintID("/world", "/world/Items/rusty_sword.lua", ".lua")
	require.NoError(t, err)
	require.Equal(t, "Items/rusty_sword", id)
}

func TestBlueprintIDRejectsEscape(t *testing.T) {
	_, err := BlueprintID("/world", "/etc/passwd", ".lua")
	require.Error(t, err)
}

func TestObjectIDRoundTrip(t *testing.T) {
	id := ObjectID("Items/rusty_sword", 1)
	require.Equal(t, "Items/rusty_sword#000001", id)

	bp, ord, err := SplitObjectID(id)
	require.NoError(t, err)
	require.Equal(t, "Items/rusty_sword", bp)
	require.EqualValues(t, 1, ord)
}

func TestSplitObjectIDRejectsMalformed(t *testing.T) {
	_, _, err := SplitObjectID("no-hash-here")
	require.Error(t, err)
	_, _, err = SplitObjectID("blueprint#notanumber")
	require.Error(t, err)
}

func TestSessionID(t *testing.T) {
	id := SessionID("Alice")
	require.True(t, IsSessionID(id))
	require.False(t, IsSessionID("Items/rusty_sword#000001"))

	name, ok := SessionName(id)
	require.True(t, ok)
	require.Equal(t, "Alice", name)
}
