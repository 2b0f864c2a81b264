package worldstate

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAddAndGetContents(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Add("room#1", "item#1"))
	require.NoError(t, r.Add("room#1", "item#2"))

	require.Equal(t, []string{"item#1", "item#2"}, r.GetContents("room#1"))

	container, ok := r.GetContainer("item#1")
	require.True(t, ok)
	require.Equal(t, "room#1", container)
}

func TestAddRejectsDoublePlacement(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Add("room#1", "item#1"))
	require.Error(t, r.Add("room#2", "item#1"))
}

func TestMovePreservesOrderOfSiblings(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Add("room#1", "item#1"))
	require.NoError(t, r.Add("room#1", "item#2"))
	require.NoError(t, r.Add("room#1", "item#3"))

	require.NoError(t, r.Move("item#1", "room#2"))

	require.Equal(t, []string{"item#2", "item#3"}, r.GetContents("room#1"))
	require.Equal(t, []string{"item#1"}, r.GetContents("room#2"))
}

func TestMoveRejectsCycle(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Add("bag#1", "coin#1"))
	require.NoError(t, r.Add("room#1", "bag#1"))

	err := r.Move("room#1", "bag#1")
	require.Error(t, err)
}

func TestRemoveDetachesWithoutDestructing(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Add("room#1", "item#1"))

	r.Remove("item#1")

	_, ok := r.GetContainer("item#1")
	require.False(t, ok)
	require.Empty(t, r.GetContents("room#1"))
}

func TestEquipAndUnequip(t *testing.T) {
	r := NewRegistry()
	r.Equip("hero#1", "mainhand", "sword#1")
	r.Equip("hero#1", "head", "helmet#1")

	eq := r.GetEquipped("hero#1")
	require.Equal(t, "sword#1", eq["mainhand"])
	require.Equal(t, "helmet#1", eq["head"])

	r.Unequip("hero#1", "mainhand")
	eq = r.GetEquipped("hero#1")
	_, ok := eq["mainhand"]
	require.False(t, ok)
}

func TestEquipReplacesOccupiedSlot(t *testing.T) {
	r := NewRegistry()
	r.Equip("hero#1", "mainhand", "sword#1")
	r.Equip("hero#1", "mainhand", "axe#1")

	eq := r.GetEquipped("hero#1")
	require.Equal(t, "axe#1", eq["mainhand"])
}
