package room

import (
	"testing"

	"github.com/streamfab/gamestream-sfu/internal/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_HostIsPlayer1WithFullPermissions(t *testing.T) {
	r := New("STREAM", "peer_1", "Alice")

	host, ok := r.GetPlayer("peer_1")
	require.True(t, ok)
	assert.True(t, host.IsHost)
	assert.False(t, host.IsSpectator)
	assert.Equal(t, Slot1, host.Slot)
	assert.True(t, host.CanUseKeyboard)
	assert.True(t, host.CanUseMouse)
}

func TestPromoteToPlayer_AssignsSmallestUnusedSlot(t *testing.T) {
	r := New("STREAM", "peer_1", "Alice")
	require.NoError(t, r.AddSpectator("peer_2", "Bob"))

	slot, err := r.PromoteToPlayer("peer_2")
	require.NoError(t, err)
	assert.Equal(t, Slot2, slot)
}

func TestPromoteToPlayer_FifthFailsWithRoomFull(t *testing.T) {
	r := New("STREAM", "peer_1", "Alice")
	for i, id := range []string{"peer_2", "peer_3", "peer_4"} {
		require.NoError(t, r.AddSpectator(id, "p"))
		_, err := r.PromoteToPlayer(id)
		require.NoErrorf(t, err, "promote %d", i)
	}

	require.NoError(t, r.AddSpectator("peer_5", "Fifth"))
	_, err := r.PromoteToPlayer("peer_5")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.RoomFull)
}

func TestClaimGamepad_IsIdempotent(t *testing.T) {
	r := New("STREAM", "peer_1", "Alice")

	slotA, err := r.ClaimGamepad("peer_1", 0)
	require.NoError(t, err)

	slotB, err := r.ClaimGamepad("peer_1", 0)
	require.NoError(t, err)

	assert.Equal(t, slotA, slotB)
}

func TestClaimGamepad_SixteenthSucceedsSeventeenthFails(t *testing.T) {
	r := New("STREAM", "peer_1", "Alice")

	for i := 0; i < maxGamepadSlots; i++ {
		_, err := r.ClaimGamepad("peer_1", i)
		require.NoErrorf(t, err, "claim %d", i)
	}

	_, err := r.ClaimGamepad("peer_1", maxGamepadSlots)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.GamepadExhausted)
}

func TestReleaseGamepad_ThenReclaimMayDifferentSlot(t *testing.T) {
	r := New("STREAM", "peer_1", "Alice")

	first, err := r.ClaimGamepad("peer_1", 0)
	require.NoError(t, err)
	require.NoError(t, r.ReleaseGamepad("peer_1", first))

	second, err := r.ClaimGamepad("peer_1", 1)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}

func TestSpectatorCannotClaimGamepad(t *testing.T) {
	r := New("STREAM", "peer_1", "Alice")
	require.NoError(t, r.AddSpectator("peer_2", "Bob"))

	_, err := r.ClaimGamepad("peer_2", 0)
	require.Error(t, err)
}

func TestRemovePeer_ReleasesGamepadSlots(t *testing.T) {
	r := New("STREAM", "peer_1", "Alice")
	slot, err := r.ClaimGamepad("peer_1", 0)
	require.NoError(t, err)

	r.RemovePeer("peer_1")

	_, ok := r.GetGamepadSlot("peer_1", 0)
	assert.False(t, ok)

	// Another room allocates its server slots independently of this one.
	r2 := New("STREAM", "peer_2", "Bob")
	reclaimed, err := r2.ClaimGamepad("peer_2", 0)
	require.NoError(t, err)
	_ = slot
	_ = reclaimed
}

func TestRemovePeer_TwiceIsEquivalentToOnce(t *testing.T) {
	r := New("STREAM", "peer_1", "Alice")
	require.NoError(t, r.AddSpectator("peer_2", "Bob"))

	wasHost1 := r.RemovePeer("peer_2")
	wasHost2 := r.RemovePeer("peer_2")

	assert.False(t, wasHost1)
	assert.False(t, wasHost2)
	assert.Equal(t, 1, r.PeerCount())
}

func TestRemovePeer_HostReturnsTrue(t *testing.T) {
	r := New("STREAM", "peer_1", "Alice")
	assert.True(t, r.RemovePeer("peer_1"))
}

func TestSetKeyboardAccess_HostCannotBeDowngraded(t *testing.T) {
	r := New("STREAM", "peer_1", "Alice")
	err := r.SetKeyboardAccess("peer_1", false)
	require.Error(t, err)
	assert.True(t, r.CanUseKeyboard("peer_1"))
}

func TestSetKeyboardAccess_GuestTogglesImmediately(t *testing.T) {
	r := New("STREAM", "peer_1", "Alice")
	require.NoError(t, r.AddSpectator("peer_2", "Bob"))

	require.NoError(t, r.SetKeyboardAccess("peer_2", false))
	assert.False(t, r.CanUseKeyboard("peer_2"))
}

func TestSetKeyboardAccess_UpdatesRoomDefault(t *testing.T) {
	r := New("STREAM", "peer_1", "Alice")
	require.NoError(t, r.AddSpectator("peer_2", "Bob"))
	require.NoError(t, r.SetKeyboardAccess("peer_2", false))

	require.NoError(t, r.AddSpectator("peer_3", "Carl"))
	assert.False(t, r.CanUseKeyboard("peer_3"))
}

func TestAddSpectator_RejectsDuplicateAndOverCapacity(t *testing.T) {
	r := New("STREAM", "peer_1", "Alice")
	require.NoError(t, r.AddSpectator("peer_2", "Bob"))

	err := r.AddSpectator("peer_2", "Bob again")
	require.Error(t, err)

	for i := 0; i < maxPeers; i++ {
		_ = r.AddSpectator(stringID(i), "filler")
	}
	err = r.AddSpectator("overflow", "x")
	require.Error(t, err)
}

func stringID(i int) string {
	return "filler_" + string(rune('a'+i))
}
