package peer

import (
	"testing"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func newTestPeer(t *testing.T, id ID) *Peer {
	t.Helper()
	api := webrtc.NewAPI()
	p, err := New(id, api, nil, zerolog.Nop())
	require.NoError(t, err)
	return p
}

func TestRegistry_AddFindRemove(t *testing.T) {
	r := NewRegistry(nil)
	p := newTestPeer(t, "peer_1")

	r.Add(p)
	found, ok := r.Find("peer_1")
	require.True(t, ok)
	require.Same(t, p, found)

	r.Remove("peer_1")
	_, ok = r.Find("peer_1")
	require.False(t, ok)
}

func TestRegistry_RemoveTwiceIsSafe(t *testing.T) {
	r := NewRegistry(nil)
	p := newTestPeer(t, "peer_1")
	r.Add(p)

	r.Remove("peer_1")
	r.Remove("peer_1") // must not panic or double-close incorrectly

	_, ok := r.Find("peer_1")
	require.False(t, ok)
}

func TestRegistry_GetAllSnapshot(t *testing.T) {
	r := NewRegistry(nil)
	r.Add(newTestPeer(t, "peer_1"))
	r.Add(newTestPeer(t, "peer_2"))

	all := r.GetAll()
	require.Len(t, all, 2)
}

func TestPeer_CloseIsIdempotent(t *testing.T) {
	p := newTestPeer(t, "peer_1")
	require.NoError(t, p.Close())
	require.NoError(t, p.Close())
	require.Equal(t, StateDisconnected, p.State())
}
