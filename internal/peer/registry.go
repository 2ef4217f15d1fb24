package peer

import (
	"sync"

	"github.com/pion/webrtc/v4"
)

// Registry maps peer id to Peer, grounded on spec.md §4.4 and on
// PufferBlow-media-sfu's room.Peers map plus ooo-team-network's
// PeerManager (lock-extract-then-close removal pattern).
type Registry struct {
	mu         sync.RWMutex
	peers      map[ID]*Peer
	iceServers []webrtc.ICEServer
}

func NewRegistry(iceServers []webrtc.ICEServer) *Registry {
	return &Registry{
		peers:      make(map[ID]*Peer),
		iceServers: iceServers,
	}
}

// Add places a peer in the registry, making it visible to Find/broadcast.
func (r *Registry) Add(p *Peer) {
	r.mu.Lock()
	r.peers[p.ID()] = p
	r.mu.Unlock()
}

// Find looks up a peer by id.
func (r *Registry) Find(id ID) (*Peer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.peers[id]
	return p, ok
}

// Remove extracts the peer handle under lock, drops the lock, then
// closes it. Holding the registry lock during Close is forbidden: it
// would deadlock with a state-change callback trying to remove the
// same peer (spec.md §4.4).
func (r *Registry) Remove(id ID) {
	r.mu.Lock()
	p, ok := r.peers[id]
	delete(r.peers, id)
	r.mu.Unlock()

	if !ok {
		return
	}
	_ = p.Close()
}

// GetAll returns a snapshot slice of every registered peer.
func (r *Registry) GetAll() []*Peer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Peer, 0, len(r.peers))
	for _, p := range r.peers {
		out = append(out, p)
	}
	return out
}

// ConnectedCount returns the number of peers currently CONNECTED.
func (r *Registry) ConnectedCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, p := range r.peers {
		if p.State() == StateConnected {
			n++
		}
	}
	return n
}

// ICEServers returns the globally configured ICE server list (spec.md
// §4.4 "global ICE configuration").
func (r *Registry) ICEServers() []webrtc.ICEServer {
	return r.iceServers
}

// SetICEServers replaces the ICE server list used for future peers.
func (r *Registry) SetICEServers(servers []webrtc.ICEServer) {
	r.mu.Lock()
	r.iceServers = servers
	r.mu.Unlock()
}

// snapshotConnected returns a short-lived slice of CONNECTED peers,
// taken under a brief read lock (spec.md §4.4 "iteration holds only a
// short read lock").
func (r *Registry) snapshotConnected() []*Peer {
	r.mu.RLock()
	out := make([]*Peer, 0, len(r.peers))
	for _, p := range r.peers {
		if p.State() == StateConnected {
			out = append(out, p)
		}
	}
	r.mu.RUnlock()
	return out
}

// BroadcastVideo sends a marshaled RTP packet to every CONNECTED peer.
func (r *Registry) BroadcastVideo(rtpBytes []byte) {
	for _, p := range r.snapshotConnected() {
		p.SendVideo(rtpBytes)
	}
}

// BroadcastAudio sends a marshaled RTP packet to every CONNECTED peer.
func (r *Registry) BroadcastAudio(rtpBytes []byte) {
	for _, p := range r.snapshotConnected() {
		p.SendAudio(rtpBytes)
	}
}
