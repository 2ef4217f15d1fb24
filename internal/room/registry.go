package room

import (
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/streamfab/gamestream-sfu/internal/apperr"
)

// Registry maintains the code->room and peer->room indexes, updated
// together (spec.md §4.5). Grounded on original_source/room.h's
// RoomManager and ooo-team-network-master-server's registry split.
type Registry struct {
	logger zerolog.Logger

	mu        sync.Mutex
	byCode    map[string]*Room
	peerRooms map[string]string // peer id -> room code
}

func NewRegistry(logger zerolog.Logger) *Registry {
	return &Registry{
		logger:    logger,
		byCode:    make(map[string]*Room),
		peerRooms: make(map[string]string),
	}
}

// CreateRoom generates a fresh code and creates a room with hostPeerID
// as the host, recording both indexes.
func (reg *Registry) CreateRoom(hostPeerID, hostName string) (*Room, error) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	code, err := GenerateCode(func(c string) bool {
		_, exists := reg.byCode[c]
		return exists
	})
	if err != nil {
		return nil, err
	}

	r := New(code, hostPeerID, hostName)
	reg.byCode[code] = r
	reg.peerRooms[hostPeerID] = code

	reg.logger.Info().
		Str("room_code", code).
		Str("peer_id", hostPeerID).
		Str("correlation_id", uuid.NewString()).
		Msg("room created")

	return r, nil
}

// FindByCode looks up a room by its join code.
func (reg *Registry) FindByCode(code string) (*Room, bool) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	r, ok := reg.byCode[code]
	return r, ok
}

// FindByPeer looks up the room a peer currently belongs to.
func (reg *Registry) FindByPeer(peerID string) (*Room, bool) {
	reg.mu.Lock()
	code, ok := reg.peerRooms[peerID]
	reg.mu.Unlock()
	if !ok {
		return nil, false
	}
	return reg.FindByCode(code)
}

// Join adds peerID to the named room as a spectator and records the
// peer->room index.
func (reg *Registry) Join(code, peerID, name string) (*Room, error) {
	r, ok := reg.FindByCode(code)
	if !ok {
		return nil, apperr.New(apperr.KindRoomNotFound, "no room with that code")
	}
	if err := r.AddSpectator(peerID, name); err != nil {
		return nil, err
	}

	reg.mu.Lock()
	reg.peerRooms[peerID] = code
	reg.mu.Unlock()
	return r, nil
}

// RemovePeer removes peerID from its room. If the peer was the host,
// the room is destroyed (its code index dropped) and every remaining
// member is evicted from the index too; their ids are returned so the
// caller can notify and fully tear them down (spec.md §3 Room
// lifecycle: "destroyed when host leaves (all others evicted)"). The
// peer-index entry for peerID is always removed.
func (reg *Registry) RemovePeer(peerID string) (r *Room, wasHost bool, evicted []string) {
	r, ok := reg.FindByPeer(peerID)
	if !ok {
		return nil, false, nil
	}

	wasHost = r.RemovePeer(peerID)

	reg.mu.Lock()
	delete(reg.peerRooms, peerID)
	if wasHost {
		delete(reg.byCode, r.Code())
		for _, p := range r.GetPlayers() {
			evicted = append(evicted, p.PeerID)
			delete(reg.peerRooms, p.PeerID)
		}
	}
	reg.mu.Unlock()

	return r, wasHost, evicted
}

// RoomCount returns the number of active rooms.
func (reg *Registry) RoomCount() int {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return len(reg.byCode)
}
