// Package room implements the single-session Room model: membership,
// player slots, gamepad slot claiming, and per-peer keyboard/mouse
// permissions (spec.md §3, §4.5).
//
// Grounded on original_source/src/webrtc/room.h's Room class (field
// names and method semantics translated near 1:1: PlayerInfo,
// gamepad_slot_owners_, peer_gamepad_mappings_, next_available_slot)
// and on ooo-team-network-master-server's room.go for the Go mutex/map
// idiom used to express the same model.
package room

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/streamfab/gamestream-sfu/internal/apperr"
)

// codeAlphabet excludes visually ambiguous characters: 0/O, 1/I/l
// (spec.md §4.5).
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const codeLength = 6

// maxGamepadSlots is the number of server-side gamepad slots
// available per room (spec.md §4.6, original_source room.h comment
// "0-15").
const maxGamepadSlots = 16

// maxPeers bounds total room membership including spectators
// (original_source room.h's `is_full`/`add_spectator` cap).
const maxPeers = 16

// Slot is a player slot assignment (spec.md §3 PlayerInfo.slot).
type Slot int

const (
	SlotNone Slot = 0
	Slot1    Slot = 1
	Slot2    Slot = 2
	Slot3    Slot = 3
	Slot4    Slot = 4
)

const maxPlayerSlots = 4

// PlayerInfo mirrors original_source/room.h's PlayerInfo struct.
type PlayerInfo struct {
	PeerID            string
	Name              string
	Slot              Slot
	IsHost            bool
	IsSpectator       bool
	CanUseKeyboard    bool
	CanUseMouse       bool
	ClaimedGamepadIDs []int
	JoinedAt          time.Time
}

// Room is the single active game-streaming session. All mutation goes
// through one per-room lock; the lock is never held across peer I/O
// (spec.md §5).
type Room struct {
	code       string
	hostPeerID string
	createdAt  time.Time

	mu      sync.Mutex
	players map[string]*PlayerInfo

	gamepadOwners       map[int]string       // server slot -> peer id
	peerGamepadMappings map[string]map[int]int // peer id -> browser id -> server slot
	nextGamepadSlot     int

	defaultKeyboardAccess bool
	defaultMouseAccess    bool
}

// GenerateCode returns a random 6-character room code, retrying
// collisions against exists up to 10 times (spec.md §4.5).
func GenerateCode(exists func(code string) bool) (string, error) {
	for attempt := 0; attempt < 10; attempt++ {
		code, err := randomCode()
		if err != nil {
			return "", err
		}
		if exists == nil || !exists(code) {
			return code, nil
		}
	}
	return "", fmt.Errorf("room: could not generate unique code after 10 attempts")
}

func randomCode() (string, error) {
	buf := make([]byte, codeLength)
	for i := range buf {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(codeAlphabet))))
		if err != nil {
			return "", fmt.Errorf("room: generate code: %w", err)
		}
		buf[i] = codeAlphabet[n.Int64()]
	}
	return string(buf), nil
}

// New creates a room with host as PLAYER_1.
func New(code, hostPeerID, hostName string) *Room {
	r := &Room{
		code:                  code,
		hostPeerID:            hostPeerID,
		createdAt:             time.Now(),
		players:               make(map[string]*PlayerInfo),
		gamepadOwners:         make(map[int]string),
		peerGamepadMappings:   make(map[string]map[int]int),
		defaultKeyboardAccess: true,
		defaultMouseAccess:    true,
	}
	r.players[hostPeerID] = &PlayerInfo{
		PeerID:         hostPeerID,
		Name:           hostName,
		Slot:           Slot1,
		IsHost:         true,
		IsSpectator:    false,
		CanUseKeyboard: true,
		CanUseMouse:    true,
		JoinedAt:       r.createdAt,
	}
	return r
}

// Code returns the room's join code.
func (r *Room) Code() string { return r.code }

// CreatedAt returns the room's creation time.
func (r *Room) CreatedAt() time.Time { return r.createdAt }

// IsHost reports whether peerID is the current host.
func (r *Room) IsHost(peerID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hostPeerID == peerID
}

// HostPeerID returns the current host's peer id.
func (r *Room) HostPeerID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hostPeerID
}

// AddSpectator adds peerID to the room as a spectator. Rejected if the
// peer is already present or the room is at capacity (spec.md §4.5).
func (r *Room) AddSpectator(peerID, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.players[peerID]; exists {
		return apperr.New(apperr.KindRoomFull, "peer already in room")
	}
	if len(r.players) >= maxPeers {
		return apperr.New(apperr.KindRoomFull, "room at capacity")
	}

	r.players[peerID] = &PlayerInfo{
		PeerID:         peerID,
		Name:           name,
		Slot:           SlotNone,
		IsSpectator:    true,
		CanUseKeyboard: r.defaultKeyboardAccess,
		CanUseMouse:    r.defaultMouseAccess,
		JoinedAt:       time.Now(),
	}
	return nil
}

func (r *Room) nextAvailableSlotLocked() Slot {
	used := make(map[Slot]bool, maxPlayerSlots)
	for _, p := range r.players {
		if !p.IsSpectator {
			used[p.Slot] = true
		}
	}
	for s := Slot1; s <= Slot4; s++ {
		if !used[s] {
			return s
		}
	}
	return SlotNone
}

// PromoteToPlayer assigns peerID the smallest unused slot in {1..4}.
// Returns RoomFull if every slot is taken (spec.md §4.5, §8 "Four
// players ⇒ fifth join_as_player fails").
func (r *Room) PromoteToPlayer(peerID string) (Slot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.players[peerID]
	if !ok {
		return SlotNone, apperr.New(apperr.KindNotInRoom, "peer not in room")
	}

	slot := r.nextAvailableSlotLocked()
	if slot == SlotNone {
		return SlotNone, apperr.New(apperr.KindRoomFull, "no player slots available")
	}

	p.Slot = slot
	p.IsSpectator = false
	p.CanUseKeyboard = r.defaultKeyboardAccess
	p.CanUseMouse = r.defaultMouseAccess
	return slot, nil
}

// RemovePeer removes peerID from the room, releasing every gamepad
// slot it owned. Returns true iff the removed peer was the host
// (spec.md §4.5: the registry then destroys the room). Calling twice
// for the same id is equivalent to once (spec.md §8).
func (r *Room) RemovePeer(peerID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.players[peerID]
	if !ok {
		return false
	}

	for slot, owner := range r.gamepadOwners {
		if owner == peerID {
			delete(r.gamepadOwners, slot)
		}
	}
	delete(r.peerGamepadMappings, peerID)
	delete(r.players, peerID)

	return peerID == r.hostPeerID
}

// ClaimGamepad assigns a server slot for (peerID, browserGamepadID),
// idempotent per pair (spec.md §4.5, §8 "claim_gamepad called twice
// returns the same slot"). Server slots come from a per-room counter
// and released slots are not handed out again; fails if peerID is a
// spectator or 16 slots have already been allocated in this room.
func (r *Room) ClaimGamepad(peerID string, browserGamepadID int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.players[peerID]
	if !ok {
		return -1, apperr.New(apperr.KindNotInRoom, "peer not in room")
	}
	if p.IsSpectator {
		return -1, apperr.New(apperr.KindGamepadExhausted, "spectators cannot claim a gamepad")
	}

	if mapping, ok := r.peerGamepadMappings[peerID]; ok {
		if slot, ok := mapping[browserGamepadID]; ok {
			return slot, nil
		}
	}

	if r.nextGamepadSlot >= maxGamepadSlots {
		return -1, apperr.New(apperr.KindGamepadExhausted, "all gamepad slots in use")
	}

	slot := r.nextGamepadSlot
	r.nextGamepadSlot++
	r.gamepadOwners[slot] = peerID
	if r.peerGamepadMappings[peerID] == nil {
		r.peerGamepadMappings[peerID] = make(map[int]int)
	}
	r.peerGamepadMappings[peerID][browserGamepadID] = slot
	p.ClaimedGamepadIDs = append(p.ClaimedGamepadIDs, browserGamepadID)

	return slot, nil
}

// ReleaseGamepad releases serverSlot, verifying peerID owns it.
func (r *Room) ReleaseGamepad(peerID string, serverSlot int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	owner, ok := r.gamepadOwners[serverSlot]
	if !ok || owner != peerID {
		return apperr.New(apperr.KindNotInRoom, "slot not owned by peer")
	}

	delete(r.gamepadOwners, serverSlot)
	for browserID, slot := range r.peerGamepadMappings[peerID] {
		if slot == serverSlot {
			delete(r.peerGamepadMappings[peerID], browserID)
		}
	}
	return nil
}

// GetGamepadSlot returns the server slot claimed for
// (peerID, browserGamepadID), if any.
func (r *Room) GetGamepadSlot(peerID string, browserGamepadID int) (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	mapping, ok := r.peerGamepadMappings[peerID]
	if !ok {
		return -1, false
	}
	slot, ok := mapping[browserGamepadID]
	return slot, ok
}

// SetKeyboardAccess toggles keyboard access for peerID. The host can
// never be downgraded; the room-wide default for future guests
// follows the most recent host call (spec.md §4.5).
func (r *Room) SetKeyboardAccess(peerID string, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.players[peerID]
	if !ok {
		return apperr.New(apperr.KindNotInRoom, "peer not in room")
	}
	if p.IsHost {
		return apperr.New(apperr.KindNotHost, "host keyboard access cannot be revoked")
	}
	p.CanUseKeyboard = enabled
	r.defaultKeyboardAccess = enabled
	return nil
}

// SetMouseAccess toggles mouse access for peerID, same rules as
// SetKeyboardAccess.
func (r *Room) SetMouseAccess(peerID string, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.players[peerID]
	if !ok {
		return apperr.New(apperr.KindNotInRoom, "peer not in room")
	}
	if p.IsHost {
		return apperr.New(apperr.KindNotHost, "host mouse access cannot be revoked")
	}
	p.CanUseMouse = enabled
	r.defaultMouseAccess = enabled
	return nil
}

// CanUseKeyboard reports whether peerID currently has keyboard access.
func (r *Room) CanUseKeyboard(peerID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.players[peerID]
	return ok && p.CanUseKeyboard
}

// CanUseMouse reports whether peerID currently has mouse access.
func (r *Room) CanUseMouse(peerID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.players[peerID]
	return ok && p.CanUseMouse
}

// IsSpectator reports whether peerID is currently a spectator.
func (r *Room) IsSpectator(peerID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.players[peerID]
	return ok && p.IsSpectator
}

// GetPlayers returns a snapshot of every member's PlayerInfo.
func (r *Room) GetPlayers() []PlayerInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]PlayerInfo, 0, len(r.players))
	for _, p := range r.players {
		out = append(out, *p)
	}
	return out
}

// GetPlayer returns a snapshot of one member's PlayerInfo.
func (r *Room) GetPlayer(peerID string) (PlayerInfo, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.players[peerID]
	if !ok {
		return PlayerInfo{}, false
	}
	return *p, true
}

// PeerCount returns the total membership, including spectators.
func (r *Room) PeerCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.players)
}

// PlayerCount returns the number of non-spectator members.
func (r *Room) PlayerCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, p := range r.players {
		if !p.IsSpectator {
			n++
		}
	}
	return n
}

// IsFull reports whether all 4 player slots are taken.
func (r *Room) IsFull() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.nextAvailableSlotLocked() == SlotNone
}
