// Package sysinput models the external virtual-input-device facade
// (spec.md §1 Out Of Scope: "consumed via a system_input facade").
// It is modeled as an interface, per spec.md §9's instruction to
// replace singleton managers with explicit dependency injection
// rather than calling free functions on a global device.
//
// Grounded on original_source/src/input.h's input:: free functions
// (keyboard, mouse_move_rel, mouse_move_abs, mouse_button,
// mouse_scroll) plus the gamepad state push implied by spec.md §4.6.
package sysinput

// GamepadState mirrors the fixed wire layout of spec.md §6's
// GamepadState input frame (minus the tag byte).
type GamepadState struct {
	Buttons uint16
	LeftTrigger, RightTrigger       uint8
	LeftStickX, LeftStickY          int16
	RightStickX, RightStickY        int16
}

// Facade is the process-wide virtual input device sink. The Input
// Router is the only caller (spec.md §5 "funnelled through the Input
// Router only").
type Facade interface {
	// Gamepad forwards a full gamepad state update for the given
	// server-assigned slot (0-15).
	Gamepad(slot int, state GamepadState)

	// Keyboard forwards a key event. release=true means key-up,
	// matching original_source/input.h's `keyboard(key_code, release)`.
	Keyboard(keyCode uint16, release bool)

	// MouseMoveRelative forwards a relative mouse delta.
	MouseMoveRelative(dx, dy int16)

	// MouseMoveAbsolute forwards a normalized absolute position in
	// [0, 65535] per axis.
	MouseMoveAbsolute(x, y uint16)

	// MouseButton forwards a mouse button event. button follows
	// original_source's convention: 1=left, 2=middle, 3=right.
	MouseButton(button uint8, pressed bool)

	// MouseScroll forwards a scroll delta. horizontal selects the
	// axis; positive amount is up/right.
	MouseScroll(amount int16, horizontal bool)
}

// NoOp is a Facade that discards every call. Useful as a safe default
// before the real platform input backend is wired in, and in tests.
type NoOp struct{}

func (NoOp) Gamepad(int, GamepadState)         {}
func (NoOp) Keyboard(uint16, bool)             {}
func (NoOp) MouseMoveRelative(int16, int16)    {}
func (NoOp) MouseMoveAbsolute(uint16, uint16)  {}
func (NoOp) MouseButton(uint8, bool)           {}
func (NoOp) MouseScroll(int16, bool)           {}

var _ Facade = NoOp{}
