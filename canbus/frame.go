// Package canbus frames the controller boundary for a drive-by-wire bus:
// the actuator command produced each tick goes out as one CAN frame, and
// vehicle state feedback (speed, pitch) comes back as another. Signals use
// little-endian bit packing with factor/offset scaling.
package canbus

import (
	"fmt"
	"math"

	"github.com/samber/lo"
	"go.einride.tech/can"
)

// Frame IDs and layouts. The command frame is transmitted by the controller
// host; the state frame is received from the vehicle gateway.
const (
	CommandFrameID uint32 = 0x120
	StateFrameID   uint32 = 0x300

	commandFrameDLC = 8
	stateFrameDLC   = 8
)

type signalDef struct {
	startBit  int
	bitLength int
	signed    bool
	factor    float64
	min       float64
	max       float64
}

// ACTUATOR_CMD signal layout.
var (
	sigThrottle  = signalDef{startBit: 0, bitLength: 10, factor: 0.001, min: 0, max: 1}
	sigBrake     = signalDef{startBit: 10, bitLength: 10, factor: 0.001, min: 0, max: 1}
	sigSteer     = signalDef{startBit: 20, bitLength: 12, signed: true, factor: 0.0005, min: -1, max: 1}
	sigReverse   = signalDef{startBit: 32, bitLength: 1, factor: 1, min: 0, max: 1}
	sigHandBrake = signalDef{startBit: 33, bitLength: 1, factor: 1, min: 0, max: 1}
	sigStatus    = signalDef{startBit: 34, bitLength: 2, factor: 1, min: 0, max: 3}
)

// VEHICLE_STATE signal layout. Speed uses the conventional 0.01 m/s
// resolution; pitch is packed at 0.0001 rad.
var (
	sigSpeed = signalDef{startBit: 0, bitLength: 16, signed: true, factor: 0.01, min: -327.68, max: 327.67}
	sigPitch = signalDef{startBit: 16, bitLength: 16, signed: true, factor: 0.0001, min: -3.2768, max: 3.2767}
)

func (s signalDef) mask() uint64 {
	return uint64(1)<<s.bitLength - 1
}

func (s signalDef) rawRange() (int64, int64) {
	if s.signed {
		return -1 << (s.bitLength - 1), 1<<(s.bitLength-1) - 1
	}
	return 0, int64(s.mask())
}

// encode writes the scaled signal into the payload, clamping first in
// physical units and then in raw counts. Negative raws store as two's
// complement within the field width.
func (s signalDef) encode(payload uint64, value float64) uint64 {
	value = lo.Clamp(value, s.min, s.max)
	rawMin, rawMax := s.rawRange()
	raw := lo.Clamp(int64(math.Round(value/s.factor)), rawMin, rawMax)
	return payload&^(s.mask()<<s.startBit) | (uint64(raw)&s.mask())<<s.startBit
}

func (s signalDef) decode(payload uint64) float64 {
	raw := payload >> s.startBit & s.mask()
	if s.signed {
		// Sign-extend the field through a 64-bit shift pair.
		shift := 64 - s.bitLength
		return float64(int64(raw<<shift)>>shift) * s.factor
	}
	return float64(raw) * s.factor
}

// Command is the decoded form of the actuator command frame.
type Command struct {
	Throttle  float64 // [0, 1]
	Brake     float64 // [0, 1]
	Steer     float64 // [-1, 1]
	Reverse   bool
	HandBrake bool
	// Status is the driving-regime code attached for bus observers
	// (0 full stop, 1 accelerating, 2 coasting, 3 braking).
	Status uint8
}

// Marshal packs the command into a CAN frame.
func (c Command) Marshal() can.Frame {
	var payload uint64
	payload = sigThrottle.encode(payload, c.Throttle)
	payload = sigBrake.encode(payload, c.Brake)
	payload = sigSteer.encode(payload, c.Steer)
	payload = sigReverse.encode(payload, boolToFloat(c.Reverse))
	payload = sigHandBrake.encode(payload, boolToFloat(c.HandBrake))
	payload = sigStatus.encode(payload, float64(c.Status))

	return payloadFrame(CommandFrameID, commandFrameDLC, payload)
}

// UnmarshalCommand decodes an actuator command frame.
func UnmarshalCommand(frame can.Frame) (Command, error) {
	if uint32(frame.ID) != CommandFrameID {
		return Command{}, fmt.Errorf("expected frame 0x%X, got 0x%X", CommandFrameID, uint32(frame.ID))
	}
	if frame.Length < commandFrameDLC {
		return Command{}, fmt.Errorf("command frame expects DLC %d, got %d", commandFrameDLC, frame.Length)
	}

	payload := framePayload(frame, commandFrameDLC)
	return Command{
		Throttle:  sigThrottle.decode(payload),
		Brake:     sigBrake.decode(payload),
		Steer:     sigSteer.decode(payload),
		Reverse:   sigReverse.decode(payload) != 0,
		HandBrake: sigHandBrake.decode(payload) != 0,
		Status:    uint8(sigStatus.decode(payload)),
	}, nil
}

// State is the decoded form of the vehicle state frame.
type State struct {
	SpeedMPS float64
	PitchRad float64
}

// Marshal packs the state into a CAN frame.
func (s State) Marshal() can.Frame {
	var payload uint64
	payload = sigSpeed.encode(payload, s.SpeedMPS)
	payload = sigPitch.encode(payload, s.PitchRad)

	return payloadFrame(StateFrameID, stateFrameDLC, payload)
}

// UnmarshalState decodes a vehicle state frame.
func UnmarshalState(frame can.Frame) (State, error) {
	if uint32(frame.ID) != StateFrameID {
		return State{}, fmt.Errorf("expected frame 0x%X, got 0x%X", StateFrameID, uint32(frame.ID))
	}
	if frame.Length < stateFrameDLC {
		return State{}, fmt.Errorf("state frame expects DLC %d, got %d", stateFrameDLC, frame.Length)
	}

	payload := framePayload(frame, stateFrameDLC)
	return State{
		SpeedMPS: sigSpeed.decode(payload),
		PitchRad: sigPitch.decode(payload),
	}, nil
}

func payloadFrame(id uint32, dlc int, payload uint64) can.Frame {
	var f can.Frame
	f.ID = id
	f.Length = uint8(dlc)
	for i := 0; i < dlc; i++ {
		f.Data[i] = byte((payload >> (8 * i)) & 0xFF)
	}
	return f
}

func framePayload(frame can.Frame, dlc int) uint64 {
	var payload uint64
	for i := 0; i < dlc && i < 8; i++ {
		payload |= uint64(frame.Data[i]) << (8 * i)
	}
	return payload
}

func boolToFloat(b bool) float64 {
	if b {
		return 1.0
	}
	return 0.0
}
