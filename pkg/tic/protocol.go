package tic

import "encoding/binary"

// Command bytes of the Tic compact serial protocol.
const (
	cmdSetTargetPosition   = 0xE0
	cmdSetTargetVelocity   = 0xE3
	cmdHaltAndSetPosition  = 0xEC
	cmdHaltAndHold         = 0x89
	cmdResetCommandTimeout = 0x8C
	cmdDeenergize          = 0x86
	cmdEnergize            = 0x85
	cmdExitSafeStart       = 0x83
	cmdEnterSafeStart      = 0x8F
	cmdReset               = 0xB0
	cmdClearDriverError    = 0x8A
	cmdSetMaxSpeed         = 0xE6
	cmdSetStartingSpeed    = 0xE5
	cmdSetMaxAccel         = 0xEA
	cmdSetMaxDecel         = 0xE9
	cmdSetStepMode         = 0x94
	cmdSetCurrentLimit     = 0x91
	cmdGetVariable         = 0xA1
	cmdGetVariableAndClear = 0xA2
)

// Offsets of the variables returned by the "get variable" command.
const (
	varOperationState       = 0x00
	varMiscFlags1           = 0x01
	varErrorStatus          = 0x02
	varErrorsOccurred       = 0x04
	varPlanningMode         = 0x09
	varTargetPosition       = 0x0A
	varTargetVelocity       = 0x0E
	varMaxSpeed             = 0x16
	varMaxDecel             = 0x1A
	varMaxAccel             = 0x1E
	varCurrentPosition      = 0x22
	varCurrentVelocity      = 0x26
	varVinVoltage           = 0x33
	varStepMode             = 0x49
	varCurrentLimit         = 0x4A
	varInputState           = 0x4C
	statusBlockLen          = 0x4D
)

// quick encodes a command without data.
func quick(cmd byte) []byte {
	return []byte{cmd}
}

// seven encodes a command with a single 7-bit data byte.
func seven(cmd, data byte) []byte {
	return []byte{cmd, data & 0x7F}
}

// thirtyTwo encodes a command with a 32-bit little endian value. The most
// significant bit of every data byte travels in a separate leading byte so
// all data bytes stay below 0x80.
func thirtyTwo(cmd byte, v uint32) []byte {
	var d [4]byte
	binary.LittleEndian.PutUint32(d[:], v)
	msbs := (d[0]>>7)&1 | (d[1]>>6)&2 | (d[2]>>5)&4 | (d[3]>>4)&8
	return []byte{cmd, msbs, d[0] & 0x7F, d[1] & 0x7F, d[2] & 0x7F, d[3] & 0x7F}
}

// getVariable encodes a block read of n bytes starting at offset.
func getVariable(offset, n byte, clear bool) []byte {
	cmd := byte(cmdGetVariable)
	if clear {
		cmd = cmdGetVariableAndClear
	}
	return []byte{cmd, offset & 0x7F, n & 0x7F}
}

// Status is a decoded block of Tic variables.
type Status struct {
	OperationState  OperationState
	ErrorStatus     ErrorBits
	ErrorsOccurred  uint32
	TargetPosition  int32
	TargetVelocity  int32
	MaxSpeed        uint32
	MaxDecel        uint32
	MaxAccel        uint32
	CurrentPosition int32
	CurrentVelocity int32
	VinMillivolts   uint16
	StepMode        byte
	CurrentLimit    byte // device-specific code, see CurrentLimitMilliamps
	PlanningMode    byte
}

func decodeStatus(b []byte) Status {
	le := binary.LittleEndian
	return Status{
		OperationState:  OperationState(b[varOperationState]),
		ErrorStatus:     ErrorBits(le.Uint16(b[varErrorStatus:])),
		ErrorsOccurred:  le.Uint32(b[varErrorsOccurred:]),
		PlanningMode:    b[varPlanningMode],
		TargetPosition:  int32(le.Uint32(b[varTargetPosition:])),
		TargetVelocity:  int32(le.Uint32(b[varTargetVelocity:])),
		MaxSpeed:        le.Uint32(b[varMaxSpeed:]),
		MaxDecel:        le.Uint32(b[varMaxDecel:]),
		MaxAccel:        le.Uint32(b[varMaxAccel:]),
		CurrentPosition: int32(le.Uint32(b[varCurrentPosition:])),
		CurrentVelocity: int32(le.Uint32(b[varCurrentVelocity:])),
		VinMillivolts:   le.Uint16(b[varVinVoltage:]),
		StepMode:        b[varStepMode],
		CurrentLimit:    b[varCurrentLimit],
	}
}

// OperationState is the Tic operation state variable.
type OperationState byte

const (
	StateReset             OperationState = 0
	StateDeenergized       OperationState = 2
	StateSoftError         OperationState = 4
	StateWaitingForErrLine OperationState = 6
	StateStartingUp        OperationState = 8
	StateNormal            OperationState = 10
)

func (s OperationState) String() string {
	switch s {
	case StateReset:
		return "reset"
	case StateDeenergized:
		return "de-energized"
	case StateSoftError:
		return "soft error"
	case StateWaitingForErrLine:
		return "waiting for ERR line"
	case StateStartingUp:
		return "starting up"
	case StateNormal:
		return "normal"
	}
	return "unknown"
}

// ErrorBits is the Tic error status bit field.
type ErrorBits uint16

var errorNames = []string{
	"intentionally de-energized",
	"motor driver error",
	"low VIN",
	"kill switch active",
	"required input invalid",
	"serial error",
	"command timeout",
	"safe start violation",
	"ERR line high",
}

// Names lists the errors that are set.
func (e ErrorBits) Names() []string {
	var out []string
	for i, name := range errorNames {
		if e&(1<<i) != 0 {
			out = append(out, name)
		}
	}
	return out
}
