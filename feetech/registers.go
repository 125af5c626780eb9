package feetech

// Register is a control table entry.
type Register struct {
	Address byte
	Size    int // 1 or 2 bytes
}

// STS control table entries used by the pan/tilt head.
var (
	RegModelNumber     = Register{Address: 3, Size: 2}
	RegMinAngleLimit   = Register{Address: 9, Size: 2}
	RegMaxAngleLimit   = Register{Address: 11, Size: 2}
	RegTorqueEnable    = Register{Address: 40, Size: 1}
	RegAcceleration    = Register{Address: 41, Size: 1}
	RegGoalPosition    = Register{Address: 42, Size: 2}
	RegGoalSpeed       = Register{Address: 46, Size: 2}
	RegPresentPosition = Register{Address: 56, Size: 2}
)

// Known model numbers, for log output.
var modelNames = map[uint16]string{
	777:  "sts3215",
	1540: "sts3250",
}

// ModelName returns the name of a model number, or "unknown".
func ModelName(number uint16) string {
	if name, ok := modelNames[number]; ok {
		return name
	}
	return "unknown"
}
