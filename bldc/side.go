package bldc

// Side identifies one of the two motors
type Side uint8

const (
	Left Side = iota
	Right

	numMotors = 2
)

// String returns "L" or "R"
func (s Side) String() string {
	switch s {
	case Left:
		return "L"
	case Right:
		return "R"
	default:
		return "?"
	}
}

// other returns the sibling side
func (s Side) other() Side {
	return (s + 1) % numMotors
}
