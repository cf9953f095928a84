package bldc

import "testing"

func TestCanTransition(t *testing.T) {
	allowed := map[State][]State{
		Stopped:           {Starting},
		Starting:          {SettingUp},
		SettingUp:         {ReadyToTransition, Starting},
		ReadyToTransition: {Transitioning, Starting},
		Transitioning:     {Going, Starting},
		Going:             {Starting},
	}

	states := []State{Starting, SettingUp, ReadyToTransition, Transitioning, Going, Stopped}
	for _, from := range states {
		for _, to := range states {
			want := to == Stopped
			for _, s := range allowed[from] {
				if s == to {
					want = true
				}
			}
			if got := canTransition(from, to); got != want {
				t.Errorf("%s -> %s: expected %v, got %v", from, to, want, got)
			}
		}
	}
}

func TestStateString(t *testing.T) {
	if Going.String() != "GOING" || ReadyToTransition.String() != "READY_TO_TRANSITION" {
		t.Errorf("Unexpected names %q %q", Going, ReadyToTransition)
	}
	if State(42).String() != "UNKNOWN" {
		t.Errorf("Expected UNKNOWN, got %q", State(42))
	}
}

func TestSetStateRejectsSkips(t *testing.T) {
	var seen []State
	SetStateObserver(func(side Side, from, to State) { seen = append(seen, to) })
	defer SetStateObserver(nil)

	m := &Motor{state: Starting}
	if m.setState(Going) {
		t.Error("Expected STARTING -> GOING to be rejected")
	}
	if !m.setState(SettingUp) || m.State() != SettingUp {
		t.Errorf("Expected SETTING_UP, got %s", m.State())
	}
	if !m.setState(Stopped) || !m.setState(Stopped) {
		t.Error("Expected STOPPED to be accepted repeatedly")
	}
	if len(seen) != 2 || seen[0] != SettingUp || seen[1] != Stopped {
		t.Errorf("Expected observer to see [SETTING_UP STOPPED], got %v", seen)
	}
}
