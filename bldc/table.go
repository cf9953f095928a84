package bldc

import (
	"math"
	"sync/atomic"
)

// Table slots. Slots 0 and 1 alternate as the generated tables, the
// start slot holds the six-step table used while acquiring the rotor.
const (
	slotLookup1 uint8 = 0
	slotLookup2 uint8 = 1
	slotStart   uint8 = 2
	slotNone    uint8 = 3

	numSlots = 3
)

type waveKind uint8

const (
	waveTrapezoid waveKind = iota
	waveSine
)

// Phase A reads index i, B is 240 degrees on, C 120 degrees on
var phaseOffset = [3]int{0, 2 * phaseSteps, phaseSteps}

// unitWave holds (1-cos)/2 over one electrical cycle in Q15
var unitWave [DutySteps]uint16

func init() {
	for i := 0; i <= DutySteps/2; i++ {
		v := uint16(math.Round((1 - math.Cos(2*math.Pi*float64(i)/DutySteps)) / 2 * 32767))
		unitWave[i] = v
		if i > 0 {
			unitWave[DutySteps-i] = v
		}
	}
}

// dutyTables is the table arena of one motor. sel packs the OLD, NEW and
// STAGED slot numbers into one word: old | new<<8 | staged<<16.
// The foreground only sets STAGED; the stepper moves STAGED to NEW.
type dutyTables struct {
	buf  [numSlots][DutySteps]uint16
	amp  [numSlots]uint16
	kind [numSlots]waveKind
	sel  uint32
}

func packSel(old, cur, staged uint8) uint32 {
	return uint32(old) | uint32(cur)<<8 | uint32(staged)<<16
}

func unpackSel(v uint32) (old, cur, staged uint8) {
	return uint8(v), uint8(v >> 8), uint8(v >> 16)
}

func (t *dutyTables) load() (old, cur, staged uint8) {
	return unpackSel(atomic.LoadUint32(&t.sel))
}

func (t *dutyTables) store(old, cur, staged uint8) {
	atomic.StoreUint32(&t.sel, packSel(old, cur, staged))
}

// reset points OLD and NEW at the start table and drops anything staged
func (t *dutyTables) reset() {
	t.store(slotStart, slotStart, slotNone)
}

// freeSlot returns a generated slot the stepper is not reading
func (t *dutyTables) freeSlot() (uint8, bool) {
	old, cur, staged := t.load()
	if staged != slotNone {
		return slotNone, false
	}
	for _, s := range [...]uint8{slotLookup1, slotLookup2} {
		if s != old && s != cur {
			return s, true
		}
	}
	return slotNone, false
}

// stage publishes slot for the next wraparound
func (t *dutyTables) stage(slot uint8) bool {
	for {
		v := atomic.LoadUint32(&t.sel)
		old, cur, staged := unpackSel(v)
		if staged != slotNone || slot == old || slot == cur {
			return false
		}
		if atomic.CompareAndSwapUint32(&t.sel, v, packSel(old, cur, slot)) {
			return true
		}
	}
}

// unstage withdraws a staged table that was never taken
func (t *dutyTables) unstage() {
	for {
		v := atomic.LoadUint32(&t.sel)
		old, cur, staged := unpackSel(v)
		if staged == slotNone {
			return
		}
		if atomic.CompareAndSwapUint32(&t.sel, v, packSel(old, cur, slotNone)) {
			return
		}
	}
}

// retireOld makes OLD alias NEW, keeping whatever is staged
func (t *dutyTables) retireOld() {
	for {
		v := atomic.LoadUint32(&t.sel)
		_, cur, staged := unpackSel(v)
		if atomic.CompareAndSwapUint32(&t.sel, v, packSel(cur, cur, staged)) {
			return
		}
	}
}

// build fills slot with a table of the given shape and amplitude
func (t *dutyTables) build(slot uint8, kind waveKind, top uint32, amp uint16) {
	if kind == waveSine {
		buildSine(&t.buf[slot], top, amp)
	} else {
		buildTrapezoid(&t.buf[slot], top, amp)
	}
	t.amp[slot] = amp
	t.kind[slot] = kind
}

// buildSine writes top*amp*(1-cos(2*pi*i/N))/2
func buildSine(dst *[DutySteps]uint16, top uint32, amp uint16) {
	peak := uint64(top) * uint64(amp) / PwmScale
	for i := range dst {
		dst[i] = uint16(peak * uint64(unitWave[i]) / 32767)
	}
}

// buildTrapezoid writes top*amp on the half cycle [N/4, 3N/4)
func buildTrapezoid(dst *[DutySteps]uint16, top uint32, amp uint16) {
	peak := uint16(uint64(top) * uint64(amp) / PwmScale)
	for i := range dst {
		if i >= DutySteps/4 && i < 3*DutySteps/4 {
			dst[i] = peak
		} else {
			dst[i] = 0
		}
	}
}

// sample returns the duty of one phase at table index idx
func (t *dutyTables) sample(slot uint8, idx uint16, phase int) uint32 {
	return uint32(t.buf[slot][(int(idx)+phaseOffset[phase])%DutySteps])
}

// wrapIndex reduces i into [0, DutySteps)
func wrapIndex(i int) uint16 {
	i %= DutySteps
	if i < 0 {
		i += DutySteps
	}
	return uint16(i)
}

// wrapSigned reduces i into [-DutySteps/2, DutySteps/2)
func wrapSigned(i int) int {
	return int(wrapIndex(i+DutySteps/2)) - DutySteps/2
}

func mod6(v int) int {
	v %= HallSectors
	if v < 0 {
		v += HallSectors
	}
	return v
}
