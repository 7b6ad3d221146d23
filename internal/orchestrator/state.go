package orchestrator

import (
	"fmt"
	"maps"
	"strconv"

	"github.com/vendshop/aiadvent/internal/executor"
	"github.com/vendshop/aiadvent/internal/models"
)

// Mode selects how a prompt is sent.
type Mode string

const (
	ModeSingle      Mode = "single"
	ModeRestriction Mode = "restriction"
	ModeModels      Mode = "models"
	ModeSweep       Mode = "sweep"
	ModePipeline    Mode = "pipeline"
)

// Modes lists every mode in display order.
var Modes = []Mode{ModeSingle, ModeRestriction, ModeModels, ModeSweep, ModePipeline}

// ParseMode maps a name to a Mode.
func ParseMode(s string) (Mode, error) {
	for _, m := range Modes {
		if string(m) == s {
			return m, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
}

// Restriction comparison slot keys.
const (
	SlotUnrestricted = "unrestricted"
	SlotRestricted   = "restricted"
)

// TemperatureKey is the slot key of a sweep temperature, e.g. "0.7".
func TemperatureKey(t float64) string {
	return strconv.FormatFloat(t, 'f', 1, 64)
}

// State is the snapshot published to observers. Snapshots are never
// modified after publication; the with* helpers return modified copies.
type State struct {
	Busy              map[Mode]bool
	LastQuestion      string
	SelectedModel     models.ModelOption
	AvailableModelIDs []string
	SingleText        string
	Branches          map[Mode]map[string]executor.Result
	// PipelineStep is the 1-based step being run, 0 when idle.
	PipelineStep  int
	PipelineSteps int
	Error         string
}

// IsBusy reports whether mode has a send in flight.
func (s State) IsBusy(m Mode) bool {
	return s.Busy[m]
}

// AnyBusy reports whether any mode is busy.
func (s State) AnyBusy() bool {
	for _, b := range s.Busy {
		if b {
			return true
		}
	}
	return false
}

// Slot returns the result stored under key for mode.
func (s State) Slot(m Mode, key string) (executor.Result, bool) {
	r, ok := s.Branches[m][key]
	return r, ok
}

// Slots returns a copy of the results for mode.
func (s State) Slots(m Mode) map[string]executor.Result {
	return maps.Clone(s.Branches[m])
}

func (s State) withBusy(m Mode, busy bool) State {
	b := maps.Clone(s.Busy)
	if b == nil {
		b = make(map[Mode]bool)
	}
	b[m] = busy
	s.Busy = b
	return s
}

func (s State) withSlot(m Mode, key string, r executor.Result) State {
	slots := maps.Clone(s.Branches[m])
	if slots == nil {
		slots = make(map[string]executor.Result)
	}
	slots[key] = r
	return s.withSlots(m, slots)
}

func (s State) withSlots(m Mode, slots map[string]executor.Result) State {
	branches := maps.Clone(s.Branches)
	if branches == nil {
		branches = make(map[Mode]map[string]executor.Result)
	}
	branches[m] = slots
	s.Branches = branches
	return s
}

// begin resets what a new send of mode replaces and marks it busy.
func (s State) begin(m Mode, question string) State {
	s = s.withSlots(m, map[string]executor.Result{})
	s.LastQuestion = question
	s.Error = ""
	if m == ModeSingle {
		s.SingleText = ""
	}
	return s.withBusy(m, true)
}
