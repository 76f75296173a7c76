package ruletable

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// State is an Indian state or union territory code ("MH", "KA").
type State string

// Scheme names a statutory contribution scheme.
type Scheme string

const (
	SchemeEPF Scheme = "EPF"
	SchemeESI Scheme = "ESI"
	SchemePT  Scheme = "PT"
	SchemeLWF Scheme = "LWF"
)

// RuleSet - one immutable version of every statutory table
type RuleSet struct {
	Version           string
	EffectiveFrom     time.Time
	EPF               EPFRules
	ESI               ESIRules
	ProfessionalTax   map[State]PTSchedule
	LabourWelfareFund map[State]LWFSchedule
}

// EPFRules - provident fund rates and ceilings
type EPFRules struct {
	WageCeiling    decimal.Decimal
	EmployeeRate   decimal.Decimal
	EmployerRate   decimal.Decimal
	EPSRate        decimal.Decimal
	EPSWageCeiling decimal.Decimal
	DueDay         int
}

// ESIRules - state insurance rates and ceiling
type ESIRules struct {
	WageCeiling  decimal.Decimal
	EmployeeRate decimal.Decimal
	EmployerRate decimal.Decimal
	DueDay       int
}

// PTSlab - tax payable once gross wage reaches LowerBound
type PTSlab struct {
	LowerBound decimal.Decimal
	Amount     decimal.Decimal
}

// PTSchedule - professional tax slabs for one state
type PTSchedule struct {
	State        State
	Exempt       bool
	Slabs        []PTSlab
	MonthAmounts map[int]decimal.Decimal // replaces the top slab's amount in the given month
	DueDay       int
}

// SlabFor returns the highest slab whose lower bound is <= gross.
func (s PTSchedule) SlabFor(gross decimal.Decimal) (PTSlab, bool) {
	var (
		found PTSlab
		ok    bool
	)
	for _, slab := range s.Slabs {
		if slab.LowerBound.GreaterThan(gross) {
			break
		}
		found, ok = slab, true
	}
	return found, ok
}

// IsTopSlab reports whether slab is the last one of the schedule.
func (s PTSchedule) IsTopSlab(slab PTSlab) bool {
	if len(s.Slabs) == 0 {
		return false
	}
	return s.Slabs[len(s.Slabs)-1].LowerBound.Equal(slab.LowerBound)
}

// LWFSchedule - labour welfare fund contribution for one state
type LWFSchedule struct {
	State          State
	Exempt         bool
	Amount         decimal.Decimal
	EmployeeShare  int64
	EmployerShare  int64
	FilingMonths   []int
	DueDay         int
	DueMonthOffset int
}

// InFilingMonth reports whether month carries an LWF deduction.
func (s LWFSchedule) InFilingMonth(month int) bool {
	for _, m := range s.FilingMonths {
		if m == month {
			return true
		}
	}
	return false
}

// States lists the jurisdictions with a PT schedule, sorted.
func (r RuleSet) States() []State {
	states := make([]State, 0, len(r.ProfessionalTax))
	for st := range r.ProfessionalTax {
		states = append(states, st)
	}
	sort.Slice(states, func(i, j int) bool { return states[i] < states[j] })
	return states
}
