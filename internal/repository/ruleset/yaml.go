package ruleset

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/cmlabs-hris/manpower-payroll-go/internal/domain/ruletable"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

const (
	defaultRemittanceDay = 15
	defaultPTDueDay      = 21
)

// ========== FILE FORMAT ==========

type fileDocument struct {
	RuleSets []fileRuleSet `yaml:"rule_sets"`
}

type fileRuleSet struct {
	Version           string             `yaml:"version"`
	EffectiveFrom     string             `yaml:"effective_from"`
	EPF               fileEPF            `yaml:"epf"`
	ESI               fileESI            `yaml:"esi"`
	ProfessionalTax   map[string]filePT  `yaml:"professional_tax"`
	LabourWelfareFund map[string]fileLWF `yaml:"labour_welfare_fund"`
}

type fileEPF struct {
	WageCeiling    string `yaml:"wage_ceiling"`
	EmployeeRate   string `yaml:"employee_rate"`
	EmployerRate   string `yaml:"employer_rate"`
	EPSRate        string `yaml:"eps_rate"`
	EPSWageCeiling string `yaml:"eps_wage_ceiling"`
	DueDay         int    `yaml:"due_day"`
}

type fileESI struct {
	WageCeiling  string `yaml:"wage_ceiling"`
	EmployeeRate string `yaml:"employee_rate"`
	EmployerRate string `yaml:"employer_rate"`
	DueDay       int    `yaml:"due_day"`
}

type filePT struct {
	Exempt bool `yaml:"exempt"`
	DueDay int  `yaml:"due_day"`
	Slabs  []struct {
		From   string `yaml:"from"`
		Amount string `yaml:"amount"`
	} `yaml:"slabs"`
	MonthAmounts map[int]string `yaml:"month_amounts"`
}

type fileLWF struct {
	Exempt         bool   `yaml:"exempt"`
	Amount         string `yaml:"amount"`
	EmployeeShare  int64  `yaml:"employee_share"`
	EmployerShare  int64  `yaml:"employer_share"`
	FilingMonths   []int  `yaml:"filing_months"`
	DueDay         int    `yaml:"due_day"`
	DueMonthOffset int    `yaml:"due_month_offset"`
}

// ========== STORE ==========

// Store is a read-only ruletable.Repository backed by YAML documents.
type Store struct {
	sets      []*ruletable.RuleSet
	byVersion map[string]*ruletable.RuleSet
}

// Default loads the rule sets embedded in the binary.
func Default() (*Store, error) {
	return Load(bytes.NewReader(defaultsYAML))
}

// LoadFile loads rule sets from path, or the embedded defaults when path is empty.
func LoadFile(path string) (*Store, error) {
	if path == "" {
		return Default()
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open rule table file: %w", err)
	}
	defer f.Close()
	return Load(f)
}

func Load(r io.Reader) (*Store, error) {
	var doc fileDocument
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: decode yaml: %v", ruletable.ErrInvalidRuleSet, err)
	}
	if len(doc.RuleSets) == 0 {
		return nil, fmt.Errorf("%w: no rule sets defined", ruletable.ErrInvalidRuleSet)
	}

	store := &Store{byVersion: make(map[string]*ruletable.RuleSet, len(doc.RuleSets))}
	for _, raw := range doc.RuleSets {
		set, err := raw.toRuleSet()
		if err != nil {
			return nil, fmt.Errorf("%w: version %q: %v", ruletable.ErrInvalidRuleSet, raw.Version, err)
		}
		if _, dup := store.byVersion[set.Version]; dup {
			return nil, fmt.Errorf("%w: duplicate version %q", ruletable.ErrInvalidRuleSet, set.Version)
		}
		store.byVersion[set.Version] = set
		store.sets = append(store.sets, set)
	}
	sort.Slice(store.sets, func(i, j int) bool {
		return store.sets[i].EffectiveFrom.Before(store.sets[j].EffectiveFrom)
	})

	return store, nil
}

func (s *Store) Get(ctx context.Context, version string) (*ruletable.RuleSet, error) {
	set, ok := s.byVersion[version]
	if !ok {
		return nil, fmt.Errorf("%w: version %q", ruletable.ErrRuleSetNotFound, version)
	}
	return set, nil
}

func (s *Store) Effective(ctx context.Context, asOf time.Time) (*ruletable.RuleSet, error) {
	var effective *ruletable.RuleSet
	for _, set := range s.sets {
		if set.EffectiveFrom.After(asOf) {
			break
		}
		effective = set
	}
	if effective == nil {
		return nil, fmt.Errorf("%w: none effective on %s", ruletable.ErrRuleSetNotFound, asOf.Format("2006-01-02"))
	}
	return effective, nil
}

// ========== CONVERSION ==========

func (f fileRuleSet) toRuleSet() (*ruletable.RuleSet, error) {
	if f.Version == "" {
		return nil, fmt.Errorf("version is required")
	}
	effectiveFrom, err := time.Parse("2006-01-02", f.EffectiveFrom)
	if err != nil {
		return nil, fmt.Errorf("effective_from: %w", err)
	}

	set := &ruletable.RuleSet{
		Version:           f.Version,
		EffectiveFrom:     effectiveFrom,
		ProfessionalTax:   make(map[ruletable.State]ruletable.PTSchedule, len(f.ProfessionalTax)),
		LabourWelfareFund: make(map[ruletable.State]ruletable.LWFSchedule, len(f.LabourWelfareFund)),
	}

	p := parser{}
	set.EPF = ruletable.EPFRules{
		WageCeiling:    p.amount("epf.wage_ceiling", f.EPF.WageCeiling),
		EmployeeRate:   p.amount("epf.employee_rate", f.EPF.EmployeeRate),
		EmployerRate:   p.amount("epf.employer_rate", f.EPF.EmployerRate),
		EPSRate:        p.amount("epf.eps_rate", f.EPF.EPSRate),
		EPSWageCeiling: p.amount("epf.eps_wage_ceiling", f.EPF.EPSWageCeiling),
		DueDay:         p.day("epf.due_day", f.EPF.DueDay, defaultRemittanceDay),
	}
	set.ESI = ruletable.ESIRules{
		WageCeiling:  p.amount("esi.wage_ceiling", f.ESI.WageCeiling),
		EmployeeRate: p.amount("esi.employee_rate", f.ESI.EmployeeRate),
		EmployerRate: p.amount("esi.employer_rate", f.ESI.EmployerRate),
		DueDay:       p.day("esi.due_day", f.ESI.DueDay, defaultRemittanceDay),
	}
	if p.err == nil && set.EPF.EPSRate.GreaterThan(set.EPF.EmployerRate) {
		return nil, fmt.Errorf("epf.eps_rate exceeds employer_rate")
	}

	for code, raw := range f.ProfessionalTax {
		state := ruletable.State(code)
		schedule := ruletable.PTSchedule{
			State:  state,
			Exempt: raw.Exempt,
			DueDay: p.day("professional_tax."+code+".due_day", raw.DueDay, defaultPTDueDay),
		}
		for i, slab := range raw.Slabs {
			field := fmt.Sprintf("professional_tax.%s.slabs[%d]", code, i)
			schedule.Slabs = append(schedule.Slabs, ruletable.PTSlab{
				LowerBound: p.amount(field+".from", slab.From),
				Amount:     p.amount(field+".amount", slab.Amount),
			})
		}
		if len(raw.MonthAmounts) > 0 {
			schedule.MonthAmounts = make(map[int]decimal.Decimal, len(raw.MonthAmounts))
			for month, amount := range raw.MonthAmounts {
				if month < 1 || month > 12 {
					return nil, fmt.Errorf("professional_tax.%s.month_amounts: invalid month %d", code, month)
				}
				schedule.MonthAmounts[month] = p.amount(fmt.Sprintf("professional_tax.%s.month_amounts.%d", code, month), amount)
			}
		}
		if p.err != nil {
			return nil, p.err
		}
		if err := validatePT(schedule); err != nil {
			return nil, err
		}
		set.ProfessionalTax[state] = schedule
	}

	for code, raw := range f.LabourWelfareFund {
		state := ruletable.State(code)
		schedule := ruletable.LWFSchedule{
			State:          state,
			Exempt:         raw.Exempt,
			EmployeeShare:  raw.EmployeeShare,
			EmployerShare:  raw.EmployerShare,
			FilingMonths:   raw.FilingMonths,
			DueDay:         p.day("labour_welfare_fund."+code+".due_day", raw.DueDay, defaultRemittanceDay),
			DueMonthOffset: raw.DueMonthOffset,
		}
		if schedule.DueMonthOffset == 0 {
			schedule.DueMonthOffset = 1
		}
		if !raw.Exempt {
			schedule.Amount = p.amount("labour_welfare_fund."+code+".amount", raw.Amount)
		}
		if p.err != nil {
			return nil, p.err
		}
		if err := validateLWF(schedule); err != nil {
			return nil, err
		}
		set.LabourWelfareFund[state] = schedule
	}

	if p.err != nil {
		return nil, p.err
	}
	return set, nil
}

func validatePT(s ruletable.PTSchedule) error {
	if s.Exempt {
		return nil
	}
	if len(s.Slabs) == 0 {
		return fmt.Errorf("professional_tax.%s: at least one slab is required", s.State)
	}
	for i := 1; i < len(s.Slabs); i++ {
		if !s.Slabs[i].LowerBound.GreaterThan(s.Slabs[i-1].LowerBound) {
			return fmt.Errorf("professional_tax.%s: slab lower bounds must be strictly increasing", s.State)
		}
	}
	return nil
}

func validateLWF(s ruletable.LWFSchedule) error {
	if s.Exempt {
		return nil
	}
	if s.EmployeeShare < 0 || s.EmployerShare < 0 || s.EmployeeShare+s.EmployerShare == 0 {
		return fmt.Errorf("labour_welfare_fund.%s: shares must be non-negative and not both zero", s.State)
	}
	if len(s.FilingMonths) == 0 {
		return fmt.Errorf("labour_welfare_fund.%s: filing_months is required", s.State)
	}
	for _, m := range s.FilingMonths {
		if m < 1 || m > 12 {
			return fmt.Errorf("labour_welfare_fund.%s: invalid filing month %d", s.State, m)
		}
	}
	if s.DueMonthOffset < 0 || s.DueMonthOffset > 12 {
		return fmt.Errorf("labour_welfare_fund.%s: due_month_offset out of range", s.State)
	}
	return nil
}

// parser keeps the first conversion error so field parsing reads linearly.
type parser struct {
	err error
}

func (p *parser) amount(field, value string) decimal.Decimal {
	if p.err != nil {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		p.err = fmt.Errorf("%s: %q is not a number", field, value)
		return decimal.Zero
	}
	if d.IsNegative() {
		p.err = fmt.Errorf("%s: must be non-negative", field)
		return decimal.Zero
	}
	return d
}

func (p *parser) day(field string, value, fallback int) int {
	if value == 0 {
		return fallback
	}
	if p.err == nil && (value < 1 || value > 31) {
		p.err = fmt.Errorf("%s: %d is not a day of month", field, value)
	}
	return value
}
