package payroll

import (
	"errors"
	"testing"

	"github.com/cmlabs-hris/manpower-payroll-go/internal/domain/ruletable"
	"github.com/cmlabs-hris/manpower-payroll-go/internal/pkg/validator"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func record(code string, state ruletable.State, gross, epf, esi, pt, lwf int64) SalaryRecord {
	ded := Deductions{EPF: d(epf), ESI: d(esi), PT: d(pt), LWF: d(lwf)}
	return SalaryRecord{
		EmployeeID:   "id-" + code,
		EmployeeCode: code,
		State:        state,
		GrossEarned:  d(gross),
		Deductions:   ded,
		Employer:     EmployerContributions{EPF: d(epf / 2), EPS: d(epf - epf/2), ESI: d(esi * 4), PT: decimal.Zero, LWF: d(lwf * 3)},
		NetPay:       d(gross).Sub(ded.Total()),
	}
}

func TestPayrollRun_Aggregate(t *testing.T) {
	// Setup
	records := []SalaryRecord{
		record("E001", "MH", 20000, 1800, 0, 200, 25),
		record("E002", "KA", 15000, 1800, 113, 0, 0),
		record("E003", "MH", 10000, 1200, 75, 175, 25),
	}
	run := PayrollRun{}

	// Act
	run.Aggregate(records)

	// Assert
	assert.Equal(t, 3, run.EmployeeCount)
	assert.True(t, run.TotalGross.Equal(d(45000)))
	assert.True(t, run.TotalDeductions.Equal(d(1800+200+25+1800+113+1200+75+175+25)))
	assert.True(t, run.TotalNetPay.Equal(run.TotalGross.Sub(run.TotalDeductions)))

	require.Len(t, run.Statutory, 2+2+2)
	assert.Equal(t, ruletable.SchemeEPF, run.Statutory[0].Scheme)
	assert.True(t, run.Statutory[0].EmployeeAmount.Equal(d(4800)))
	assert.True(t, run.Statutory[0].EmployerAmount.Equal(d(4800)))
	assert.Equal(t, ruletable.SchemeESI, run.Statutory[1].Scheme)
	assert.True(t, run.Statutory[1].Total().Equal(d(188*5)))

	assert.Equal(t, ruletable.SchemePT, run.Statutory[2].Scheme)
	assert.Equal(t, ruletable.State("KA"), run.Statutory[2].State)
	assert.Equal(t, ruletable.State("MH"), run.Statutory[3].State)
	assert.True(t, run.Statutory[3].EmployeeAmount.Equal(d(375)))
	assert.Equal(t, ruletable.SchemeLWF, run.Statutory[5].Scheme)
	assert.True(t, run.Statutory[5].Total().Equal(d(200)))
}

func TestSortRecords(t *testing.T) {
	records := []SalaryRecord{{EmployeeCode: "E010"}, {EmployeeCode: "E002"}, {EmployeeCode: "E002", EmployeeID: "a"}}

	SortRecords(records)

	assert.Equal(t, []string{"E002", "E002", "E010"}, []string{records[0].EmployeeCode, records[1].EmployeeCode, records[2].EmployeeCode})
	assert.Equal(t, "", records[0].EmployeeID)
}

func TestRunResult_Err(t *testing.T) {
	assert.NoError(t, RunResult{}.Err())

	err := RunResult{Run: PayrollRun{ID: "run-1"}, Failures: []EmployeeFailure{{EmployeeCode: "E007", Code: FailureUnsupportedState}}}.Err()

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPartialRun)
	var partial *PartialRunFailure
	require.ErrorAs(t, err, &partial)
	assert.Equal(t, "run-1", partial.RunID)
	assert.Contains(t, err.Error(), "E007")
}

func TestConfigurationError_Unwrap(t *testing.T) {
	cause := ruletable.ErrRuleSetNotFound
	err := error(&ConfigurationError{CompanyID: "c1", Reason: "rule table", Err: cause})

	assert.True(t, errors.Is(err, ErrConfiguration))
	assert.True(t, errors.Is(err, ruletable.ErrRuleSetNotFound))
	assert.Contains(t, err.Error(), "company c1")
}

func TestComputePayrollRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		req     ComputePayrollRequest
		wantErr bool
	}{
		{"valid", ComputePayrollRequest{CompanyID: "c1", Month: 1, Year: 2025}, false},
		{"valid with ids", ComputePayrollRequest{CompanyID: "c1", Month: 12, Year: 2025, EmployeeIDs: []string{"a", "b"}}, false},
		{"month zero", ComputePayrollRequest{CompanyID: "c1", Month: 0, Year: 2025}, true},
		{"month thirteen", ComputePayrollRequest{CompanyID: "c1", Month: 13, Year: 2025}, true},
		{"year too early", ComputePayrollRequest{CompanyID: "c1", Month: 1, Year: 1999}, true},
		{"missing company", ComputePayrollRequest{Month: 1, Year: 2025}, true},
		{"blank employee id", ComputePayrollRequest{CompanyID: "c1", Month: 1, Year: 2025, EmployeeIDs: []string{""}}, true},
		{"duplicate employee id", ComputePayrollRequest{CompanyID: "c1", Month: 1, Year: 2025, EmployeeIDs: []string{"a", "a"}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			var verrs validator.ValidationErrors
			assert.ErrorAs(t, err, &verrs)
		})
	}
}
