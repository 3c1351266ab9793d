package rates

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultYAML []byte

type fileDoc struct {
	Versions []fileTable `yaml:"versions"`
}

type fileBracket struct {
	From float64  `yaml:"from"`
	To   *float64 `yaml:"to"`
	Rate float64  `yaml:"rate"`
}

type fileTier struct {
	FromMonths int     `yaml:"fromMonths"`
	Rate       float64 `yaml:"rate"`
}

type fileTable struct {
	Version                     string             `yaml:"version"`
	EffectiveFrom               string             `yaml:"effectiveFrom"`
	Ceiling                     float64            `yaml:"ceiling"`
	EmployeeSocialRate          float64            `yaml:"employeeSocialRate"`
	EmployerSocialRate          float64            `yaml:"employerSocialRate"`
	FamilyAllowanceRate         float64            `yaml:"familyAllowanceRate"`
	EmployeeHealthRate          float64            `yaml:"employeeHealthRate"`
	EmployerHealthRate          float64            `yaml:"employerHealthRate"`
	TrainingTaxRate             float64            `yaml:"trainingTaxRate"`
	ProfessionalExpenseRate     float64            `yaml:"professionalExpenseRate"`
	ProfessionalExpenseCap      float64            `yaml:"professionalExpenseCap"`
	IncomeTaxBrackets           []fileBracket      `yaml:"incomeTaxBrackets"`
	FamilyAbatementPerDependent float64            `yaml:"familyAbatementPerDependent"`
	FamilyAbatementMax          float64            `yaml:"familyAbatementMax"`
	SeniorityTiers              []fileTier         `yaml:"seniorityTiers"`
	OvertimePremiums            map[string]float64 `yaml:"overtimePremiums"`
	LegalMonthlyHours           float64            `yaml:"legalMonthlyHours"`
	StandardWorkedDays          int                `yaml:"standardWorkedDays"`
}

// Default returns the embedded statutory schedule.
func Default() (Schedule, error) {
	return Parse(defaultYAML)
}

// LoadFile reads a YAML rate schedule from disk. An empty path yields the
// embedded default.
func LoadFile(path string) (Schedule, error) {
	if path == "" {
		return Default()
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Schedule{}, err
	}
	return Parse(raw)
}

func Parse(raw []byte) (Schedule, error) {
	var doc fileDoc
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return Schedule{}, fmt.Errorf("rates: parse yaml: %w", err)
	}
	tables := make([]Table, 0, len(doc.Versions))
	for _, ft := range doc.Versions {
		table, err := ft.toTable()
		if err != nil {
			return Schedule{}, err
		}
		tables = append(tables, table)
	}
	return NewSchedule(tables...)
}

func (ft fileTable) toTable() (Table, error) {
	effective, err := time.Parse("2006-01-02", ft.EffectiveFrom)
	if err != nil {
		return Table{}, fmt.Errorf("rates: version %q effectiveFrom: %w", ft.Version, err)
	}
	table := Table{
		Version:                     ft.Version,
		EffectiveFrom:               effective,
		Ceiling:                     decimal.NewFromFloat(ft.Ceiling),
		EmployeeSocialRate:          decimal.NewFromFloat(ft.EmployeeSocialRate),
		EmployerSocialRate:          decimal.NewFromFloat(ft.EmployerSocialRate),
		FamilyAllowanceRate:         decimal.NewFromFloat(ft.FamilyAllowanceRate),
		EmployeeHealthRate:          decimal.NewFromFloat(ft.EmployeeHealthRate),
		EmployerHealthRate:          decimal.NewFromFloat(ft.EmployerHealthRate),
		TrainingTaxRate:             decimal.NewFromFloat(ft.TrainingTaxRate),
		ProfessionalExpenseRate:     decimal.NewFromFloat(ft.ProfessionalExpenseRate),
		ProfessionalExpenseCap:      decimal.NewFromFloat(ft.ProfessionalExpenseCap),
		FamilyAbatementPerDependent: decimal.NewFromFloat(ft.FamilyAbatementPerDependent),
		FamilyAbatementMax:          decimal.NewFromFloat(ft.FamilyAbatementMax),
		LegalMonthlyHours:           decimal.NewFromFloat(ft.LegalMonthlyHours),
		StandardWorkedDays:          ft.StandardWorkedDays,
		OvertimePremiums:            make(map[OvertimeTier]decimal.Decimal, len(ft.OvertimePremiums)),
	}
	for _, fb := range ft.IncomeTaxBrackets {
		bracket := Bracket{From: decimal.NewFromFloat(fb.From), Rate: decimal.NewFromFloat(fb.Rate)}
		if fb.To != nil {
			to := decimal.NewFromFloat(*fb.To)
			bracket.To = &to
		}
		table.IncomeTaxBrackets = append(table.IncomeTaxBrackets, bracket)
	}
	for _, tier := range ft.SeniorityTiers {
		table.SeniorityTiers = append(table.SeniorityTiers, SeniorityTier{
			FromMonths: tier.FromMonths,
			Rate:       decimal.NewFromFloat(tier.Rate),
		})
	}
	for key, premium := range ft.OvertimePremiums {
		table.OvertimePremiums[OvertimeTier(key)] = decimal.NewFromFloat(premium)
	}
	return table, nil
}
