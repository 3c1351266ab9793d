// Command bdsgen builds a CNSS declaration offline from a JSON file of
// compensation profiles and writes the BDS, CSV and PDF summary next to
// each other.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"paie/internal/domain/bds"
	"paie/internal/domain/declaration"
	"paie/internal/domain/filing"
	"paie/internal/domain/payroll"
	"paie/internal/domain/rates"
	"paie/internal/platform/crypto"
	"paie/internal/platform/logging"
)

// input is the file read by -input.
type input struct {
	Company  declaration.Company           `json:"company"`
	Profiles []payroll.CompensationProfile `json:"profiles"`
}

var errInvalid = errors.New("declaration is not valid")

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "bdsgen: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("bdsgen", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		inputPath  string
		periodText string
		ratesPath  string
		outDir     string
		filingText string
		logFormat  string
	)
	fs.StringVar(&inputPath, "input", "", "JSON file with company and profiles")
	fs.StringVar(&periodText, "period", "", "declared month, YYYY-MM")
	fs.StringVar(&ratesPath, "rates", "", "rate schedule YAML (default: embedded schedule)")
	fs.StringVar(&outDir, "out", ".", "output directory")
	fs.StringVar(&filingText, "filing-date", "", "filing date, YYYY-MM-DD (default: today)")
	fs.StringVar(&logFormat, "log-format", "text", "text or json")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if inputPath == "" || periodText == "" {
		fs.Usage()
		return errors.New("missing -input or -period")
	}

	logger := logging.New(stderr, logFormat, "info")

	month, err := time.Parse("2006-01", periodText)
	if err != nil {
		return fmt.Errorf("period %q: want YYYY-MM", periodText)
	}
	period := payroll.NewPeriod(month.Year(), month.Month())

	filingDate := time.Now().UTC()
	if filingText != "" {
		if filingDate, err = time.Parse("2006-01-02", filingText); err != nil {
			return fmt.Errorf("filing date %q: want YYYY-MM-DD", filingText)
		}
	}
	now := func() time.Time { return filingDate }

	in, err := readInput(inputPath)
	if err != nil {
		return err
	}

	schedule, err := loadSchedule(ratesPath)
	if err != nil {
		return err
	}
	table, err := schedule.For(period.End())
	if err != nil {
		return err
	}

	calcs, err := payroll.CalculateAll(ctx, in.Profiles, period, table, payroll.WithClock(now))
	if err != nil {
		for _, fe := range payroll.FieldErrors(err) {
			fmt.Fprintf(stderr, "  %s\n", fe.Error())
		}
		return err
	}
	entries := make([]declaration.Entry, len(in.Profiles))
	for i := range in.Profiles {
		entries[i] = declaration.Entry{Profile: in.Profiles[i], Calculation: calcs[i]}
	}
	draft, err := declaration.Assemble(in.Company, period, entries, table,
		declaration.WithLogger(logger),
		declaration.WithClock(now),
	)
	if err != nil {
		return err
	}

	validated, report, err := declaration.Certify(draft, declaration.WithNow(filingDate))
	if err != nil {
		if errors.Is(err, declaration.ErrNotValid) {
			for _, issue := range report.Issues {
				fmt.Fprintf(stderr, "  %s\n", issue)
			}
			return fmt.Errorf("%w: %d issue(s)", errInvalid, len(report.Issues))
		}
		return err
	}

	text := bds.NewEncoder(bds.WithFilingDate(filingDate)).Encode(validated)
	if problems := bds.Verify([]byte(text)); len(problems) > 0 {
		return fmt.Errorf("encoded file rejected: %s", problems[0])
	}
	frozen, err := declaration.Freeze(validated)
	if err != nil {
		return err
	}
	csvText, err := declaration.ExportCSV(frozen)
	if err != nil {
		return err
	}
	pdf, err := filing.RenderSummaryPDF(frozen, crypto.Checksum([]byte(text)))
	if err != nil {
		return err
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return err
	}
	base := filepath.Join(outDir, fmt.Sprintf("%s_%s", in.Company.RegistrationNumber, period))
	outputs := []struct {
		path    string
		content []byte
	}{
		{base + ".bds", []byte(text)},
		{base + ".csv", []byte(csvText)},
		{base + ".pdf", pdf},
	}
	for _, o := range outputs {
		if err := os.WriteFile(o.path, o.content, 0o644); err != nil {
			return err
		}
		fmt.Fprintln(stdout, o.path)
	}

	logger.Info("declaration encoded",
		"period", period.String(),
		"headcount", frozen.Totals.Headcount,
		"excluded", len(frozen.Excluded),
		"grand_total", frozen.Totals.GrandTotal.StringFixed(2),
		"rates_version", frozen.RatesVersion,
	)
	return nil
}

func readInput(path string) (input, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return input{}, err
	}
	var in input
	if err := json.Unmarshal(raw, &in); err != nil {
		return input{}, fmt.Errorf("decode %s: %w", path, err)
	}
	if len(in.Profiles) == 0 {
		return input{}, fmt.Errorf("%s: %w", path, filing.ErrNoProfiles)
	}
	return in, nil
}

func loadSchedule(path string) (rates.Schedule, error) {
	if path == "" {
		return rates.Default()
	}
	return rates.LoadFile(path)
}
