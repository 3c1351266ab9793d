package filing

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
	"github.com/shopspring/decimal"

	"paie/internal/domain/declaration"
)

// RenderSummaryPDF produces the recap sheet filed with a BDS: company,
// period, one row per employee and the declared totals. bdsChecksum ties the
// sheet to the encoded file.
func RenderSummaryPDF(d declaration.Declaration, bdsChecksum string) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetCreationDate(d.CreatedAt)
	pdf.SetCatalogSort(true)
	pdf.SetTitle(fmt.Sprintf("BDS %s %s", d.Company.RegistrationNumber, d.Period), true)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(0, 10, "Bordereau de declaration des salaires")
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 11)
	header := []string{
		fmt.Sprintf("Employeur: %s", d.Company.Name),
		fmt.Sprintf("Affiliation CNSS: %s", d.Company.RegistrationNumber),
		fmt.Sprintf("Identifiant fiscal: %s", d.Company.TaxIdentifier),
		fmt.Sprintf("Periode: %s", d.Period),
		fmt.Sprintf("Statut: %s    Bareme: %s", d.Status, d.RatesVersion),
	}
	for _, line := range header {
		pdf.Cell(0, 7, tr(line))
		pdf.Ln(7)
	}
	pdf.Ln(4)

	widths := []float64{28, 62, 12, 30, 30, 28}
	pdf.SetFont("Helvetica", "B", 9)
	for i, title := range []string{"Immatriculation", "Nom", "Jours", "Brut", "Plafonne", "Du"} {
		pdf.CellFormat(widths[i], 7, title, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 9)
	for _, l := range d.Lines {
		cells := []string{
			l.SocialSecurityNumber,
			tr(l.LastName + " " + l.FirstName),
			fmt.Sprintf("%d", l.WorkedDays),
			amount(l.Gross),
			amount(l.CappedGross),
			amount(l.Due()),
		}
		for i, c := range cells {
			align := "R"
			if i < 2 {
				align = "L"
			}
			pdf.CellFormat(widths[i], 6, c, "1", 0, align, false, 0, "")
		}
		pdf.Ln(-1)
	}
	pdf.Ln(6)

	t := d.Totals
	totals := [][2]string{
		{"Effectif declare", fmt.Sprintf("%d", t.Headcount)},
		{"Masse salariale brute", amount(t.Gross)},
		{"Masse salariale plafonnee", amount(t.CappedGross)},
		{"Cotisations salariales", amount(t.EmployeeContributions)},
		{"Cotisations patronales", amount(t.EmployerContributions)},
		{"Allocations familiales", amount(t.FamilyAllowance)},
		{"Taxe de formation professionnelle", amount(t.TrainingTax)},
		{"Total a payer", amount(t.GrandTotal)},
	}
	pdf.SetFont("Helvetica", "", 10)
	for i, row := range totals {
		if i == len(totals)-1 {
			pdf.SetFont("Helvetica", "B", 10)
		}
		pdf.CellFormat(90, 7, row[0], "1", 0, "L", false, 0, "")
		pdf.CellFormat(50, 7, row[1], "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	if len(d.Excluded) > 0 {
		pdf.Ln(4)
		pdf.SetFont("Helvetica", "I", 9)
		pdf.Cell(0, 6, fmt.Sprintf("Salaries exclus (non couverts): %d", len(d.Excluded)))
		pdf.Ln(6)
	}
	if bdsChecksum != "" {
		pdf.Ln(4)
		pdf.SetFont("Courier", "", 7)
		pdf.Cell(0, 5, "SHA-256 BDS: "+bdsChecksum)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render summary pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func amount(d decimal.Decimal) string {
	return d.StringFixed(2)
}
