package pdf

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/shopspring/decimal"

	"github.com/nurpe/snowops-boq/internal/boq"
	"github.com/nurpe/snowops-boq/internal/model"
)

// Generator renders the addendum summary sheet. Without a UTF-8 font the core
// Helvetica font is used and text is limited to cp1252.
type Generator struct {
	fontName string
	font     []byte
	scale    int32
}

func NewGenerator(font []byte, scale int32) *Generator {
	if len(font) == 0 {
		return &Generator{fontName: "Helvetica", scale: scale}
	}
	return &Generator{fontName: "DocumentFont", font: font, scale: scale}
}

func (g *Generator) Generate(doc model.AddendumDocument) ([]byte, error) {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)

	tr := func(s string) string { return s }
	if len(g.font) > 0 {
		pdf.AddUTF8FontFromBytes(g.fontName, "", g.font)
		pdf.AddUTF8FontFromBytes(g.fontName, "B", g.font)
	} else {
		tr = pdf.UnicodeTranslatorFromDescriptor("")
	}
	pdf.AddPage()

	addendum := doc.Addendum
	pdf.SetFont(g.fontName, "B", 14)
	pdf.CellFormat(0, 10, tr(fmt.Sprintf("Addendum No. %d", addendum.Number)), "", 1, "C", false, 0, "")

	pdf.SetFont(g.fontName, "", 11)
	pdf.CellFormat(0, 6, tr(fmt.Sprintf("Contract %s - %s", doc.Contract.Code, doc.Contract.Name)), "", 1, "C", false, 0, "")
	pdf.CellFormat(0, 6, tr(fmt.Sprintf("Date %s, status %s", formatDate(addendum.Date), addendum.Status)), "", 1, "C", false, 0, "")
	if strings.TrimSpace(addendum.Description) != "" {
		pdf.Ln(2)
		pdf.MultiCell(0, 6, tr(addendum.Description), "", "L", false)
	}
	pdf.Ln(4)

	pdf.SetFont(g.fontName, "B", 12)
	pdf.CellFormat(0, 8, tr("Operations"), "", 1, "L", false, 0, "")

	headers := []string{"#", "Operation", "Code", "Description", "Unit", "Quantity", "Unit price", "Value"}
	colWidths := []float64{10, 32, 25, 90, 18, 30, 30, 32}
	drawTableRow(pdf, g.fontName, tr, headers, colWidths, true)

	values := make([]decimal.Decimal, 0, len(doc.Lines))
	for i, line := range doc.Lines {
		drawTableRow(pdf, g.fontName, tr, []string{
			fmt.Sprintf("%d", i+1),
			string(line.Operation),
			line.Code,
			line.Description,
			safeValue(line.Unit),
			g.optional(line.Quantity, 3),
			g.optional(line.UnitPrice, g.scale),
			line.Value.StringFixed(g.scale),
		}, colWidths, false)
		values = append(values, line.Value)
	}

	totals := boq.Totals{
		TotalAddition:    addendum.TotalAddition,
		TotalSuppression: addendum.TotalSuppression,
		NetValue:         addendum.NetValue,
	}
	label := "frozen"
	if addendum.ApprovedAt == nil {
		totals = boq.SumValues(values)
		label = "provisional"
	}

	pdf.Ln(2)
	pdf.SetFont(g.fontName, "", 11)
	pdf.CellFormat(0, 6, tr(fmt.Sprintf("Total addition: %s", totals.TotalAddition.StringFixed(g.scale))), "", 1, "R", false, 0, "")
	pdf.CellFormat(0, 6, tr(fmt.Sprintf("Total suppression: %s", totals.TotalSuppression.StringFixed(g.scale))), "", 1, "R", false, 0, "")
	pdf.SetFont(g.fontName, "B", 11)
	pdf.CellFormat(0, 6, tr(fmt.Sprintf("Net value (%s): %s", label, totals.NetValue.StringFixed(g.scale))), "", 1, "R", false, 0, "")

	if addendum.Status == model.AddendumStatusCancelled {
		pdf.Ln(2)
		pdf.SetTextColor(200, 0, 0)
		pdf.SetFont(g.fontName, "", 11)
		pdf.MultiCell(0, 6, tr(fmt.Sprintf("Cancelled on %s by %s. Effects recorded outside the contract ledger were not reversed.",
			formatDateTime(addendum.CancelledAt), safePtr(addendum.CancelledBy))), "", "L", false)
		pdf.SetTextColor(0, 0, 0)
	}

	pdf.Ln(4)
	pdf.SetFont(g.fontName, "", 11)
	pdf.CellFormat(0, 6, tr(fmt.Sprintf("Approved: %s /%s/", formatDateTime(addendum.ApprovedAt), safePtr(addendum.ApprovedBy))), "", 1, "L", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (g *Generator) optional(value *decimal.Decimal, scale int32) string {
	if value == nil {
		return "-"
	}
	return value.StringFixed(scale)
}

func drawTableRow(pdf *gofpdf.Fpdf, fontName string, tr func(string) string, cols []string, widths []float64, header bool) {
	style := ""
	if header {
		style = "B"
	}
	pdf.SetFont(fontName, style, 9)
	for i, col := range cols {
		align := "L"
		if i > 4 {
			align = "R"
		}
		pdf.CellFormat(widths[i], 7, tr(truncate(pdf, col, widths[i]-2)), "1", 0, align, false, 0, "")
	}
	pdf.Ln(-1)
}

// truncate shortens text to fit width in the current font.
func truncate(pdf *gofpdf.Fpdf, text string, width float64) string {
	if pdf.GetStringWidth(text) <= width {
		return text
	}
	runes := []rune(text)
	for len(runes) > 0 && pdf.GetStringWidth(string(runes)+"...") > width {
		runes = runes[:len(runes)-1]
	}
	return string(runes) + "..."
}

func safeValue(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	return value
}

func safePtr(value *string) string {
	if value == nil {
		return "-"
	}
	return safeValue(*value)
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("02.01.2006")
}

func formatDateTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return t.Format("02.01.2006 15:04")
}
