package infra

// Order document rendering using go-pdf/fpdf.
// A4 portrait page with:
//   - Company name and order number header
//   - Client and dates block
//   - Item table (provider, detail, quantity, unit price, subtotal, IVA, total)
//   - Totals block
//   - Provider invoice and status footer
//
// The document is returned in memory; callers stream it or attach it to a mail.

import (
	"bytes"
	"fmt"

	"github.com/deimercs/gestorfacturas/internal/model"

	"github.com/go-pdf/fpdf"
)

// GenerateOrdenPDF renders o (with Cliente and Items[].Proveedor preloaded)
// as a PDF document.
func GenerateOrdenPDF(o *model.Orden, empresa string) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(12, 12, 12)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pageW, _ := pdf.GetPageSize()
	contentW := pageW - 24

	// ── Header ───────────────────────────────────────────────────────────────
	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(contentW, 9, tr(empresa), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(contentW, 7, tr("Orden de compra "+o.NumeroOrden), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	pdf.CellFormat(contentW, 5, "Emitida: "+o.CreatedAt.Format("02/01/2006 15:04"), "", 1, "L", false, 0, "")
	if o.FechaVencimiento != nil {
		pdf.CellFormat(contentW, 5, "Vence: "+o.FechaVencimiento.Format("02/01/2006"), "", 1, "L", false, 0, "")
	}
	pdf.Ln(3)

	// ── Client ───────────────────────────────────────────────────────────────
	if o.Cliente != nil {
		pdf.SetFont("Helvetica", "B", 10)
		pdf.CellFormat(contentW, 6, tr("Cliente: "+o.Cliente.Nombre), "", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 9)
		pdf.CellFormat(contentW, 5, tr(o.Cliente.TipoDocumento+" "+o.Cliente.NumeroDocumento), "", 1, "L", false, 0, "")
		pdf.Ln(2)
	}

	pdf.Line(12, pdf.GetY(), pageW-12, pdf.GetY())
	pdf.Ln(3)

	// ── Items ────────────────────────────────────────────────────────────────
	widths := []float64{0.20, 0.28, 0.08, 0.11, 0.11, 0.11, 0.11}
	headers := []string{"Proveedor", "Detalle", "Cant", "P. unit", "Subtotal", "IVA", "Total"}
	pdf.SetFont("Helvetica", "B", 8)
	for i, h := range headers {
		align := "R"
		if i < 2 {
			align = "L"
		}
		ln := 0
		if i == len(headers)-1 {
			ln = 1
		}
		pdf.CellFormat(contentW*widths[i], 6, h, "B", ln, align, false, 0, "")
	}

	pdf.SetFont("Helvetica", "", 8)
	for _, it := range o.Items {
		proveedor := ""
		if it.Proveedor != nil {
			proveedor = it.Proveedor.Nombre
		}
		cells := []string{
			truncate(proveedor, 24),
			truncate(it.Detalle, 36),
			fmt.Sprintf("%d", it.Cantidad),
			it.PrecioUnitario.StringFixed(2),
			it.Subtotal.StringFixed(2),
			it.IVA.StringFixed(2),
			it.Total.StringFixed(2),
		}
		for i, c := range cells {
			align := "R"
			if i < 2 {
				align = "L"
			}
			ln := 0
			if i == len(cells)-1 {
				ln = 1
			}
			pdf.CellFormat(contentW*widths[i], 5, tr(c), "", ln, align, false, 0, "")
		}
	}

	pdf.Ln(2)
	pdf.Line(12, pdf.GetY(), pageW-12, pdf.GetY())
	pdf.Ln(2)

	// ── Totals ───────────────────────────────────────────────────────────────
	labelW := contentW * 0.78
	valueW := contentW - labelW
	pdf.SetFont("Helvetica", "", 9)
	pdf.CellFormat(labelW, 5, "Subtotal:", "", 0, "R", false, 0, "")
	pdf.CellFormat(valueW, 5, "$"+o.Subtotal.StringFixed(2), "", 1, "R", false, 0, "")
	pdf.CellFormat(labelW, 5, "IVA:", "", 0, "R", false, 0, "")
	pdf.CellFormat(valueW, 5, "$"+o.IVA.StringFixed(2), "", 1, "R", false, 0, "")
	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(labelW, 7, "TOTAL:", "", 0, "R", false, 0, "")
	pdf.CellFormat(valueW, 7, "$"+o.Total.StringFixed(2), "", 1, "R", false, 0, "")

	// ── Footer ───────────────────────────────────────────────────────────────
	pdf.Ln(4)
	pdf.SetFont("Helvetica", "I", 8)
	if o.FacturaProveedor != "" {
		pdf.CellFormat(contentW, 4, tr("Factura proveedor: "+o.FacturaProveedor), "", 1, "L", false, 0, "")
	}
	pdf.CellFormat(contentW, 4, "Estado: "+o.Estado, "", 1, "L", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("pdf: render orden %s: %w", o.NumeroOrden, err)
	}
	return buf.Bytes(), nil
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-1]) + "…"
}
