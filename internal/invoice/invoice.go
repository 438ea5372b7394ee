package invoice

import (
	"bytes"
	"fmt"

	"github.com/phpdave11/gofpdf"

	"github.com/pasoklink/pasoklink/internal/market"
)

// Render produces the downloadable PDF for an order. It is a pure
// function of the order snapshot; amounts come from the frozen line
// items, never from live product data.
func Render(o *market.Order) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.Cell(0, 10, "Purchase Order Invoice")
	pdf.Ln(12)

	pdf.SetFont("Arial", "", 11)
	pdf.Cell(0, 7, fmt.Sprintf("Reference: %s", o.Reference))
	pdf.Ln(6)
	pdf.Cell(0, 7, fmt.Sprintf("Status: %s", o.Status))
	pdf.Ln(6)
	pdf.Cell(0, 7, fmt.Sprintf("Buyer: %s", o.BuyerID))
	pdf.Ln(6)
	pdf.Cell(0, 7, fmt.Sprintf("Supplier: %s", o.SupplierID))
	pdf.Ln(6)
	pdf.Cell(0, 7, fmt.Sprintf("Deliver to: %s", o.DeliveryAddress))
	pdf.Ln(10)

	pdf.SetFont("Arial", "B", 11)
	pdf.CellFormat(80, 8, "Item", "1", 0, "L", false, 0, "")
	pdf.CellFormat(25, 8, "Qty", "1", 0, "R", false, 0, "")
	pdf.CellFormat(40, 8, "Unit price", "1", 0, "R", false, 0, "")
	pdf.CellFormat(40, 8, "Subtotal", "1", 1, "R", false, 0, "")

	pdf.SetFont("Arial", "", 11)
	for _, it := range o.Items {
		pdf.CellFormat(80, 8, it.Name, "1", 0, "L", false, 0, "")
		pdf.CellFormat(25, 8, fmt.Sprintf("%d %s", it.Quantity, it.Unit), "1", 0, "R", false, 0, "")
		pdf.CellFormat(40, 8, money(it.UnitPriceCents), "1", 0, "R", false, 0, "")
		pdf.CellFormat(40, 8, money(it.SubtotalCents), "1", 1, "R", false, 0, "")
	}

	pdf.SetFont("Arial", "B", 11)
	pdf.CellFormat(145, 8, "Total", "1", 0, "R", false, 0, "")
	pdf.CellFormat(40, 8, money(o.TotalCents), "1", 1, "R", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func money(cents int64) string {
	return fmt.Sprintf("%d.%02d", cents/100, cents%100)
}
