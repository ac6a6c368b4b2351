package receipt

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

// TextWidth is the column count of an 80mm thermal printer in its default font.
const TextWidth = 42

const dateLayout = "2006-01-02 15:04"

// Text renders r as fixed-width plain text for a thermal printer.
func Text(r Receipt) string {
	var b strings.Builder
	rule := strings.Repeat("-", TextWidth)

	center(&b, r.StoreName)
	if !r.Date.IsZero() {
		center(&b, r.Date.UTC().Format(dateLayout))
	}
	center(&b, "Receipt "+r.Reference)
	b.WriteString(rule + "\n")
	pair(&b, "Served by", r.Cashier)
	pair(&b, "Customer", r.Customer)
	b.WriteString(rule + "\n")

	if len(r.Lines) == 0 {
		b.WriteString("No items\n")
	}
	for _, line := range r.Lines {
		b.WriteString(clip(line.Name, TextWidth) + "\n")
		qty := fmt.Sprintf("  %d x %s", line.Quantity, line.UnitPrice.Grouped())
		pair(&b, qty, line.Total.Grouped())
	}

	b.WriteString(rule + "\n")
	pair(&b, "Subtotal", r.Display.Subtotal)
	if r.Discount != 0 {
		pair(&b, "Discount", r.Display.Discount)
	}
	pair(&b, r.TaxLabel, r.Display.Tax)
	pair(&b, "TOTAL", r.Display.Total)
	b.WriteString(rule + "\n")

	paid := "Paid by " + r.PaymentLabel
	if r.PaymentReference != "" {
		paid += " (" + r.PaymentReference + ")"
	}
	center(&b, paid)
	center(&b, "Thank you for shopping with us")
	return b.String()
}

func center(b *strings.Builder, text string) {
	text = clip(text, TextWidth)
	pad := (TextWidth - utf8.RuneCountInString(text)) / 2
	b.WriteString(strings.Repeat(" ", pad) + text + "\n")
}

// pair writes label left and value right on one line, clipping the label
// when both do not fit.
func pair(b *strings.Builder, label, value string) {
	valueLen := utf8.RuneCountInString(value)
	room := TextWidth - valueLen - 1
	if room < 1 {
		b.WriteString(value + "\n")
		return
	}
	label = clip(label, room)
	gap := TextWidth - utf8.RuneCountInString(label) - valueLen
	b.WriteString(label + strings.Repeat(" ", gap) + value + "\n")
}

func clip(text string, width int) string {
	if utf8.RuneCountInString(text) <= width {
		return text
	}
	runes := []rune(text)
	return string(runes[:width])
}

// Filename is the suggested download name for a receipt.
func Filename(r Receipt, ext string) string {
	ref := r.Reference
	if ref == "" {
		ref = strconv.FormatInt(r.SaleID, 10)
	}
	return "receipt-" + ref + "." + ext
}
