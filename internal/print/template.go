package print

import (
	"encoding/json"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// ESC/POS control sequences for the receipt header: initialize, double
// height+width on, double height+width off.
const (
	escInit     = "\x1b@"
	escEmphOn   = "\x1b!\x18"
	escEmphOff  = "\x1b!\x00"
	receiptRule = "-----------------------------\n"
)

var prices = message.NewPrinter(language.English)

// receiptData is the payload the receipt template expects.
type receiptData struct {
	Order struct {
		ID    string  `json:"id"`
		Total float64 `json:"total"`
	} `json:"order"`
	Items []struct {
		Qty   int     `json:"qty"`
		Name  string  `json:"name"`
		Price float64 `json:"price"`
	} `json:"items"`
}

// renderTemplate renders a job payload. Rendering is a pure function of
// (templateID, data); unknown template ids render to an empty string
// rather than failing the job.
func renderTemplate(templateID string, data json.RawMessage) string {
	switch templateID {
	case "receipt":
		return renderReceipt(data)
	default:
		return ""
	}
}

// renderReceipt produces the fixed receipt layout: header, order line,
// separator, one line per item, separator, total.
func renderReceipt(data json.RawMessage) string {
	var rd receiptData
	if err := json.Unmarshal(data, &rd); err != nil {
		return ""
	}

	var b strings.Builder
	b.WriteString(escInit + escEmphOn + "FOOD STALL" + escEmphOff + "\n")
	b.WriteString("Order: " + rd.Order.ID + "\n")
	b.WriteString(receiptRule)
	for _, item := range rd.Items {
		prices.Fprintf(&b, "%d x %s  %.2f\n", item.Qty, item.Name, item.Price)
	}
	b.WriteString(receiptRule)
	prices.Fprintf(&b, "TOTAL: %.2f\n\n\n\n", rd.Order.Total)
	return b.String()
}
