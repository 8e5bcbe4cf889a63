package purchaseorder

import (
	"bytes"
	"html/template"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var moneyPrinter = message.NewPrinter(language.MustParse("en-IN"))

func money(d decimal.Decimal) string {
	f, _ := d.Round(2).Float64()
	return moneyPrinter.Sprintf("%.2f", f)
}

var pdfTemplate = template.Must(template.New("po").Funcs(template.FuncMap{
	"money": money,
	"add":   func(a, b int) int { return a + b },
}).Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Purchase Order {{.Number}}</title>
<style>
body { font-family: sans-serif; font-size: 12px; margin: 32px; }
h1 { font-size: 18px; margin-bottom: 4px; }
table { width: 100%; border-collapse: collapse; margin-top: 16px; }
th, td { border: 1px solid #555; padding: 6px 8px; text-align: left; }
td.num, th.num { text-align: right; }
.totals { margin-top: 12px; width: 40%; margin-left: auto; }
.totals td { border: none; padding: 2px 8px; }
.meta { color: #333; }
</style>
</head>
<body>
<h1>Purchase Order {{.Number}}</h1>
<p class="meta">
Status: {{.Status}} | Type: {{.Type}}<br>
Supplier: {{.SupplierName}}<br>
Order date: {{.OrderDate.Format "02 Jan 2006"}} | Delivery date: {{.DeliveryDate.Format "02 Jan 2006"}}<br>
Payment terms: {{.PaymentTerms}} | Raised by: {{.RaisedBy}}
{{- if .ApprovedBy}}<br>Approved by: {{.ApprovedBy}}{{if .ApprovedAt}} on {{.ApprovedAt.Format "02 Jan 2006"}}{{end}}{{end}}
</p>
<table>
<tr><th>#</th><th>Item</th><th>Code</th><th class="num">Qty</th><th>UOM</th><th class="num">Unit Price</th><th class="num">Tax 1</th><th class="num">Tax 2</th><th class="num">Amount</th><th class="num">Total</th></tr>
{{range $i, $it := .Items}}
<tr>
<td>{{add $i 1}}</td>
<td>{{$it.ItemName}}{{if $it.Description}}<br><small>{{$it.Description}}</small>{{end}}</td>
<td>{{$it.ItemCode}}</td>
<td class="num">{{$it.Quantity}}</td>
<td>{{$it.UOM}}</td>
<td class="num">{{money $it.UnitPrice}}</td>
<td class="num">{{money $it.Tax1Amount}}</td>
<td class="num">{{money $it.Tax2Amount}}</td>
<td class="num">{{money $it.TotalAmount}}</td>
<td class="num">{{money $it.GrandTotal}}</td>
</tr>
{{end}}
</table>
<table class="totals">
<tr><td>Sub total</td><td class="num">{{money .SubTotal}}</td></tr>
<tr><td>Tax</td><td class="num">{{money .TaxAmount}}</td></tr>
<tr><td>Discount</td><td class="num">{{money .DiscountAmount}}</td></tr>
<tr><td>Freight</td><td class="num">{{money .FreightCharges}}</td></tr>
<tr><td><strong>Grand total</strong></td><td class="num"><strong>{{money .GrandTotal}}</strong></td></tr>
</table>
</body>
</html>`))

// RenderHTML produces the printable document body handed to Gotenberg.
func RenderHTML(po PurchaseOrder) (string, error) {
	var buf bytes.Buffer
	if err := pdfTemplate.Execute(&buf, po); err != nil {
		return "", err
	}
	return buf.String(), nil
}
