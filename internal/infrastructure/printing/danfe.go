package printing

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/erp/marketsync/internal/domain/fiscal"
	"github.com/erp/marketsync/internal/domain/order"
)

// FormatBRL renders d as Brazilian currency, e.g. "R$ 1.234,50".
// Values are rounded half away from zero, like the fiscal XML.
func FormatBRL(d decimal.Decimal) string {
	f, _ := d.Round(2).Float64()
	p := message.NewPrinter(language.BrazilianPortuguese)
	return "R$ " + p.Sprint(number.Decimal(f, number.Scale(2)))
}

type danfeItem struct {
	Position  int
	ItemID    string
	Title     string
	Quantity  int
	UnitPrice string
	LineTotal string
}

type danfeView struct {
	DocumentNumber string
	ExternalID     string
	Marketplace    string
	OrderDate      string
	BuyerName      string
	BuyerEmail     string
	Items          []danfeItem
	Total          string
}

func newDANFEView(o *order.Order, documentNumber string) (*danfeView, error) {
	if o == nil || len(o.Items) == 0 {
		return nil, NewRenderError(ErrCodeInvalidOrder, "order has no items", nil)
	}
	v := &danfeView{
		DocumentNumber: documentNumber,
		ExternalID:     o.ExternalID,
		Marketplace:    o.Marketplace,
		OrderDate:      o.CreatedAt.In(brazilTime).Format("02/01/2006 15:04"),
		BuyerName:      o.Buyer.Name(),
		BuyerEmail:     o.Buyer.Email,
		Items:          make([]danfeItem, 0, len(o.Items)),
		Total:          FormatBRL(o.ComputedTotal()),
	}
	if v.ExternalID == "" {
		v.ExternalID = "desconhecido"
	}
	for i, item := range o.Items {
		v.Items = append(v.Items, danfeItem{
			Position:  i + 1,
			ItemID:    item.ItemID,
			Title:     item.Title,
			Quantity:  item.Quantity,
			UnitPrice: FormatBRL(item.UnitPrice),
			LineTotal: FormatBRL(item.LineTotal()),
		})
	}
	return v, nil
}

// brazilTime is UTC-3; Brazil has not observed daylight saving since 2019
var brazilTime = time.FixedZone("BRT", -3*60*60)

// TextDocumentRenderer writes the DANFE as plain text
type TextDocumentRenderer struct{}

// NewTextDocumentRenderer creates a text renderer
func NewTextDocumentRenderer() *TextDocumentRenderer {
	return &TextDocumentRenderer{}
}

// Render implements fiscal.DocumentRenderer
func (r *TextDocumentRenderer) Render(_ context.Context, o *order.Order, documentNumber string) ([]byte, error) {
	v, err := newDANFEView(o, documentNumber)
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "DANFE do pedido %s\n", v.ExternalID)
	fmt.Fprintf(&b, "NF-e nº %s\n", v.DocumentNumber)
	fmt.Fprintf(&b, "Marketplace: %s\n", v.Marketplace)
	fmt.Fprintf(&b, "Data do pedido: %s\n", v.OrderDate)
	if v.BuyerEmail != "" {
		fmt.Fprintf(&b, "Destinatário: %s <%s>\n", v.BuyerName, v.BuyerEmail)
	} else {
		fmt.Fprintf(&b, "Destinatário: %s\n", v.BuyerName)
	}
	b.WriteString("Itens:\n")
	for _, it := range v.Items {
		fmt.Fprintf(&b, "  %d. %s (%s) %d x %s = %s\n",
			it.Position, it.Title, it.ItemID, it.Quantity, it.UnitPrice, it.LineTotal)
	}
	fmt.Fprintf(&b, "Total: %s\n", v.Total)
	return []byte(b.String()), nil
}

var danfeTemplate = template.Must(template.New("danfe").Parse(`<!DOCTYPE html>
<html lang="pt-BR">
<head>
<meta charset="UTF-8">
<title>DANFE {{.DocumentNumber}}</title>
<style>
body { font-family: Arial, Helvetica, sans-serif; font-size: 11px; }
h1 { font-size: 16px; margin: 0 0 8px; }
table { width: 100%; border-collapse: collapse; }
th, td { border: 1px solid #333; padding: 4px; text-align: left; }
td.num { text-align: right; }
.box { border: 1px solid #333; padding: 6px; margin-bottom: 8px; }
</style>
</head>
<body>
<h1>DANFE - NF-e nº {{.DocumentNumber}}</h1>
<div class="box">
<div>Pedido: {{.ExternalID}} ({{.Marketplace}})</div>
<div>Data do pedido: {{.OrderDate}}</div>
</div>
<div class="box">
<div>Destinatário: {{.BuyerName}}</div>
{{- if .BuyerEmail}}
<div>E-mail: {{.BuyerEmail}}</div>
{{- end}}
</div>
<table>
<thead><tr><th>#</th><th>Código</th><th>Descrição</th><th>Qtd.</th><th>Valor unit.</th><th>Valor total</th></tr></thead>
<tbody>
{{- range .Items}}
<tr><td>{{.Position}}</td><td>{{.ItemID}}</td><td>{{.Title}}</td><td class="num">{{.Quantity}}</td><td class="num">{{.UnitPrice}}</td><td class="num">{{.LineTotal}}</td></tr>
{{- end}}
</tbody>
<tfoot><tr><td colspan="5">Total</td><td class="num">{{.Total}}</td></tr></tfoot>
</table>
</body>
</html>
`))

// RenderDANFEHTML fills the DANFE template for o
func RenderDANFEHTML(o *order.Order, documentNumber string) (string, error) {
	v, err := newDANFEView(o, documentNumber)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := danfeTemplate.Execute(&buf, v); err != nil {
		return "", NewRenderError(ErrCodeInvalidHTML, "failed to execute DANFE template", err)
	}
	return buf.String(), nil
}

const danfeFooter = `<div style="font-size:8px;width:100%;text-align:center;"><span class="pageNumber"></span>/<span class="totalPages"></span></div>`

// PDFDocumentRenderer prints the HTML DANFE to PDF
type PDFDocumentRenderer struct {
	pdf PDFPrinter
}

// NewPDFDocumentRenderer wraps a PDF printer
func NewPDFDocumentRenderer(pdf PDFPrinter) *PDFDocumentRenderer {
	return &PDFDocumentRenderer{pdf: pdf}
}

// Render implements fiscal.DocumentRenderer
func (r *PDFDocumentRenderer) Render(ctx context.Context, o *order.Order, documentNumber string) ([]byte, error) {
	doc, err := RenderDANFEHTML(o, documentNumber)
	if err != nil {
		return nil, err
	}
	return r.pdf.PrintPDF(ctx, PageRequest{
		HTML:       doc,
		Margins:    DefaultMargins(),
		FooterHTML: danfeFooter,
	})
}

var (
	_ fiscal.DocumentRenderer = (*TextDocumentRenderer)(nil)
	_ fiscal.DocumentRenderer = (*PDFDocumentRenderer)(nil)
)
