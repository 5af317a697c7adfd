package fiscal

import (
	"encoding/xml"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/erp/marketsync/internal/domain/order"
)

// Money values are rendered with two decimals, rounding half away from
// zero. Line values are rounded individually; the total is the exact sum
// of line totals rounded once.
const moneyPlaces = 2

type notaXML struct {
	XMLName xml.Name   `xml:"nota"`
	Cliente clienteXML `xml:"cliente"`
	Itens   []detXML   `xml:"itens>det"`
	Total   string     `xml:"total"`
}

type clienteXML struct {
	Nome  string `xml:"nome"`
	Email string `xml:"email"`
}

type detXML struct {
	NItem   int        `xml:"nItem,attr"`
	Prod    prodXML    `xml:"prod"`
	Imposto impostoXML `xml:"imposto"`
}

type prodXML struct {
	CProd  string `xml:"cProd"`
	XProd  string `xml:"xProd"`
	QCom   int    `xml:"qCom"`
	VUnCom string `xml:"vUnCom"`
	VProd  string `xml:"vProd"`
	UCom   string `xml:"uCom"`
}

type impostoXML struct {
	VTotTrib string `xml:"vTotTrib"`
}

// FormatMoney renders d with exactly two decimal digits
func FormatMoney(d decimal.Decimal) string {
	return d.StringFixed(moneyPlaces)
}

// RenderXML builds the fiscal XML for o. The output depends only on the
// order's buyer and items.
func RenderXML(o *order.Order) ([]byte, error) {
	if o == nil || len(o.Items) == 0 {
		return nil, fmt.Errorf("fiscal: cannot render document without items")
	}

	doc := notaXML{
		Cliente: clienteXML{
			Nome:  o.Buyer.Name(),
			Email: o.Buyer.Email,
		},
		Itens: make([]detXML, 0, len(o.Items)),
		Total: FormatMoney(o.ComputedTotal()),
	}
	for i, item := range o.Items {
		doc.Itens = append(doc.Itens, detXML{
			NItem: i + 1,
			Prod: prodXML{
				CProd:  item.ItemID,
				XProd:  item.Title,
				QCom:   item.Quantity,
				VUnCom: FormatMoney(item.UnitPrice),
				VProd:  FormatMoney(item.LineTotal()),
				UCom:   "UN",
			},
			Imposto: impostoXML{VTotTrib: FormatMoney(decimal.Zero)},
		})
	}

	body, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("fiscal: marshal document: %w", err)
	}
	return body, nil
}
