package marketplace

import "fmt"

// Code identifies a marketplace integration
type Code string

const (
	CodeMercadoLivre Code = "mercadolivre"
	CodeShopee       Code = "shopee"
)

// IsValid reports whether c is a supported marketplace
func (c Code) IsValid() bool {
	switch c {
	case CodeMercadoLivre, CodeShopee:
		return true
	}
	return false
}

func (c Code) String() string {
	return string(c)
}

// DisplayName returns the human-readable marketplace name
func (c Code) DisplayName() string {
	switch c {
	case CodeMercadoLivre:
		return "Mercado Livre"
	case CodeShopee:
		return "Shopee"
	default:
		return string(c)
	}
}

// ParseCode converts s to a Code
func ParseCode(s string) (Code, error) {
	c := Code(s)
	if !c.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownMarketplace, s)
	}
	return c, nil
}
