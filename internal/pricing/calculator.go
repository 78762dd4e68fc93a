// Package pricing turns carts into totals and renders amounts for display.
package pricing

import (
	"strings"

	"storefront-checkout/internal/config"
	"storefront-checkout/internal/model"

	"github.com/shopspring/decimal"
)

// DefaultExchangeRate is used whenever the configured rate is missing or not
// a positive number.
var DefaultExchangeRate = decimal.NewFromInt(120)

type CartLine struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type Totals struct {
	Subtotal decimal.Decimal
	Discount decimal.Decimal
	Tax      decimal.Decimal
	Shipping decimal.Decimal
	Total    decimal.Decimal

	// Unresolved lists cart product ids that matched no active product. They
	// contribute nothing to the subtotal.
	Unresolved []string
}

// ApplyDiscount clamps discount into [0, subtotal] and recomputes the total.
func (t *Totals) ApplyDiscount(discount decimal.Decimal) {
	t.Discount = ClampDiscount(discount, t.Subtotal)
	t.Total = t.Subtotal.Sub(t.Discount).Add(t.Tax).Add(t.Shipping)
}

func ClampDiscount(discount, subtotal decimal.Decimal) decimal.Decimal {
	if discount.IsNegative() {
		return decimal.Zero
	}
	if discount.GreaterThan(subtotal) {
		return subtotal
	}
	return discount
}

type Calculator struct {
	baseCurrency  string
	localCurrency string
	localSymbol   string
	rate          decimal.Decimal
}

func NewCalculator(cfg config.Pricing) *Calculator {
	base := strings.ToUpper(strings.TrimSpace(cfg.BaseCurrency))
	if base == "" {
		base = "USD"
	}
	local := strings.ToUpper(strings.TrimSpace(cfg.LocalCurrency))
	if local == "" {
		local = "BDT"
	}
	symbol := cfg.LocalSymbol
	if symbol == "" {
		symbol = "৳"
	}

	return &Calculator{
		baseCurrency:  base,
		localCurrency: local,
		localSymbol:   symbol,
		rate:          ParseRate(cfg.ExchangeRate),
	}
}

// ParseRate never fails: anything unusable yields DefaultExchangeRate.
func ParseRate(raw string) decimal.Decimal {
	rate, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil || !rate.IsPositive() {
		return DefaultExchangeRate
	}
	return rate
}

func (c *Calculator) BaseCurrency() string  { return c.baseCurrency }
func (c *Calculator) LocalCurrency() string { return c.localCurrency }
func (c *Calculator) Rate() decimal.Decimal { return c.rate }

// SupportsCurrency reports whether orders may be placed in currency.
func (c *Calculator) SupportsCurrency(currency string) bool {
	currency = strings.ToUpper(currency)
	return currency == c.baseCurrency || currency == c.localCurrency
}

// Totals prices each line at the product's first pricing tier. Lines whose
// product is missing, inactive or has no tier are skipped and reported in
// Totals.Unresolved.
func (c *Calculator) Totals(lines []CartLine, catalog []*model.Product) Totals {
	byID := make(map[string]*model.Product, len(catalog))
	for _, p := range catalog {
		byID[p.ID] = p
	}

	subtotal := decimal.Zero
	var unresolved []string
	for _, line := range lines {
		price, ok := UnitPrice(byID[line.ProductID])
		if !ok {
			unresolved = append(unresolved, line.ProductID)
			continue
		}
		subtotal = subtotal.Add(price.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}

	t := Totals{
		Subtotal:   subtotal,
		Tax:        decimal.Zero, // digital goods only
		Shipping:   decimal.Zero,
		Unresolved: unresolved,
	}
	t.ApplyDiscount(decimal.Zero)
	return t
}

func UnitPrice(p *model.Product) (decimal.Decimal, bool) {
	if p == nil || p.Status != model.ProductActive || len(p.Pricing) == 0 {
		return decimal.Zero, false
	}
	return p.Pricing[0].Price, true
}

// FormatPrice renders a base-currency amount in the given display currency.
func (c *Calculator) FormatPrice(amount decimal.Decimal, currency string) string {
	if strings.EqualFold(currency, c.baseCurrency) {
		return "$" + amount.StringFixed(2)
	}
	return c.localSymbol + amount.Mul(c.rate).Round(0).String()
}

// ToBase converts an amount expressed in currency into the base currency.
func (c *Calculator) ToBase(amount decimal.Decimal, currency string) decimal.Decimal {
	if strings.EqualFold(currency, c.baseCurrency) {
		return amount
	}
	return amount.Div(c.rate)
}

// FromBase converts a base-currency amount into currency.
func (c *Calculator) FromBase(amount decimal.Decimal, currency string) decimal.Decimal {
	if strings.EqualFold(currency, c.baseCurrency) {
		return amount
	}
	return amount.Mul(c.rate)
}

// ChargeAmount is the amount string handed to the payment provider: two
// decimals in the base currency, whole units in the local currency.
func (c *Calculator) ChargeAmount(amount decimal.Decimal, currency string) string {
	if strings.EqualFold(currency, c.baseCurrency) {
		return amount.StringFixed(2)
	}
	return amount.Mul(c.rate).Round(0).String()
}
