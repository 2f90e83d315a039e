// Package pricing computes the tax breakdown shown next to script prices.
package pricing

// VATBasisPoints is the VAT rate applied to script prices (20%).
const VATBasisPoints = 2000

// PriceBreakdown splits a net price into VAT and gross amounts, all in
// minor currency units.
type PriceBreakdown struct {
	NetCents   int64 `json:"netCents"`
	VATCents   int64 `json:"vatCents"`
	GrossCents int64 `json:"grossCents"`
}

// Breakdown returns the VAT breakdown for a net price, or nil when the
// price is unknown.  VAT is rounded half away from zero to the nearest cent.
func Breakdown(priceCents *int64) *PriceBreakdown {
	if priceCents == nil {
		return nil
	}
	net := *priceCents
	vat := roundDiv(net*VATBasisPoints, 10000)
	return &PriceBreakdown{NetCents: net, VATCents: vat, GrossCents: net + vat}
}

func roundDiv(n, d int64) int64 {
	if n < 0 {
		return -((-n + d/2) / d)
	}
	return (n + d/2) / d
}
