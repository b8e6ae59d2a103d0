package fx

// pinnedRates is the static fallback table used when live rates cannot be
// fetched. Rates are approximate and conversions using them are flagged
// stale. Updated 2026-08.
var pinnedRates = map[[2]string]float64{
	{"EUR", "USD"}: 1.10,
	{"GBP", "USD"}: 1.25,
	{"USD", "EUR"}: 0.91,
	{"GBP", "EUR"}: 1.14,
	{"EUR", "GBP"}: 0.88,
	{"USD", "GBP"}: 0.80,
	{"CAD", "USD"}: 0.73,
	{"USD", "CAD"}: 1.37,
	{"AUD", "USD"}: 0.66,
	{"USD", "AUD"}: 1.52,
	{"JPY", "USD"}: 0.0068,
	{"USD", "JPY"}: 147.0,
	{"INR", "USD"}: 0.012,
	{"USD", "INR"}: 83.0,
}

// fallbackRate resolves a pair from the pinned table: direct pair first,
// then the inverse, then a pivot through USD.
func fallbackRate(from, to string) (float64, bool) {
	if r, ok := pinnedRates[[2]string{from, to}]; ok {
		return r, true
	}
	if r, ok := pinnedRates[[2]string{to, from}]; ok && r > 0 {
		return 1.0 / r, true
	}
	toUSD, ok1 := pinnedRates[[2]string{from, "USD"}]
	fromUSD, ok2 := pinnedRates[[2]string{"USD", to}]
	if ok1 && ok2 {
		return toUSD * fromUSD, true
	}
	return 0, false
}
