package symbols

import "strings"

// ToBinance converts exchange-specific symbol formats to Binance style so
// that clusters from different feeds share one symbol namespace. Symbols
// are uppercase without separators; 1000-multiplied contracts map to
// their base symbol. Currently supported exchanges: binance, bybit.
func ToBinance(exchange, sym string) string {
	sym = strings.ToUpper(strings.TrimSpace(sym))
	switch strings.ToLower(exchange) {
	case "binance":
		switch sym {
		case "1000BONKUSDT":
			sym = "BONKUSDT"
		case "1000PEPEUSDT":
			sym = "PEPEUSDT"
		case "1000SHIBUSDT":
			sym = "SHIBUSDT"
		}
	case "bybit":
		switch sym {
		case "1000BONKUSDT":
			sym = "BONKUSDT"
		case "1000PEPEUSDT":
			sym = "PEPEUSDT"
		case "SHIB1000USDT":
			sym = "SHIBUSDT"
		}
	default:
		// others already use the desired format
	}
	return sym
}
