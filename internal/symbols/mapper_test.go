package symbols

import "testing"

func TestToBinance(t *testing.T) {
	cases := []struct {
		exchange string
		in       string
		want     string
	}{
		{"binance", "SOLUSDT", "SOLUSDT"},
		{"binance", "1000PEPEUSDT", "PEPEUSDT"},
		{"bybit", "SHIB1000USDT", "SHIBUSDT"},
		{"bybit", "dogeusdt", "DOGEUSDT"},
		{"unknown", " XRPUSDT ", "XRPUSDT"},
	}
	for _, c := range cases {
		if got := ToBinance(c.exchange, c.in); got != c.want {
			t.Fatalf("ToBinance(%s, %s) = %s, want %s", c.exchange, c.in, got, c.want)
		}
	}
}
