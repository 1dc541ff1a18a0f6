package broker

import "strings"

// cfdInstruments maps the internal index/metal tickers to their broker
// instrument codes.
var cfdInstruments = map[string]string{
	"US30":   "US30_USD",
	"NAS100": "NAS100_USD",
	"SPX500": "SPX500_USD",
	"XAUUSD": "XAU_USD",
	"XAGUSD": "XAG_USD",
}

// Instrument converts an internal ticker to the broker instrument code.
// Pure string transform: six-letter FX tickers split into BASE_QUOTE,
// anything unknown passes through unchanged.
func Instrument(symbol string) string {
	if code, ok := cfdInstruments[symbol]; ok {
		return code
	}
	if len(symbol) == 6 {
		return symbol[:3] + "_" + symbol[3:]
	}
	return symbol
}

// Symbol is the inverse transform, for stream messages keyed by
// instrument code.
func Symbol(instrument string) string {
	for sym, code := range cfdInstruments {
		if code == instrument {
			return sym
		}
	}
	return strings.ReplaceAll(instrument, "_", "")
}
