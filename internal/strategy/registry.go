package strategy

import "fmt"

// New builds a strategy by its configured name.
func New(name, symbol string) (Strategy, error) {
	switch name {
	case "orb":
		return NewORB(symbol, 13, 30), nil
	case "orb_fvg_lvn":
		return NewFixedORB(symbol), nil
	case "liquidity_sweep":
		return NewLiquiditySweep(symbol), nil
	case "london_continuation":
		return NewContinuation(symbol), nil
	case "trend_pullback":
		return NewTrendPullback(symbol), nil
	case "vwap_reversion":
		return NewVWAPReversion(symbol), nil
	default:
		return nil, fmt.Errorf("unknown strategy %q", name)
	}
}
