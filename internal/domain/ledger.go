package domain

import "time"

type LedgerRefType string

const (
	RefFee  LedgerRefType = "FEE"
	RefExit LedgerRefType = "EXIT"
)

// LedgerEntry is one row of the realized cash ledger. CashAfter is
// derived strictly from the most recent prior entry plus Delta; it is
// never edited in place, so replaying the sequence reproduces identical
// running balances.
type LedgerEntry struct {
	ID        int64         `json:"id"`
	Ts        time.Time     `json:"ts"`
	Delta     float64       `json:"delta"`
	CashAfter float64       `json:"cash_after"`
	RefType   LedgerRefType `json:"ref_type"`
	RefID     string        `json:"ref_id"`
}

// SchedulerActivity is a single rolling status snapshot, overwritten
// each tick. Observability only, no behavior depends on it.
type SchedulerActivity struct {
	LastRun       time.Time `json:"last_run"`
	Window        string    `json:"window"`
	Opportunities int       `json:"opportunities"`
	TradesPlaced  int       `json:"trades_placed"`
	Universe      []string  `json:"universe"`
	Messages      []string  `json:"messages"`
}
