package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/vitos/intraday_trade_bot/internal/domain"
)

// SQLiteStore implements every repository interface of the engine on a
// single sqlite file.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS positions (
			id TEXT PRIMARY KEY,
			status TEXT NOT NULL,
			side TEXT NOT NULL,
			symbol TEXT NOT NULL,
			strategy_id TEXT NOT NULL,
			broker_ref TEXT,
			entry_time DATETIME NOT NULL,
			entry_price REAL NOT NULL,
			quantity REAL NOT NULL,
			stop_price REAL NOT NULL,
			initial_stop_price REAL NOT NULL,
			take_profit_price REAL NOT NULL,
			exit_time DATETIME,
			exit_price REAL NOT NULL DEFAULT 0,
			realized_pnl REAL NOT NULL DEFAULT 0,
			r_multiple REAL NOT NULL DEFAULT 0,
			stop_changes TEXT NOT NULL DEFAULT '[]'
		);`,
		`CREATE INDEX IF NOT EXISTS idx_positions_status ON positions(status);`,
		`CREATE INDEX IF NOT EXISTS idx_positions_symbol_side ON positions(symbol, side, entry_time);`,
		`CREATE TABLE IF NOT EXISTS ledger (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ts DATETIME NOT NULL,
			delta REAL NOT NULL,
			cash_after REAL NOT NULL,
			ref_type TEXT NOT NULL,
			ref_id TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS signals (
			fingerprint TEXT PRIMARY KEY,
			strategy TEXT NOT NULL,
			symbol TEXT NOT NULL,
			side TEXT NOT NULL,
			entry REAL NOT NULL,
			stop REAL NOT NULL,
			take_profit REAL NOT NULL,
			risk_reward REAL NOT NULL,
			reason TEXT,
			bar_time INTEGER NOT NULL,
			created_at DATETIME NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS scheduler_activity (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			last_run DATETIME NOT NULL,
			window TEXT NOT NULL,
			opportunities INTEGER NOT NULL,
			trades_placed INTEGER NOT NULL,
			universe TEXT NOT NULL,
			messages TEXT NOT NULL
		);`,
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return fmt.Errorf("failed to exec query %s: %w", q, err)
		}
	}
	return nil
}

// PositionRepository implementation

func (s *SQLiteStore) AddPosition(ctx context.Context, p *domain.Position) error {
	changes, err := json.Marshal(p.StopChanges)
	if err != nil {
		return err
	}
	query := `INSERT INTO positions (id, status, side, symbol, strategy_id, broker_ref, entry_time, entry_price, quantity, stop_price, initial_stop_price, take_profit_price, exit_time, exit_price, realized_pnl, r_multiple, stop_changes)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = s.db.ExecContext(ctx, query,
		p.ID, p.Status, p.Side, p.Symbol, p.StrategyID, p.BrokerRef,
		p.EntryTime, p.EntryPrice, p.Quantity, p.StopPrice, p.InitialStopPrice, p.TakeProfitPrice,
		p.ExitTime, p.ExitPrice, p.RealizedPnL, p.RMultiple, string(changes))
	return err
}

func (s *SQLiteStore) UpdatePosition(ctx context.Context, p *domain.Position) error {
	changes, err := json.Marshal(p.StopChanges)
	if err != nil {
		return err
	}
	query := `UPDATE positions SET status=?, quantity=?, stop_price=?, take_profit_price=?, exit_time=?, exit_price=?, realized_pnl=?, r_multiple=?, stop_changes=? WHERE id=?`
	res, err := s.db.ExecContext(ctx, query,
		p.Status, p.Quantity, p.StopPrice, p.TakeProfitPrice,
		p.ExitTime, p.ExitPrice, p.RealizedPnL, p.RMultiple, string(changes), p.ID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("position %s not found", p.ID)
	}
	return nil
}

const positionColumns = `id, status, side, symbol, strategy_id, broker_ref, entry_time, entry_price, quantity, stop_price, initial_stop_price, take_profit_price, exit_time, exit_price, realized_pnl, r_multiple, stop_changes`

func scanPosition(row interface{ Scan(...any) error }) (*domain.Position, error) {
	var p domain.Position
	var brokerRef sql.NullString
	var exitTime sql.NullTime
	var changes string
	err := row.Scan(&p.ID, &p.Status, &p.Side, &p.Symbol, &p.StrategyID, &brokerRef,
		&p.EntryTime, &p.EntryPrice, &p.Quantity, &p.StopPrice, &p.InitialStopPrice, &p.TakeProfitPrice,
		&exitTime, &p.ExitPrice, &p.RealizedPnL, &p.RMultiple, &changes)
	if err != nil {
		return nil, err
	}
	p.BrokerRef = brokerRef.String
	if exitTime.Valid {
		t := exitTime.Time
		p.ExitTime = &t
	}
	if err := json.Unmarshal([]byte(changes), &p.StopChanges); err != nil {
		return nil, fmt.Errorf("corrupt stop change log for %s: %w", p.ID, err)
	}
	return &p, nil
}

func (s *SQLiteStore) GetOpenPositions(ctx context.Context) ([]*domain.Position, error) {
	query := `SELECT ` + positionColumns + ` FROM positions WHERE status = ? ORDER BY entry_time`
	rows, err := s.db.QueryContext(ctx, query, domain.StatusOpen)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Position
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) GetClosedPositionsForStrategy(ctx context.Context, strategyID, symbol string, limit int) ([]*domain.Position, error) {
	query := `SELECT ` + positionColumns + ` FROM positions WHERE status = ? AND strategy_id = ?`
	args := []any{domain.StatusClosed, strategyID}
	if symbol != "" {
		query += ` AND symbol = ?`
		args = append(args, symbol)
	}
	query += ` ORDER BY exit_time DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Position
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) CountEntriesSince(ctx context.Context, symbol string, side domain.Side, since time.Time) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM positions WHERE symbol = ? AND side = ? AND entry_time >= ?`,
		symbol, side, since).Scan(&n)
	return n, err
}

// LedgerRepository implementation

// AddLedgerEntry computes cash_after from the latest prior row inside
// one transaction, so the running balance stays consistent even with
// interleaved writers.
func (s *SQLiteStore) AddLedgerEntry(ctx context.Context, ts time.Time, delta float64, refType domain.LedgerRefType, refID string) (*domain.LedgerEntry, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var prev float64
	err = tx.QueryRowContext(ctx, `SELECT cash_after FROM ledger ORDER BY id DESC LIMIT 1`).Scan(&prev)
	if err != nil && err != sql.ErrNoRows {
		return nil, err
	}

	entry := &domain.LedgerEntry{
		Ts:        ts,
		Delta:     delta,
		CashAfter: prev + delta,
		RefType:   refType,
		RefID:     refID,
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO ledger (ts, delta, cash_after, ref_type, ref_id) VALUES (?, ?, ?, ?, ?)`,
		entry.Ts, entry.Delta, entry.CashAfter, entry.RefType, entry.RefID)
	if err != nil {
		return nil, err
	}
	if entry.ID, err = res.LastInsertId(); err != nil {
		return nil, err
	}
	return entry, tx.Commit()
}

func (s *SQLiteStore) GetLatestLedgerEntry(ctx context.Context) (*domain.LedgerEntry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, ts, delta, cash_after, ref_type, ref_id FROM ledger ORDER BY id DESC LIMIT 1`)
	var e domain.LedgerEntry
	err := row.Scan(&e.ID, &e.Ts, &e.Delta, &e.CashAfter, &e.RefType, &e.RefID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *SQLiteStore) ListLedgerEntries(ctx context.Context, limit int) ([]*domain.LedgerEntry, error) {
	query := `SELECT id, ts, delta, cash_after, ref_type, ref_id FROM ledger ORDER BY id DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.LedgerEntry
	for rows.Next() {
		var e domain.LedgerEntry
		if err := rows.Scan(&e.ID, &e.Ts, &e.Delta, &e.CashAfter, &e.RefType, &e.RefID); err != nil {
			return nil, err
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

// SignalRepository implementation

func (s *SQLiteStore) AddSignal(ctx context.Context, sig *domain.Signal) error {
	query := `INSERT OR IGNORE INTO signals (fingerprint, strategy, symbol, side, entry, stop, take_profit, risk_reward, reason, bar_time, created_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query,
		sig.Fingerprint(), sig.Strategy, sig.Symbol, sig.Side,
		sig.Entry, sig.Stop, sig.TakeProfit, sig.RiskReward, sig.Reason, sig.BarTime, sig.CreatedAt)
	return err
}

func (s *SQLiteStore) HasSignal(ctx context.Context, fingerprint string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM signals WHERE fingerprint = ?`, fingerprint).Scan(&n)
	return n > 0, err
}

func (s *SQLiteStore) ListSignals(ctx context.Context, limit int) ([]*domain.Signal, error) {
	query := `SELECT strategy, symbol, side, entry, stop, take_profit, risk_reward, reason, bar_time, created_at FROM signals ORDER BY created_at DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Signal
	for rows.Next() {
		var sig domain.Signal
		if err := rows.Scan(&sig.Strategy, &sig.Symbol, &sig.Side, &sig.Entry, &sig.Stop,
			&sig.TakeProfit, &sig.RiskReward, &sig.Reason, &sig.BarTime, &sig.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &sig)
	}
	return out, rows.Err()
}

// ActivityRepository implementation

func (s *SQLiteStore) UpdateSchedulerActivity(ctx context.Context, a *domain.SchedulerActivity) error {
	universe, err := json.Marshal(a.Universe)
	if err != nil {
		return err
	}
	messages, err := json.Marshal(a.Messages)
	if err != nil {
		return err
	}
	query := `INSERT INTO scheduler_activity (id, last_run, window, opportunities, trades_placed, universe, messages)
			  VALUES (1, ?, ?, ?, ?, ?, ?)
			  ON CONFLICT(id) DO UPDATE SET
			  last_run=excluded.last_run,
			  window=excluded.window,
			  opportunities=excluded.opportunities,
			  trades_placed=excluded.trades_placed,
			  universe=excluded.universe,
			  messages=excluded.messages`
	_, err = s.db.ExecContext(ctx, query,
		a.LastRun, a.Window, a.Opportunities, a.TradesPlaced, string(universe), string(messages))
	return err
}

func (s *SQLiteStore) GetSchedulerActivity(ctx context.Context) (*domain.SchedulerActivity, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT last_run, window, opportunities, trades_placed, universe, messages FROM scheduler_activity WHERE id = 1`)
	var a domain.SchedulerActivity
	var universe, messages string
	err := row.Scan(&a.LastRun, &a.Window, &a.Opportunities, &a.TradesPlaced, &universe, &messages)
	if err == sql.ErrNoRows {
		// No tick has run yet.
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(universe), &a.Universe); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(messages), &a.Messages); err != nil {
		return nil, err
	}
	return &a, nil
}
