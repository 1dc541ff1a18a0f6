package web

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"
)

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to encode response", zap.Error(err))
	}
}

func limitParam(r *http.Request, def int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	open, err := s.positions.GetOpenPositions(r.Context())
	if err != nil {
		s.logger.Error("Failed to load open positions", zap.Error(err))
		http.Error(w, "Failed to load open positions", http.StatusInternalServerError)
		return
	}
	act, err := s.activity.GetSchedulerActivity(r.Context())
	if err != nil {
		s.logger.Error("Failed to load scheduler activity", zap.Error(err))
		http.Error(w, "Failed to load scheduler activity", http.StatusInternalServerError)
		return
	}

	status := struct {
		Time          time.Time `json:"time"`
		UptimeSeconds int64     `json:"uptime_seconds"`
		Equity        float64   `json:"equity"`
		OpenPositions int       `json:"open_positions"`
		LastScan      time.Time `json:"last_scan"`
		ScanWindow    string    `json:"scan_window"`
	}{
		Time:          time.Now().UTC(),
		UptimeSeconds: int64(time.Since(s.started).Seconds()),
		Equity:        s.selector.Equity(r.Context()),
		OpenPositions: len(open),
	}
	if act != nil {
		status.LastScan = act.LastRun
		status.ScanWindow = act.Window
	}
	s.writeJSON(w, status)
}

func (s *Server) handleOpenPositions(w http.ResponseWriter, r *http.Request) {
	open, err := s.positions.GetOpenPositions(r.Context())
	if err != nil {
		s.logger.Error("Failed to load open positions", zap.Error(err))
		http.Error(w, "Failed to load open positions", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, open)
}

func (s *Server) handleClosedPositions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	closed, err := s.positions.GetClosedPositionsForStrategy(r.Context(), q.Get("strategy"), q.Get("symbol"), limitParam(r, 50))
	if err != nil {
		s.logger.Error("Failed to load closed positions", zap.Error(err))
		http.Error(w, "Failed to load closed positions", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, closed)
}

func (s *Server) handleLedger(w http.ResponseWriter, r *http.Request) {
	entries, err := s.ledger.ListLedgerEntries(r.Context(), limitParam(r, 100))
	if err != nil {
		s.logger.Error("Failed to load ledger", zap.Error(err))
		http.Error(w, "Failed to load ledger", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, entries)
}

func (s *Server) handleSignals(w http.ResponseWriter, r *http.Request) {
	signals, err := s.signals.ListSignals(r.Context(), limitParam(r, 100))
	if err != nil {
		s.logger.Error("Failed to load signals", zap.Error(err))
		http.Error(w, "Failed to load signals", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, signals)
}

func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	act, err := s.activity.GetSchedulerActivity(r.Context())
	if err != nil {
		s.logger.Error("Failed to load scheduler activity", zap.Error(err))
		http.Error(w, "Failed to load scheduler activity", http.StatusInternalServerError)
		return
	}
	if act == nil {
		http.Error(w, "No scheduler activity yet", http.StatusNotFound)
		return
	}
	s.writeJSON(w, act)
}

func (s *Server) handleClosePosition(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		http.Error(w, "Missing position id", http.StatusBadRequest)
		return
	}
	if err := s.lifecycle.CloseByID(r.Context(), id, time.Now().UTC()); err != nil {
		s.logger.Error("Manual close failed", zap.String("id", id), zap.Error(err))
		http.Error(w, "Close failed: "+err.Error(), http.StatusUnprocessableEntity)
		return
	}
	s.logger.Info("Position closed manually", zap.String("id", id))
	s.writeJSON(w, map[string]string{"status": "closed", "id": id})
}
