package web

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/vitos/intraday_trade_bot/internal/domain"
	"github.com/vitos/intraday_trade_bot/internal/usecase"
)

// Server exposes the engine's state as a read-only JSON surface plus a
// single manual-close endpoint. No dashboard: curl and jq are the UI.
type Server struct {
	router    *http.ServeMux
	server    *http.Server
	positions domain.PositionRepository
	ledger    domain.LedgerRepository
	signals   domain.SignalRepository
	activity  domain.ActivityRepository
	selector  *usecase.Selector
	lifecycle *usecase.Lifecycle
	started   time.Time
	logger    *zap.Logger
}

func NewServer(
	port int,
	positions domain.PositionRepository,
	ledger domain.LedgerRepository,
	signals domain.SignalRepository,
	activity domain.ActivityRepository,
	selector *usecase.Selector,
	lifecycle *usecase.Lifecycle,
	logger *zap.Logger,
) *Server {
	s := &Server{
		router:    http.NewServeMux(),
		positions: positions,
		ledger:    ledger,
		signals:   signals,
		activity:  activity,
		selector:  selector,
		lifecycle: lifecycle,
		started:   time.Now().UTC(),
		logger:    logger,
	}
	s.routes()
	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: s.router,
	}
	return s
}

func (s *Server) routes() {
	s.router.HandleFunc("GET /status", s.handleStatus)
	s.router.HandleFunc("GET /positions", s.handleOpenPositions)
	s.router.HandleFunc("GET /positions/closed", s.handleClosedPositions)
	s.router.HandleFunc("GET /ledger", s.handleLedger)
	s.router.HandleFunc("GET /signals", s.handleSignals)
	s.router.HandleFunc("GET /activity", s.handleActivity)
	s.router.HandleFunc("POST /positions/{id}/close", s.handleClosePosition)
}

func (s *Server) Start() error {
	s.logger.Info("Starting web server", zap.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
