// Package service supervises the relay runtime: channel adapters, the
// dispatcher, the session sweep, and the status endpoints.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"chatrelay/pkg/assistant"
	"chatrelay/pkg/channel"
	"chatrelay/pkg/config"
	"chatrelay/pkg/session"
)

const backendPingInterval = 30 * time.Second

// Service ties the relay's long-running pieces together and reports their
// health over HTTP.
type Service struct {
	cfg      *config.Config
	log      *slog.Logger
	api      assistant.API
	store    *session.Store
	handler  channel.Handler
	channels []channel.Adapter

	mu             sync.RWMutex
	startedAt      time.Time
	backendLastOK  time.Time
	backendLastErr string
	channelStates  map[string]channelState
}

type channelState struct {
	Running bool   `json:"running"`
	Error   string `json:"error,omitempty"`
}

type statusResponse struct {
	Status          string                  `json:"status"`
	UptimeSeconds   int64                   `json:"uptime_seconds"`
	ActiveSessions  int                     `json:"active_sessions"`
	BackendLastOKAt string                  `json:"backend_last_ok_at,omitempty"`
	BackendLastErr  string                  `json:"backend_last_error,omitempty"`
	Channels        map[string]channelState `json:"channels"`
}

// New assembles a service from already-wired components.
func New(cfg *config.Config, api assistant.API, store *session.Store, handler channel.Handler, adapters []channel.Adapter, log *slog.Logger) (*Service, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if api == nil {
		return nil, errors.New("assistant API is required")
	}
	if handler == nil {
		return nil, errors.New("handler is required")
	}
	if len(adapters) == 0 {
		return nil, errors.New("at least one channel adapter is required")
	}
	if log == nil {
		log = slog.Default()
	}

	channelStates := make(map[string]channelState, len(adapters))
	for _, adapter := range adapters {
		channelStates[adapter.Name()] = channelState{}
	}

	return &Service{
		cfg:           cfg,
		log:           log.With("component", "service"),
		api:           api,
		store:         store,
		handler:       handler,
		channels:      adapters,
		channelStates: channelStates,
	}, nil
}

// Run starts every component and blocks until ctx is cancelled or a component
// fails. On shutdown, live sessions are drained with best-effort remote
// cleanup.
func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	s.mu.Lock()
	s.startedAt = time.Now().UTC()
	s.mu.Unlock()

	if err := s.checkBackend(ctx); err != nil {
		return err
	}

	serverErrors := make(chan error, 1)
	go s.runStatusServer(ctx, serverErrors)

	go s.store.Run(ctx, s.cfg.SweepInterval())

	pinger := time.NewTicker(backendPingInterval)
	defer pinger.Stop()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-pinger.C:
				_ = s.checkBackend(ctx)
			}
		}
	}()

	errCh := make(chan error, len(s.channels))
	for _, adapter := range s.channels {
		adapter := adapter
		s.setChannelState(adapter.Name(), channelState{Running: true})

		go func() {
			err := adapter.Run(ctx, s.handler)
			s.setChannelState(adapter.Name(), channelState{Running: false, Error: errorString(err)})
			if err != nil && !errors.Is(err, context.Canceled) {
				errCh <- fmt.Errorf("run %s channel: %w", adapter.Name(), err)
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-serverErrors:
	case runErr = <-errCh:
	}

	s.log.Info("Shutting down, draining sessions", "active_sessions", s.store.Len())
	s.store.PurgeAll()
	return runErr
}

func (s *Service) runStatusServer(ctx context.Context, errCh chan<- error) {
	host := strings.TrimSpace(s.cfg.Status.Host)
	addr := host + ":" + strconv.Itoa(s.cfg.Status.Port)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	s.log.Info("Status server started", "address", addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		errCh <- fmt.Errorf("start status server: %w", err)
	}
}

func (s *Service) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.respondStatus(w, http.StatusOK, "ok")
}

func (s *Service) handleReady(w http.ResponseWriter, _ *http.Request) {
	statusCode := http.StatusOK
	status := "ready"
	if !s.isReady() {
		statusCode = http.StatusServiceUnavailable
		status = "not_ready"
	}

	s.respondStatus(w, statusCode, status)
}

func (s *Service) respondStatus(w http.ResponseWriter, statusCode int, status string) {
	payload := s.currentStatus(status)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log.Error("Failed to write status response", "error", err)
	}
}

func (s *Service) currentStatus(status string) statusResponse {
	s.mu.RLock()
	defer s.mu.RUnlock()

	uptime := int64(0)
	if !s.startedAt.IsZero() {
		uptime = int64(time.Since(s.startedAt).Seconds())
	}

	channels := make(map[string]channelState, len(s.channelStates))
	for name, state := range s.channelStates {
		channels[name] = state
	}

	backendLastOK := ""
	if !s.backendLastOK.IsZero() {
		backendLastOK = s.backendLastOK.Format(time.RFC3339)
	}

	return statusResponse{
		Status:          status,
		UptimeSeconds:   uptime,
		ActiveSessions:  s.store.Len(),
		BackendLastOKAt: backendLastOK,
		BackendLastErr:  s.backendLastErr,
		Channels:        channels,
	}
}

func (s *Service) isReady() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	anyRunning := false
	for _, state := range s.channelStates {
		if state.Running {
			anyRunning = true
			break
		}
	}

	return anyRunning && !s.backendLastOK.IsZero() && s.backendLastErr == ""
}

func (s *Service) checkBackend(ctx context.Context) error {
	if err := s.api.Ping(ctx); err != nil {
		s.mu.Lock()
		s.backendLastErr = err.Error()
		s.mu.Unlock()
		return fmt.Errorf("assistant backend unreachable: %w", err)
	}

	s.mu.Lock()
	s.backendLastErr = ""
	s.backendLastOK = time.Now().UTC()
	s.mu.Unlock()

	return nil
}

func (s *Service) setChannelState(name string, state channelState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.channelStates[name] = state
}

func errorString(err error) string {
	if err == nil {
		return ""
	}

	return err.Error()
}
