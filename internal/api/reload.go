package api

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/crawlmeter/crawlmeter/internal/detect"
	"github.com/crawlmeter/crawlmeter/internal/models"
)

// Reload re-pulls signature and IP range overrides from Postgres and
// swaps them into the engine. Built-in tables stay active when no
// overrides exist or the store is unreachable.
func (s *Server) Reload() error {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	if s.PG == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	sigs, err := s.PG.LoadSignatures(ctx)
	if err != nil {
		return err
	}
	if len(sigs) > 0 {
		// Overrides take precedence; built-ins stay as the tail so an
		// incomplete override table never loses coverage.
		s.Engine.SetSignatures(append(sigs, s.builtinSignatures()...))
	}

	ranges, err := s.PG.LoadIPRanges(ctx)
	if err != nil {
		return err
	}
	if len(ranges) > 0 {
		s.Engine.SetIPRanges(append(ranges, s.builtinIPRanges()...))
	}

	s.Logger.Info("signature overrides reloaded",
		zap.Int("signatures", len(sigs)),
		zap.Int("ip_ranges", len(ranges)))
	return nil
}

func (s *Server) builtinSignatures() []models.BotSignature {
	return detect.DefaultSignatures()
}

func (s *Server) builtinIPRanges() []models.IPRange {
	return detect.DefaultIPRanges()
}

// ReloadHandler triggers a reload over HTTP.
func (s *Server) ReloadHandler(w http.ResponseWriter, r *http.Request) {
	const endpoint = "reload"
	if err := s.Reload(); err != nil {
		s.Logger.Error("reload", zap.Error(err))
		http.Error(w, "reload failed", http.StatusInternalServerError)
		s.Metrics.IncrementRequests(endpoint, r.Method, "500")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"signatures": s.Engine.SignatureCount(),
	})
	s.Metrics.IncrementRequests(endpoint, r.Method, "200")
}
