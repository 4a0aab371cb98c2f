package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/BonelessWater/aura/internal/diagnose"
)

const maxBatchTexts = 64

type diagnoseRequest struct {
	Text string `json:"text"`
}

type diagnoseBatchRequest struct {
	Texts []string `json:"texts"`
}

func (s *Server) handleDiagnose(w http.ResponseWriter, r *http.Request) {
	var req diagnoseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Text == "" {
		s.respondError(w, http.StatusBadRequest, "text is required")
		return
	}
	res, err := s.diagnoser.Diagnose(r.Context(), req.Text)
	if err != nil {
		s.respondUpstreamError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, res)
}

func (s *Server) handleDiagnoseBatch(w http.ResponseWriter, r *http.Request) {
	var req diagnoseBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Texts) == 0 {
		s.respondError(w, http.StatusBadRequest, "texts is required")
		return
	}
	if len(req.Texts) > maxBatchTexts {
		s.respondError(w, http.StatusRequestEntityTooLarge, "too many texts in batch")
		return
	}
	res, err := s.diagnoser.DiagnoseBatch(r.Context(), req.Texts)
	if err != nil {
		s.respondUpstreamError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, res)
}

func (s *Server) handleDiagnoseHealth(w http.ResponseWriter, r *http.Request) {
	payload, err := s.diagnoser.Health(r.Context())
	if err != nil {
		s.respondUpstreamError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"status": "ok", "upstream": payload})
}

// respondUpstreamError maps an unreachable upstream to 503 and an upstream failure to 502.
func (s *Server) respondUpstreamError(w http.ResponseWriter, err error) {
	var ue *diagnose.UpstreamError
	switch {
	case errors.Is(err, diagnose.ErrUnavailable):
		s.logger.Warn("inference server unavailable", zap.Error(err))
		s.respondJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unavailable",
			"error":  err.Error(),
		})
	case errors.As(err, &ue):
		s.logger.Warn("inference server error", zap.Int("upstream_status", ue.StatusCode), zap.Error(err))
		s.respondError(w, http.StatusBadGateway, err.Error())
	default:
		s.logger.Error("diagnose failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
	}
}
