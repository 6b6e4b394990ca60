package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"

	"github.com/PatrikGFX/portfolio-tracker/internal/analytics"
	"github.com/PatrikGFX/portfolio-tracker/internal/domain"
	"github.com/PatrikGFX/portfolio-tracker/internal/ledger"
)

// topPositionsLimit caps the /portfolio/top response.
const topPositionsLimit = 5

func (s *Server) handleListPositions(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.ledger.Positions())
}

func (s *Server) handleGetPosition(w http.ResponseWriter, r *http.Request) {
	position, ok := s.ledger.Position(chi.URLParam(r, "id"))
	if !ok {
		s.writeError(w, http.StatusNotFound, "position not found")
		return
	}
	s.writeJSON(w, http.StatusOK, position)
}

func (s *Server) handleAddPosition(w http.ResponseWriter, r *http.Request) {
	var input domain.AddPositionInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := input.Validate(); err != nil {
		s.writeValidationError(w, err)
		return
	}

	position, isReal := s.ledger.AddPosition(input)
	s.writeJSON(w, http.StatusCreated, map[string]interface{}{
		"position":   position,
		"isRealData": isReal,
	})
}

func (s *Server) handleUpdatePosition(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, ok := s.ledger.Position(id); !ok {
		s.writeError(w, http.StatusNotFound, "position not found")
		return
	}

	var update domain.PositionUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := update.Validate(); err != nil {
		s.writeValidationError(w, err)
		return
	}

	s.ledger.UpdatePosition(id, update)

	position, ok := s.ledger.Position(id)
	if !ok {
		s.writeError(w, http.StatusNotFound, "position not found")
		return
	}
	s.writeJSON(w, http.StatusOK, position)
}

func (s *Server) handleDeletePosition(w http.ResponseWriter, r *http.Request) {
	s.ledger.DeletePosition(chi.URLParam(r, "id"))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAddTransaction(w http.ResponseWriter, r *http.Request) {
	var input domain.TransactionInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := input.Validate(); err != nil {
		s.writeValidationError(w, err)
		return
	}

	position, ok := s.ledger.AddTransaction(chi.URLParam(r, "id"), input)
	if !ok {
		s.writeError(w, http.StatusNotFound, "position not found")
		return
	}
	s.writeJSON(w, http.StatusCreated, position)
}

func (s *Server) handleIndicators(w http.ResponseWriter, r *http.Request) {
	position, ok := s.ledger.Position(chi.URLParam(r, "id"))
	if !ok {
		s.writeError(w, http.StatusNotFound, "position not found")
		return
	}
	s.writeJSON(w, http.StatusOK, analytics.ComputeIndicators(position.PriceHistory))
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.ledger.Stats())
}

func (s *Server) handleSectors(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.ledger.Sectors())
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.ledger.History())
}

func (s *Server) handleBenchmark(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.ledger.Benchmark())
}

func (s *Server) handlePerformance(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, analytics.ComputePerformance(s.ledger.History()))
}

// handleTopPositions returns the best performing positions by unrealized
// profit percentage.
func (s *Server) handleTopPositions(w http.ResponseWriter, r *http.Request) {
	positions := s.ledger.Positions()
	sort.Slice(positions, func(i, j int) bool {
		return positions[i].ProfitPercent() > positions[j].ProfitPercent()
	})
	if len(positions) > topPositionsLimit {
		positions = positions[:topPositionsLimit]
	}

	result := make([]map[string]interface{}, 0, len(positions))
	for i := range positions {
		p := &positions[i]
		result = append(result, map[string]interface{}{
			"ticker":        p.Ticker,
			"name":          p.Name,
			"value":         domain.Round2(p.Value()),
			"profit":        domain.Round2(p.Profit()),
			"profitPercent": domain.Round2(p.ProfitPercent()),
		})
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if err := s.ledger.RefreshReal(); err != nil {
		if errors.Is(err, ledger.ErrRefreshInFlight) {
			s.writeError(w, http.StatusConflict, "refresh already in progress")
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.ledger.ResetToDemo()
	s.writeJSON(w, http.StatusOK, s.ledger.Positions())
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

// writeValidationError renders per-field validation problems as 422.
func (s *Server) writeValidationError(w http.ResponseWriter, err error) {
	var verrs domain.ValidationErrors
	if errors.As(err, &verrs) {
		s.writeJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
			"error":  "validation failed",
			"fields": verrs,
		})
		return
	}
	s.writeError(w, http.StatusUnprocessableEntity, err.Error())
}
