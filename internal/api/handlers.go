package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"bluecarbon.dev/registry/internal/registry"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"detail": msg})
}

// writeServiceError maps registry service errors to HTTP statuses.
func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, registry.ErrProjectNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, registry.ErrProjectExists),
		errors.Is(err, registry.ErrInvalidAmount),
		errors.Is(err, registry.ErrInsufficientCredits):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

// handleRoot serves headline registry statistics.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	stats, err := s.service.GetStats(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message":              "BlueCarbon Registry API",
		"status":               "ready",
		"projects":             stats.Projects,
		"plots":                stats.Plots,
		"total_credits_issued": stats.TotalCreditsIssued,
	})
}

// handleHealth reports store connectivity.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	sqlDB, err := s.db.DB()
	if err == nil {
		err = sqlDB.PingContext(r.Context())
	}
	if err != nil {
		s.logger.Error("health check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status":    "unhealthy",
			"timestamp": time.Now().UTC(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
	})
}

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 10)
	skip := queryInt(r, "skip", 0)

	projects, err := s.service.ListProjects(r.Context(), limit, skip)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, projects)
}

func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	project, err := s.service.GetProject(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, project)
}

func (s *Server) handleProjectHistory(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)

	history, err := s.service.History(r.Context(), r.PathValue("id"), limit)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

type registerProjectRequest struct {
	ProjectID   string `json:"project_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	ProjectType string `json:"project_type"`
	Location    string `json:"location"`
	MetadataCID string `json:"metadata_cid"`
	Owner       string `json:"owner"`
	TxHash      string `json:"tx_hash"`
}

func (s *Server) handleRegisterProject(w http.ResponseWriter, r *http.Request) {
	var req registerProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	project, err := s.service.RegisterProject(r.Context(), registry.RegisterProjectInput{
		ProjectID:   req.ProjectID,
		Name:        req.Name,
		Description: req.Description,
		ProjectType: req.ProjectType,
		Location:    req.Location,
		MetadataCID: req.MetadataCID,
		Owner:       req.Owner,
		TxHash:      req.TxHash,
	})
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"project": project,
	})
}

type issueCreditsRequest struct {
	ProjectID string `json:"project_id"`
	ToAddress string `json:"to_address"`
	Amount    int64  `json:"amount"`
	TxHash    string `json:"tx_hash"`
}

func (s *Server) handleIssueCredits(w http.ResponseWriter, r *http.Request) {
	var req issueCreditsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	project, err := s.service.IssueCredits(r.Context(), req.ProjectID, req.ToAddress, req.Amount, req.TxHash)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"project": project,
	})
}

type retireCreditsRequest struct {
	ProjectID string `json:"project_id"`
	Amount    int64  `json:"amount"`
	TxHash    string `json:"tx_hash"`
}

func (s *Server) handleRetireCredits(w http.ResponseWriter, r *http.Request) {
	var req retireCreditsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	project, err := s.service.RetireCredits(r.Context(), req.ProjectID, req.Amount, req.TxHash)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"project": project,
	})
}

func (s *Server) handleReportActiveProjects(w http.ResponseWriter, r *http.Request) {
	out, err := s.engine.ActiveProjects(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleReportTotalIssued(w http.ResponseWriter, r *http.Request) {
	total, err := s.engine.TotalCreditsIssued(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"total_issued": total})
}

func (s *Server) handleReportRecentTransactions(w http.ResponseWriter, r *http.Request) {
	out, err := s.engine.RecentTransactions(r.Context(), queryInt(r, "limit", 0))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleReportUsersByRole(w http.ResponseWriter, r *http.Request) {
	out, err := s.engine.UsersByRole(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleReportPlotCount(w http.ResponseWriter, r *http.Request) {
	count, err := s.engine.PlotCount(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"count": count})
}

func (s *Server) handleReportPlotsByType(w http.ResponseWriter, r *http.Request) {
	out, err := s.engine.PlotsByProjectType(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// handleReportPlotsNear serves the proximity report. lat, long, and radius
// (meters) are required query parameters.
func (s *Server) handleReportPlotsNear(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lat, errLat := strconv.ParseFloat(q.Get("lat"), 64)
	long, errLong := strconv.ParseFloat(q.Get("long"), 64)
	radius, errRadius := strconv.ParseFloat(q.Get("radius"), 64)
	if errLat != nil || errLong != nil || errRadius != nil {
		writeError(w, http.StatusBadRequest, "lat, long and radius query parameters are required")
		return
	}

	out, err := s.engine.PlotsNear(r.Context(), lat, long, radius, queryInt(r, "limit", 0))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleReportNDVIByType(w http.ResponseWriter, r *http.Request) {
	out, err := s.engine.AverageNDVIByProjectType(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleReportNDVIMonthly(w http.ResponseWriter, r *http.Request) {
	out, err := s.engine.NDVIMonthlyTrend(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleReportBiomassTrend(w http.ResponseWriter, r *http.Request) {
	out, err := s.engine.BiomassTrend(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleReportCO2Trend(w http.ResponseWriter, r *http.Request) {
	out, err := s.engine.CO2FluxTrend(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleReportCH4Trend(w http.ResponseWriter, r *http.Request) {
	out, err := s.engine.CH4FluxTrend(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}
