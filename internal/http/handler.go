package http

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Englacial/ismip-indexing/internal/domain"
	"github.com/Englacial/ismip-indexing/internal/usecase"
)

// Handler serves the catalog and field endpoints.
type Handler struct {
	indexSvc *usecase.IndexService
	querySvc *usecase.QueryService
}

// NewHandler creates the HTTP handler over the two services.
func NewHandler(indexSvc *usecase.IndexService, querySvc *usecase.QueryService) *Handler {
	return &Handler{
		indexSvc: indexSvc,
		querySvc: querySvc,
	}
}

// IndexSummary is the response for GET /v1/index.
type IndexSummary struct {
	BuiltAt      time.Time `json:"built_at"`
	SourceDigest string    `json:"source_digest"`
	Records      int       `json:"records"`
	Available    int       `json:"available"`
}

// GetIndex handles GET /v1/index. With force_rebuild=true the object store
// is rescanned; otherwise a cached index satisfies the call.
func (h *Handler) GetIndex(c *gin.Context) {
	force := c.Query("force_rebuild") == "true"

	ix, err := h.indexSvc.Build(c.Request.Context(), force)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, IndexSummary{
		BuiltAt:      ix.BuiltAt,
		SourceDigest: ix.SourceDigest,
		Records:      len(ix.Records),
		Available:    len(ix.Available()),
	})
}

// GetRecords handles GET /v1/records. Empty selector fields match anything.
func (h *Handler) GetRecords(c *gin.Context) {
	want := domain.RecordKey{
		IceSheet:    c.Query("ice_sheet"),
		Institution: c.Query("institution"),
		Model:       c.Query("model"),
		Experiment:  c.Query("experiment"),
		Variable:    c.Query("variable"),
	}

	recs, err := h.indexSvc.Find(c.Request.Context(), want)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	if recs == nil {
		recs = []domain.FileRecord{}
	}

	c.JSON(http.StatusOK, gin.H{"records": recs, "count": len(recs)})
}

// GetCombinations handles GET /v1/combinations.
func (h *Handler) GetCombinations(c *gin.Context) {
	combos, err := h.indexSvc.Combinations(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	if combos == nil {
		combos = []domain.RecordKey{}
	}

	c.JSON(http.StatusOK, gin.H{"combinations": combos, "count": len(combos)})
}

// FieldResponse is the response for GET /v1/fields. Missing cells carry null
// so the payload stays valid JSON.
type FieldResponse struct {
	Key          domain.RecordKey `json:"key"`
	TimeIndex    int              `json:"time_index"`
	Method       string           `json:"method"`
	ResolutionKM float64          `json:"resolution_km"`
	Projection   string           `json:"projection"`
	NX           int              `json:"nx"`
	NY           int              `json:"ny"`
	Values       [][]*float64     `json:"values"`
	FromCache    bool             `json:"from_cache"`
}

// GetField handles GET /v1/fields.
func (h *Handler) GetField(c *gin.Context) {
	req := usecase.FieldRequest{
		IceSheet:    c.Query("ice_sheet"),
		Institution: c.Query("institution"),
		Model:       c.Query("model"),
		Experiment:  c.Query("experiment"),
		Variable:    c.Query("variable"),
		Method:      c.Query("method"),
	}
	if req.IceSheet == "" || req.Model == "" || req.Experiment == "" || req.Variable == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ice_sheet, model, experiment and variable are required"})
		return
	}

	if timeStr := c.Query("time"); timeStr != "" {
		ti, err := strconv.Atoi(timeStr)
		if err != nil || ti < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid time index: %q", timeStr)})
			return
		}
		req.TimeIndex = ti
	}
	if resStr := c.Query("resolution_km"); resStr != "" {
		res, err := strconv.ParseFloat(resStr, 64)
		if err != nil || res <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid resolution_km: %q", resStr)})
			return
		}
		req.ResolutionKM = res
	}

	out, err := h.querySvc.FetchNormalized(c.Request.Context(), req)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, FieldResponse{
		Key:          out.Key,
		TimeIndex:    out.TimeIndex,
		Method:       string(out.Method),
		ResolutionKM: out.Grid.CellM / 1000,
		Projection:   out.Grid.Projection,
		NX:           out.Grid.NX,
		NY:           out.Grid.NY,
		Values:       nullableValues(out.Values, out.Missing),
		FromCache:    out.FromCache,
	})
}

// GetFieldSteps handles GET /v1/fields/steps.
func (h *Handler) GetFieldSteps(c *gin.Context) {
	key := domain.RecordKey{
		IceSheet:    c.Query("ice_sheet"),
		Institution: c.Query("institution"),
		Model:       c.Query("model"),
		Experiment:  c.Query("experiment"),
		Variable:    c.Query("variable"),
	}
	if key.IceSheet == "" || key.Institution == "" || key.Model == "" || key.Experiment == "" || key.Variable == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ice_sheet, institution, model, experiment and variable are required"})
		return
	}

	steps, err := h.querySvc.TimeSteps(c.Request.Context(), key)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"key": key, "time_steps": steps})
}

// HealthCheck handles GET /health.
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// statusFor maps service errors onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotIndexed), errors.Is(err, domain.ErrUnknownModelGrid):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrSourceUnreadable):
		return http.StatusBadGateway
	case errors.Is(err, domain.ErrEmptyField), errors.Is(err, domain.ErrGridShapeMismatch):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadRequest
	}
}

// nullableValues replaces missing cells with null for JSON transport.
func nullableValues(values [][]float64, missing [][]bool) [][]*float64 {
	out := make([][]*float64, len(values))
	for j := range values {
		out[j] = make([]*float64, len(values[j]))
		for i := range values[j] {
			if missing[j][i] || math.IsNaN(values[j][i]) {
				continue
			}
			v := values[j][i]
			out[j][i] = &v
		}
	}
	return out
}
