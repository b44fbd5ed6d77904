package handler

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/albapepper/understat-wrangler/internal/api/respond"
	"github.com/albapepper/understat-wrangler/internal/cache"
	"github.com/albapepper/understat-wrangler/internal/db"
	"github.com/albapepper/understat-wrangler/internal/normalize"
)

// latestRun is the run id alias resolved to the newest stored run.
const latestRun = "latest"

// RunsCachePrefix starts the cache key of every stored run response.
// LatestCachePrefix covers the responses served under the latest alias.
const (
	RunsCachePrefix   = "run:"
	LatestCachePrefix = RunsCachePrefix + latestRun + ":"
)

func (h *Handler) requireRuns(w http.ResponseWriter) bool {
	if h.runs == nil {
		respond.WriteError(w, http.StatusServiceUnavailable, "NO_DATABASE", "No database is configured")
		return false
	}
	return true
}

// resolveRun maps the latest alias to a run id.
func (h *Handler) resolveRun(w http.ResponseWriter, r *http.Request) (string, bool) {
	runID := chi.URLParam(r, "runID")
	if runID != latestRun {
		return runID, true
	}
	id, err := h.runs.LatestRun(r.Context())
	if errors.Is(err, db.ErrNoRows) {
		respond.WriteError(w, http.StatusNotFound, "NOT_FOUND", "No runs stored yet")
		return "", false
	}
	if err != nil {
		h.logger.Error("latest run lookup failed", "error", err)
		respond.WriteError(w, http.StatusInternalServerError, "DB_ERROR", "Run lookup failed")
		return "", false
	}
	return id, true
}

// GetRunDatasets lists the datasets stored for a run.
// @Summary List stored datasets of a run
// @Description Lists the tables a pipeline run wrote to Postgres. Use latest for the newest run.
// @Tags runs
// @Produce json
// @Param runID path string true "Run id or latest"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} respond.ErrorResponse
// @Failure 503 {object} respond.ErrorResponse
// @Router /runs/{runID} [get]
func (h *Handler) GetRunDatasets(w http.ResponseWriter, r *http.Request) {
	if !h.requireRuns(w) {
		return
	}
	runID, ok := h.resolveRun(w, r)
	if !ok {
		return
	}
	names, err := h.runs.Datasets(r.Context(), runID)
	if err != nil {
		h.logger.Error("list run datasets failed", "run_id", runID, "error", err)
		respond.WriteError(w, http.StatusInternalServerError, "DB_ERROR", "Listing datasets failed")
		return
	}
	if len(names) == 0 {
		respond.WriteError(w, http.StatusNotFound, "NOT_FOUND", "No datasets stored for run "+runID)
		return
	}
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"run_id":   runID,
		"datasets": names,
	})
}

// GetRunDataset serves one stored table of a run.
// @Summary Get a stored dataset
// @Description Returns a table a pipeline run wrote to Postgres, rows in their original order.
// @Tags runs
// @Produce json,text/csv
// @Param runID path string true "Run id or latest"
// @Param dataset path string true "Dataset name, e.g. League results - 2020-21 - EPL"
// @Param format query string false "Response format" Enums(json, csv)
// @Success 200 {array} map[string]interface{}
// @Failure 404 {object} respond.ErrorResponse
// @Failure 503 {object} respond.ErrorResponse
// @Router /runs/{runID}/{dataset} [get]
func (h *Handler) GetRunDataset(w http.ResponseWriter, r *http.Request) {
	if !h.requireRuns(w) {
		return
	}
	format, ok := parseFormat(w, r)
	if !ok {
		return
	}
	dataset := chi.URLParam(r, "dataset")

	// Stored runs never change. Entries under the latest alias are dropped
	// when a new run finishes, see LatestCachePrefix.
	cacheKey := fmt.Sprintf("%s%s:%s:%s", RunsCachePrefix, chi.URLParam(r, "runID"), dataset, format)
	ttl := cache.TTLHistorical
	if chi.URLParam(r, "runID") == latestRun {
		ttl = h.liveTTL()
	}
	if e, ok := h.cache.Get(cacheKey); ok {
		respond.ServeBody(w, r, e.ContentType, e.Data, e.ETag, ttl, true)
		return
	}

	runID, ok := h.resolveRun(w, r)
	if !ok {
		return
	}

	rows, err := h.runs.DatasetRows(r.Context(), runID, dataset)
	if errors.Is(err, db.ErrNoRows) {
		respond.WriteError(w, http.StatusNotFound, "NOT_FOUND",
			fmt.Sprintf("No dataset %q stored for run %s", dataset, runID))
		return
	}
	if err != nil {
		h.logger.Error("read run dataset failed", "run_id", runID, "dataset", dataset, "error", err)
		respond.WriteError(w, http.StatusInternalServerError, "DB_ERROR", "Reading dataset failed")
		return
	}

	var data []byte
	contentType := respond.ContentTypeJSON
	if format == respond.FormatCSV {
		data, contentType, err = rowsToCSV(rows)
	} else {
		data = append(append([]byte("["), bytes.Join(rows, []byte(","))...), ']')
	}
	if err != nil {
		h.logger.Error("encode run dataset failed", "run_id", runID, "dataset", dataset, "error", err)
		respond.WriteError(w, http.StatusInternalServerError, "ENCODE_ERROR", "Stored rows could not be encoded")
		return
	}

	etag := h.cache.Set(cacheKey, contentType, data, ttl)
	respond.ServeBody(w, r, contentType, data, etag, ttl, false)
}

// rowsToCSV rebuilds a table from stored row objects and writes it as CSV.
func rowsToCSV(rows [][]byte) ([]byte, string, error) {
	t := normalize.NewTable()
	for i, raw := range rows {
		rec, err := normalize.DecodeBytes(raw)
		if err != nil {
			return nil, "", fmt.Errorf("row %d: %w", i, err)
		}
		if err := t.AppendRecord(rec); err != nil {
			return nil, "", fmt.Errorf("row %d: %w", i, err)
		}
	}
	return respond.EncodeTable(t, respond.FormatCSV)
}
