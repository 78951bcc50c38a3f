package app

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/icedb-go/icedb/internal/catalog"
)

// registerHandlers wires the catalog's five operations plus health and
// partition listing onto router.
func (app *App) registerHandlers(router *mux.Router) {
	router.HandleFunc("/health", app.healthHandler).Methods(http.MethodGet)
	router.HandleFunc("/partitions", app.partitionsHandler).Methods(http.MethodGet)
	router.HandleFunc("/insert", app.insertHandler).Methods(http.MethodPost)
	router.HandleFunc("/merge", app.mergeHandler).Methods(http.MethodPost)
	router.HandleFunc("/remove", app.removeHandler).Methods(http.MethodPost)
	router.HandleFunc("/rewrite", app.rewriteHandler).Methods(http.MethodPost)
	router.HandleFunc("/collect", app.collectHandler).Methods(http.MethodPost)
}

func (app *App) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (app *App) partitionsHandler(w http.ResponseWriter, r *http.Request) {
	partitions, err := app.catalog.ListPartitions(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"partitions": partitions})
}

type insertRowRequest struct {
	Values    map[string]any `json:"values"`
	Partition string         `json:"partition"`
}

type insertRequest struct {
	Rows        []insertRowRequest `json:"rows"`
	SortColumns []string           `json:"sort_columns"`
	Compression string             `json:"compression"`
}

func (app *App) insertHandler(w http.ResponseWriter, r *http.Request) {
	var req insertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	rows := make([]catalog.Row, len(req.Rows))
	for i, rr := range req.Rows {
		rows[i] = catalog.Row{Values: rr.Values, PartitionOverride: rr.Partition}
	}

	compression := req.Compression
	if compression == "" {
		compression = app.config.Insert.Compression
	}

	sortColumns := req.SortColumns
	if len(sortColumns) == 0 {
		sortColumns = app.config.Insert.SortColumns
	}

	result, err := app.catalog.Insert(r.Context(), rows, catalog.InsertOptions{
		SortColumns:  sortColumns,
		Compression:  compression,
		RowGroupSize: app.config.Insert.RowGroupSize,
		MaxWorkers:   app.config.Insert.MaxWorkers,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type mergeRequest struct {
	MaxFileSize  int64 `json:"max_file_size"`
	MaxFileCount int   `json:"max_file_count"`
	Ascending    bool  `json:"ascending"`
}

func (app *App) mergeHandler(w http.ResponseWriter, r *http.Request) {
	req := mergeRequest{
		MaxFileSize:  app.config.Merge.MaxFileSize,
		MaxFileCount: app.config.Merge.MaxFileCount,
		Ascending:    app.config.Merge.Ascending,
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	result, ok, err := app.catalog.Merge(r.Context(), catalog.MergeOptions{
		MaxFileSize:  req.MaxFileSize,
		MaxFileCount: req.MaxFileCount,
		Ascending:    req.Ascending,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"merged": ok, "result": result})
}

type removeRequest struct {
	Partitions []string `json:"partitions"`
}

func (app *App) removeHandler(w http.ResponseWriter, r *http.Request) {
	var req removeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	drop := make(map[string]bool, len(req.Partitions))
	for _, p := range req.Partitions {
		drop[p] = true
	}

	result, err := app.catalog.Remove(r.Context(), func(live []string) []string {
		var selected []string
		for _, p := range live {
			if drop[p] {
				selected = append(selected, p)
			}
		}
		return selected
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type rewriteRequest struct {
	Partition string `json:"partition"`
	Query     string `json:"query"`
}

func (app *App) rewriteHandler(w http.ResponseWriter, r *http.Request) {
	var req rewriteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	result, err := app.catalog.Rewrite(r.Context(), req.Partition, req.Query)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type collectRequest struct {
	MinAge string `json:"min_age"`
}

func (app *App) collectHandler(w http.ResponseWriter, r *http.Request) {
	req := collectRequest{MinAge: app.config.Collect.MinAge}
	_ = json.NewDecoder(r.Body).Decode(&req)

	minAge, err := time.ParseDuration(req.MinAge)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid min_age: " + req.MinAge})
		return
	}

	result, err := app.catalog.Collect(r.Context(), minAge.Milliseconds())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
}
