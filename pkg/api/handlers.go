package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/goran-ethernal/NFTIndexor/internal/logger"
	"github.com/goran-ethernal/NFTIndexor/pkg/downloader"
	"github.com/goran-ethernal/NFTIndexor/pkg/indexer"
)

// IndexerRegistry defines the interface for accessing registered indexers.
type IndexerRegistry interface {
	GetByName(name string) indexer.Indexer
	ListAll() []indexer.Indexer
}

// SyncStatus exposes the downloader checkpoint to the health endpoint.
type SyncStatus interface {
	GetState() (*downloader.SyncState, error)
}

// Handler handles HTTP requests for the API.
type Handler struct {
	registry IndexerRegistry
	sync     SyncStatus
	log      *logger.Logger
}

// NewHandler creates a new API handler. sync may be nil.
func NewHandler(registry IndexerRegistry, sync SyncStatus, log *logger.Logger) *Handler {
	return &Handler{
		registry: registry,
		sync:     sync,
		log:      log,
	}
}

// ListIndexers returns a list of all registered indexers.
// @Summary List all indexers
// @Description Get the registered indexers with their entity types and endpoints
// @Tags Indexers
// @Produce json
// @Success 200 {array} IndexerInfo "List of indexers"
// @Router /indexers [get]
func (h *Handler) ListIndexers(w http.ResponseWriter, r *http.Request) {
	infos := make([]IndexerInfo, 0)
	for _, idx := range h.registry.ListAll() {
		queryable, ok := idx.(indexer.Queryable)
		if !ok {
			continue
		}

		base := "/api/v1/indexers/" + idx.GetName()
		infos = append(infos, IndexerInfo{
			Type:        idx.GetType(),
			Name:        idx.GetName(),
			EntityTypes: queryable.GetEntityTypes(),
			Endpoints: []string{
				base + "/entities/{type}",
				base + "/entities/{type}/{id}",
				base + "/timeseries/{type}",
				base + "/stats",
			},
		})
	}

	respondJSON(w, http.StatusOK, infos)
}

// ListEntities returns a page of entities of one type.
// @Summary List entities
// @Description Retrieve entities of one type with optional block range and address filters, pagination and sorting
// @Tags Entities
// @Produce json
// @Param name path string true "Indexer name"
// @Param type path string true "Entity type" Enums(factories, collections, instances, balances, transfers, listings, bids, listing-history, bid-history, ownerships)
// @Param limit query int false "Maximum number of entities to return" default(100)
// @Param offset query int false "Number of entities to skip" default(0)
// @Param from_block query integer false "Only entities from this block number"
// @Param to_block query integer false "Only entities up to this block number"
// @Param address query string false "Match any address column of the entity type"
// @Param sort_by query string false "Column to sort by"
// @Param sort_order query string false "Sort order" Enums(asc, desc)
// @Success 200 {object} EntityResponse "Entities with pagination info"
// @Failure 400 {object} ErrorResponse "Invalid parameters"
// @Failure 404 {object} ErrorResponse "Indexer or entity type not found"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /indexers/{name}/entities/{type} [get]
func (h *Handler) ListEntities(w http.ResponseWriter, r *http.Request) {
	queryable, ok := h.queryable(w, r)
	if !ok {
		return
	}

	params, err := parseQueryParams(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid query parameters: %v", err))
		return
	}
	params.EntityType = r.PathValue("type")

	entities, total, err := queryable.QueryEntities(r.Context(), *params)
	if err != nil {
		h.respondQueryError(w, "failed to query entities", err)
		return
	}

	// results are typed slices, one element type per entity kind
	val := reflect.ValueOf(entities)
	if val.Kind() != reflect.Slice {
		h.log.Errorw("indexer returned a non-slice result", "type", fmt.Sprintf("%T", entities))
		respondError(w, http.StatusInternalServerError, "invalid entities type returned from indexer")
		return
	}

	respondJSON(w, http.StatusOK, EntityResponse{
		Entities: entities,
		Pagination: PaginationResult{
			Total:   total,
			Limit:   params.Limit,
			Offset:  params.Offset,
			HasMore: params.Offset+val.Len() < total,
		},
	})
}

// GetEntity returns one entity by id.
// @Summary Get an entity
// @Description Retrieve one entity by its id
// @Tags Entities
// @Produce json
// @Param name path string true "Indexer name"
// @Param type path string true "Entity type"
// @Param id path string true "Entity id"
// @Success 200 {object} object "The entity"
// @Failure 404 {object} ErrorResponse "Indexer, entity type or entity not found"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /indexers/{name}/entities/{type}/{id} [get]
func (h *Handler) GetEntity(w http.ResponseWriter, r *http.Request) {
	queryable, ok := h.queryable(w, r)
	if !ok {
		return
	}

	entityType, id := r.PathValue("type"), r.PathValue("id")

	entity, err := queryable.GetEntity(r.Context(), entityType, id)
	if err != nil {
		h.respondQueryError(w, "failed to get entity", err)
		return
	}
	if entity == nil {
		respondError(w, http.StatusNotFound, fmt.Sprintf("%s '%s' not found", entityType, id))
		return
	}

	respondJSON(w, http.StatusOK, entity)
}

// GetStats retrieves statistics for a specific indexer.
// @Summary Get indexer statistics
// @Description Retrieve entity counts and the indexed block range of an indexer
// @Tags Stats
// @Produce json
// @Param name path string true "Indexer name"
// @Success 200 {object} indexer.StatsResponse "Indexer statistics"
// @Failure 404 {object} ErrorResponse "Indexer not found"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /indexers/{name}/stats [get]
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	queryable, ok := h.queryable(w, r)
	if !ok {
		return
	}

	stats, err := queryable.GetStats(r.Context())
	if err != nil {
		h.log.Errorw("failed to get stats", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to get stats")
		return
	}

	respondJSON(w, http.StatusOK, stats)
}

// GetTimeseries returns entity counts bucketed by period.
// @Summary Get activity timeseries
// @Description Count timestamped entities (transfers, listing-history, bid-history) per hour, day or week
// @Tags Analytics
// @Produce json
// @Param name path string true "Indexer name"
// @Param type path string true "Entity type" Enums(transfers, listing-history, bid-history)
// @Param interval query string false "Time period interval" Enums(hour, day, week) default(day)
// @Param from_block query integer false "Only entities from this block number"
// @Param to_block query integer false "Only entities up to this block number"
// @Success 200 {array} indexer.TimeseriesDataPoint "Timeseries data points"
// @Failure 400 {object} ErrorResponse "Invalid parameters"
// @Failure 404 {object} ErrorResponse "Indexer or entity type not found"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /indexers/{name}/timeseries/{type} [get]
func (h *Handler) GetTimeseries(w http.ResponseWriter, r *http.Request) {
	queryable, ok := h.queryable(w, r)
	if !ok {
		return
	}

	params, err := parseTimeseriesParams(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid query parameters: %v", err))
		return
	}
	params.EntityType = r.PathValue("type")

	data, err := queryable.QueryTimeseries(r.Context(), *params)
	if err != nil {
		h.respondQueryError(w, "failed to query timeseries", err)
		return
	}

	respondJSON(w, http.StatusOK, data)
}

// Health returns the health status of the API and all indexers.
// @Summary Health check
// @Description Check the sync checkpoint and the health of every registered indexer
// @Tags Health
// @Produce json
// @Success 200 {object} HealthResponse "API and indexer health status"
// @Router /health [get]
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now(),
		Indexers:  make([]IndexerStatus, 0),
	}

	if h.sync != nil {
		state, err := h.sync.GetState()
		if err != nil {
			h.log.Warnw("failed to read sync state", "error", err)
			response.Status = "degraded"
		} else {
			response.Sync = state
		}
	}

	for _, idx := range h.registry.ListAll() {
		queryable, ok := idx.(indexer.Queryable)
		if !ok {
			continue
		}

		stats, err := queryable.GetStats(r.Context())
		status := IndexerStatus{
			Name:    idx.GetName(),
			Type:    idx.GetType(),
			Healthy: err == nil,
		}
		if err == nil {
			status.LatestBlock = stats.LatestBlock
			status.EntityCount = stats.TotalEntities
		} else {
			response.Status = "degraded"
		}

		response.Indexers = append(response.Indexers, status)
	}

	respondJSON(w, http.StatusOK, response)
}

// queryable resolves the {name} path value to a queryable indexer, writing
// the error response when it cannot.
func (h *Handler) queryable(w http.ResponseWriter, r *http.Request) (indexer.Queryable, bool) {
	name := r.PathValue("name")
	if name == "" {
		respondError(w, http.StatusBadRequest, "indexer name is required")
		return nil, false
	}

	idx := h.registry.GetByName(name)
	if idx == nil {
		respondError(w, http.StatusNotFound, fmt.Sprintf("indexer '%s' not found", name))
		return nil, false
	}

	queryable, ok := idx.(indexer.Queryable)
	if !ok {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("indexer '%s' does not support querying", name))
		return nil, false
	}

	return queryable, true
}

// respondQueryError maps indexer query errors to status codes.
func (h *Handler) respondQueryError(w http.ResponseWriter, msg string, err error) {
	switch {
	case errors.Is(err, indexer.ErrUnknownEntityType):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, indexer.ErrInvalidQuery):
		respondError(w, http.StatusBadRequest, err.Error())
	default:
		h.log.Errorw(msg, "error", err)
		respondError(w, http.StatusInternalServerError, msg)
	}
}

// parseQueryParams parses HTTP query parameters into QueryParams.
func parseQueryParams(r *http.Request) (*indexer.QueryParams, error) {
	params := indexer.NewDefaultQueryParams()
	q := r.URL.Query()

	if limitStr := q.Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit < 1 || limit > indexer.MaxPageLimit {
			return params, fmt.Errorf("invalid limit: must be between 1 and %d", indexer.MaxPageLimit)
		}
		params.Limit = limit
	}

	if offsetStr := q.Get("offset"); offsetStr != "" {
		offset, err := strconv.Atoi(offsetStr)
		if err != nil || offset < 0 {
			return params, errors.New("invalid offset: must be non-negative")
		}
		params.Offset = offset
	}

	var err error
	if params.FromBlock, params.ToBlock, err = parseBlockRange(r); err != nil {
		return params, err
	}

	params.Address = q.Get("address")

	if sortBy := q.Get("sort_by"); sortBy != "" {
		params.SortBy = strings.ToLower(sortBy)
	}

	if sortOrder := q.Get("sort_order"); sortOrder != "" {
		sortOrder = strings.ToLower(sortOrder)
		if sortOrder != "asc" && sortOrder != "desc" {
			return params, errors.New("invalid sort_order: must be 'asc' or 'desc'")
		}
		params.SortOrder = sortOrder
	}

	return params, nil
}

// parseTimeseriesParams parses HTTP query parameters for timeseries queries.
func parseTimeseriesParams(r *http.Request) (*indexer.TimeseriesParams, error) {
	params := &indexer.TimeseriesParams{Interval: "day"}

	if interval := r.URL.Query().Get("interval"); interval != "" {
		interval = strings.ToLower(interval)
		if interval != "hour" && interval != "day" && interval != "week" {
			return params, errors.New("invalid interval: must be 'hour', 'day', or 'week'")
		}
		params.Interval = interval
	}

	var err error
	params.FromBlock, params.ToBlock, err = parseBlockRange(r)

	return params, err
}

func parseBlockRange(r *http.Request) (from, to *uint64, err error) {
	parse := func(key string) (*uint64, error) {
		s := r.URL.Query().Get(key)
		if s == "" {
			return nil, nil //nolint:nilnil
		}
		v, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid %s", key)
		}
		return &v, nil
	}

	if from, err = parse("from_block"); err != nil {
		return nil, nil, err
	}
	if to, err = parse("to_block"); err != nil {
		return nil, nil, err
	}
	if from != nil && to != nil && *from > *to {
		return nil, nil, errors.New("from_block cannot be greater than to_block")
	}

	return from, to, nil
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")

	// encode first so a failure can still set the status
	encoded, err := json.Marshal(data)
	if err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(status)
	_, _ = w.Write(encoded)
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, ErrorResponse{
		Error:   http.StatusText(status),
		Message: message,
		Code:    status,
	})
}
