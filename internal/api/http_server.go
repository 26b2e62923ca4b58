package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/RodolfoDevApp/market-presto-sync-go/internal/application"
	"github.com/RodolfoDevApp/market-presto-sync-go/internal/config"
	"github.com/RodolfoDevApp/market-presto-sync-go/internal/domain"
)

// Server agrupa deps para la capa HTTP del dashboard.
type Server struct {
	cfg         config.Config
	eventRepo   domain.SyncEventRepository
	stateRepo   domain.StockStateRepository
	mappingRepo domain.ProductMappingRepository
	itemRepo    domain.PrestoItemRepository
	syncService *application.SyncService
}

func NewServer(
	cfg config.Config,
	eventRepo domain.SyncEventRepository,
	stateRepo domain.StockStateRepository,
	mappingRepo domain.ProductMappingRepository,
	itemRepo domain.PrestoItemRepository,
	syncService *application.SyncService,
) *Server {
	return &Server{
		cfg:         cfg,
		eventRepo:   eventRepo,
		stateRepo:   stateRepo,
		mappingRepo: mappingRepo,
		itemRepo:    itemRepo,
		syncService: syncService,
	}
}

// RegisterRoutes registra todas las rutas HTTP en el mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/api/events", s.handleListEvents)
	mux.HandleFunc("/api/stock-states", s.handleListStockStates)
	mux.HandleFunc("/api/items", s.handleListItems)
	mux.HandleFunc("/api/mappings", s.handleMappings)
	mux.HandleFunc("/api/mappings/", s.handleDeleteMapping)
	mux.HandleFunc("/api/sync/run", s.handleRunSync)
	mux.HandleFunc("/swagger.json", s.handleSwaggerJson)
}

type healthResponse struct {
	Status string `json:"status"`
}

type syncEventResponse struct {
	ID            uuid.UUID `json:"id"`
	PosProductID  string    `json:"posProductId"`
	ProductName   string    `json:"productName"`
	Action        string    `json:"action"`
	Status        string    `json:"status"`
	ErrorMessage  *string   `json:"errorMessage,omitempty"`
	StockQuantity int       `json:"stockQuantity"`
	CreatedAtUtc  string    `json:"createdAtUtc"`
}

type stockStateResponse struct {
	PosProductID  string `json:"posProductId"`
	IsAvailable   bool   `json:"isAvailable"`
	StockQuantity int    `json:"stockQuantity"`
	UpdatedAtUtc  string `json:"updatedAtUtc"`
}

type prestoItemResponse struct {
	ID        uuid.UUID `json:"id"`
	PrestoID  int64     `json:"prestoId"`
	VendorRef *string   `json:"vendorRef,omitempty"`
	Name      string    `json:"name"`
	Price     float64   `json:"price"`
	Stock     int       `json:"stock"`
	IsActive  bool      `json:"isActive"`
}

type mappingResponse struct {
	ID           uuid.UUID `json:"id"`
	PosProductID string    `json:"posProductId"`
	PrestoItemID uuid.UUID `json:"prestoItemId"`
	CreatedAtUtc string    `json:"createdAtUtc"`
}

type createMappingRequest struct {
	PosProductID string    `json:"posProductId"`
	PrestoItemID uuid.UUID `json:"prestoItemId"`
}

type runSyncResponse struct {
	Status string `json:"status"`
}

const timeLayout = "2006-01-02T15:04:05Z"

// Handler /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}

// Handler GET /api/events?limit=N
func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, "limit is invalid", http.StatusBadRequest)
			return
		}
		limit = n
	}

	events, err := s.eventRepo.ListRecent(r.Context(), limit)
	if err != nil {
		log.Printf("ListRecent error: %v", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	resp := make([]syncEventResponse, 0, len(events))
	for _, ev := range events {
		resp = append(resp, syncEventResponse{
			ID:            ev.ID,
			PosProductID:  ev.PosProductID,
			ProductName:   ev.ProductName,
			Action:        string(ev.Action),
			Status:        string(ev.Status),
			ErrorMessage:  ev.ErrorMessage,
			StockQuantity: ev.StockQuantity,
			CreatedAtUtc:  ev.CreatedAtUtc.UTC().Format(timeLayout),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// Handler GET /api/stock-states
func (s *Server) handleListStockStates(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	states, err := s.stateRepo.GetAll(r.Context())
	if err != nil {
		log.Printf("GetAll stock states error: %v", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	resp := make([]stockStateResponse, 0, len(states))
	for _, st := range states {
		resp = append(resp, stockStateResponse{
			PosProductID:  st.PosProductID,
			IsAvailable:   st.IsAvailable,
			StockQuantity: st.StockQuantity,
			UpdatedAtUtc:  st.UpdatedAtUtc.UTC().Format(timeLayout),
		})
	}
	sort.Slice(resp, func(i, j int) bool {
		return resp[i].PosProductID < resp[j].PosProductID
	})
	writeJSON(w, http.StatusOK, resp)
}

// Handler GET /api/items
func (s *Server) handleListItems(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	items, err := s.itemRepo.List(r.Context())
	if err != nil {
		log.Printf("List presto items error: %v", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	resp := make([]prestoItemResponse, 0, len(items))
	for _, item := range items {
		resp = append(resp, prestoItemResponse{
			ID:        item.ID,
			PrestoID:  item.PrestoID,
			VendorRef: item.VendorRef,
			Name:      item.Name(),
			Price:     item.Price,
			Stock:     item.Stock,
			IsActive:  item.IsActive,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// Handler GET|POST /api/mappings
func (s *Server) handleMappings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.listMappings(w, r)
	case http.MethodPost:
		s.createMapping(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) listMappings(w http.ResponseWriter, r *http.Request) {
	mappings, err := s.mappingRepo.List(r.Context())
	if err != nil {
		log.Printf("List mappings error: %v", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	resp := make([]mappingResponse, 0, len(mappings))
	for _, m := range mappings {
		resp = append(resp, mappingResponse{
			ID:           m.ID,
			PosProductID: m.PosProductID,
			PrestoItemID: m.PrestoItemID,
			CreatedAtUtc: m.CreatedAtUtc.UTC().Format(timeLayout),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) createMapping(w http.ResponseWriter, r *http.Request) {
	var req createMappingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	if req.PosProductID == "" || req.PrestoItemID == uuid.Nil {
		http.Error(w, "posProductId and prestoItemId are required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()

	// every mapping must reference an item that exists at creation time
	item, err := s.itemRepo.GetByID(ctx, req.PrestoItemID)
	if err != nil {
		log.Printf("GetByID presto item error: %v", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if item == nil {
		http.Error(w, "presto item not found", http.StatusUnprocessableEntity)
		return
	}

	m := domain.NewProductMapping(req.PosProductID, req.PrestoItemID)
	if err := s.mappingRepo.Insert(ctx, m); err != nil {
		log.Printf("Insert mapping error: %v", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, mappingResponse{
		ID:           m.ID,
		PosProductID: m.PosProductID,
		PrestoItemID: m.PrestoItemID,
		CreatedAtUtc: m.CreatedAtUtc.UTC().Format(timeLayout),
	})
}

// Handler DELETE /api/mappings/{id}
func (s *Server) handleDeleteMapping(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/api/mappings/")
	if path == "" || path == r.URL.Path {
		http.Error(w, "id is required", http.StatusBadRequest)
		return
	}

	id, err := uuid.Parse(path)
	if err != nil {
		http.Error(w, "id is invalid", http.StatusBadRequest)
		return
	}

	if err := s.mappingRepo.Delete(r.Context(), id); err != nil {
		log.Printf("Delete mapping error: %v", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Handler POST /api/sync/run — disparo manual de un ciclo.
func (s *Server) handleRunSync(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := s.syncService.RunOnce(r.Context()); err != nil {
		if errors.Is(err, application.ErrCycleInProgress) {
			http.Error(w, "sync already in progress", http.StatusConflict)
			return
		}
		log.Printf("Manual sync failed: %v", err)
		http.Error(w, "sync failed: "+err.Error(), http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, runSyncResponse{Status: "completed"})
}

// Handler GET /swagger.json
func (s *Server) handleSwaggerJson(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(openAPISpec))
}

// Util para escribir JSON
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("writeJSON error: %v", err)
	}
}

// Spec OpenAPI minimal en JSON para Swagger.
const openAPISpec = `{
  "openapi": "3.0.0",
  "info": {
    "title": "Market Presto Sync API",
    "version": "1.0.0"
  },
  "paths": {
    "/health": {
      "get": {
        "summary": "Health check",
        "responses": {
          "200": { "description": "Service is healthy" }
        }
      }
    },
    "/api/events": {
      "get": {
        "summary": "List recent sync events",
        "parameters": [
          {
            "name": "limit",
            "in": "query",
            "required": false,
            "schema": { "type": "integer" }
          }
        ],
        "responses": {
          "200": { "description": "Sync events, newest first" },
          "400": { "description": "Invalid limit" }
        }
      }
    },
    "/api/stock-states": {
      "get": {
        "summary": "List last observed availability per POS product",
        "responses": {
          "200": { "description": "Stock states" }
        }
      }
    },
    "/api/items": {
      "get": {
        "summary": "List cached Presto catalog items",
        "responses": {
          "200": { "description": "Catalog items" }
        }
      }
    },
    "/api/mappings": {
      "get": {
        "summary": "List product mappings",
        "responses": {
          "200": { "description": "Mappings" }
        }
      },
      "post": {
        "summary": "Create a product mapping",
        "responses": {
          "201": { "description": "Mapping created" },
          "400": { "description": "Missing fields" },
          "422": { "description": "Presto item not found" }
        }
      }
    },
    "/api/mappings/{id}": {
      "delete": {
        "summary": "Delete a product mapping",
        "parameters": [
          {
            "name": "id",
            "in": "path",
            "required": true,
            "schema": { "type": "string", "format": "uuid" }
          }
        ],
        "responses": {
          "204": { "description": "Mapping deleted" },
          "400": { "description": "Invalid id" }
        }
      }
    },
    "/api/sync/run": {
      "post": {
        "summary": "Trigger one sync cycle",
        "responses": {
          "200": { "description": "Cycle completed" },
          "409": { "description": "A cycle is already running" },
          "502": { "description": "Cycle failed" }
        }
      }
    }
  }
}`
