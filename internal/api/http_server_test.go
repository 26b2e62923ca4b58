package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RodolfoDevApp/market-presto-sync-go/internal/application"
	"github.com/RodolfoDevApp/market-presto-sync-go/internal/config"
	"github.com/RodolfoDevApp/market-presto-sync-go/internal/domain"
)

type stubEventRepo struct {
	events []*domain.SyncEvent
}

func (r *stubEventRepo) Insert(ctx context.Context, ev *domain.SyncEvent) error { return nil }

func (r *stubEventRepo) MarkBatch(
	ctx context.Context, ids []uuid.UUID, status domain.SyncEventStatus, msg *string,
) error {
	return nil
}

func (r *stubEventRepo) ListRecent(ctx context.Context, limit int) ([]*domain.SyncEvent, error) {
	if limit < len(r.events) {
		return r.events[:limit], nil
	}
	return r.events, nil
}

type stubStateRepo struct {
	states map[string]*domain.StockState
}

func (r *stubStateRepo) GetAll(ctx context.Context) (map[string]*domain.StockState, error) {
	return r.states, nil
}

func (r *stubStateRepo) Upsert(ctx context.Context, st *domain.StockState) error {
	if r.states == nil {
		r.states = map[string]*domain.StockState{}
	}
	r.states[st.PosProductID] = st
	return nil
}

type stubMappingRepo struct {
	mappings []*domain.ProductMapping
	deleted  []uuid.UUID
}

func (r *stubMappingRepo) AllVendorRefs(ctx context.Context) (map[string][]string, error) {
	return map[string][]string{}, nil
}

func (r *stubMappingRepo) List(ctx context.Context) ([]*domain.ProductMapping, error) {
	return r.mappings, nil
}

func (r *stubMappingRepo) Insert(ctx context.Context, m *domain.ProductMapping) error {
	r.mappings = append(r.mappings, m)
	return nil
}

func (r *stubMappingRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.deleted = append(r.deleted, id)
	return nil
}

type stubItemRepo struct {
	items map[uuid.UUID]*domain.PrestoItem
}

func (r *stubItemRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.PrestoItem, error) {
	return r.items[id], nil
}

func (r *stubItemRepo) UpsertMany(ctx context.Context, items []*domain.PrestoItem) error { return nil }

func (r *stubItemRepo) List(ctx context.Context) ([]*domain.PrestoItem, error) {
	out := make([]*domain.PrestoItem, 0, len(r.items))
	for _, it := range r.items {
		out = append(out, it)
	}
	return out, nil
}

type stubSource struct {
	rows []domain.StockRow
	err  error
}

func (s *stubSource) FetchSnapshot(ctx context.Context) ([]domain.StockRow, error) {
	return s.rows, s.err
}

func (s *stubSource) TestConnection(ctx context.Context) error { return nil }

type stubPusher struct{}

func (stubPusher) IsAuthenticated() bool { return true }

func (stubPusher) UpdateItemAvailability(ctx context.Context, batch []domain.Transition) error {
	return nil
}

func newTestServer(source *stubSource) (*Server, *stubMappingRepo, *stubItemRepo, *stubEventRepo) {
	eventRepo := &stubEventRepo{}
	stateRepo := &stubStateRepo{states: map[string]*domain.StockState{}}
	mappingRepo := &stubMappingRepo{}
	itemRepo := &stubItemRepo{items: map[uuid.UUID]*domain.PrestoItem{}}

	if source == nil {
		source = &stubSource{}
	}
	svc := application.NewSyncService(
		source,
		mappingRepo,
		application.NewChangeDetector(stateRepo),
		stubPusher{},
		eventRepo,
		nil,
	)

	srv := NewServer(config.Config{}, eventRepo, stateRepo, mappingRepo, itemRepo, svc)
	return srv, mappingRepo, itemRepo, eventRepo
}

func doRequest(srv *Server, method, path, body string) *httptest.ResponseRecorder {
	mux := http.NewServeMux()
	srv.RegisterRoutes(mux)

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestServer_Health(t *testing.T) {
	srv, _, _, _ := newTestServer(nil)
	rec := doRequest(srv, http.MethodGet, "/health", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestServer_ListEvents(t *testing.T) {
	srv, _, _, eventRepo := newTestServer(nil)
	msg := "boom"
	eventRepo.events = []*domain.SyncEvent{
		{
			ID:            uuid.New(),
			PosProductID:  "A1",
			ProductName:   "Widget",
			Action:        domain.ActionDisable,
			Status:        domain.SyncFailed,
			ErrorMessage:  &msg,
			StockQuantity: 0,
			CreatedAtUtc:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		},
	}

	rec := doRequest(srv, http.MethodGet, "/api/events?limit=10", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp, 1)
	assert.Equal(t, "A1", resp[0]["posProductId"])
	assert.Equal(t, "disable", resp[0]["action"])
	assert.Equal(t, "failed", resp[0]["status"])
	assert.Equal(t, "boom", resp[0]["errorMessage"])
	assert.Equal(t, "2026-03-01T12:00:00Z", resp[0]["createdAtUtc"])
}

func TestServer_ListEvents_BadLimit(t *testing.T) {
	srv, _, _, _ := newTestServer(nil)
	rec := doRequest(srv, http.MethodGet, "/api/events?limit=zero", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_CreateMapping(t *testing.T) {
	srv, mappingRepo, itemRepo, _ := newTestServer(nil)
	itemID := uuid.New()
	itemRepo.items[itemID] = &domain.PrestoItem{ID: itemID, PrestoID: 42}

	body := `{"posProductId":"A1","prestoItemId":"` + itemID.String() + `"}`
	rec := doRequest(srv, http.MethodPost, "/api/mappings", body)

	require.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, mappingRepo.mappings, 1)
	assert.Equal(t, "A1", mappingRepo.mappings[0].PosProductID)
}

func TestServer_CreateMapping_UnknownItem(t *testing.T) {
	srv, mappingRepo, _, _ := newTestServer(nil)

	body := `{"posProductId":"A1","prestoItemId":"` + uuid.NewString() + `"}`
	rec := doRequest(srv, http.MethodPost, "/api/mappings", body)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Empty(t, mappingRepo.mappings)
}

func TestServer_CreateMapping_MissingFields(t *testing.T) {
	srv, _, _, _ := newTestServer(nil)
	rec := doRequest(srv, http.MethodPost, "/api/mappings", `{"posProductId":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_DeleteMapping(t *testing.T) {
	srv, mappingRepo, _, _ := newTestServer(nil)
	id := uuid.New()

	rec := doRequest(srv, http.MethodDelete, "/api/mappings/"+id.String(), "")
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Len(t, mappingRepo.deleted, 1)
	assert.Equal(t, id, mappingRepo.deleted[0])
}

func TestServer_DeleteMapping_InvalidID(t *testing.T) {
	srv, _, _, _ := newTestServer(nil)
	rec := doRequest(srv, http.MethodDelete, "/api/mappings/not-a-uuid", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_RunSync_Success(t *testing.T) {
	srv, _, _, _ := newTestServer(&stubSource{})
	rec := doRequest(srv, http.MethodPost, "/api/sync/run", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"completed"}`, rec.Body.String())
}

func TestServer_RunSync_SourceFailure(t *testing.T) {
	srv, _, _, _ := newTestServer(&stubSource{err: errors.New("market db down")})
	rec := doRequest(srv, http.MethodPost, "/api/sync/run", "")

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "market db down")
}

func TestServer_SwaggerJson(t *testing.T) {
	srv, _, _, _ := newTestServer(nil)
	rec := doRequest(srv, http.MethodGet, "/swagger.json", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Equal(t, "3.0.0", doc["openapi"])
}

func TestServer_MethodGuards(t *testing.T) {
	srv, _, _, _ := newTestServer(nil)

	assert.Equal(t, http.StatusMethodNotAllowed,
		doRequest(srv, http.MethodPost, "/health", "").Code)
	assert.Equal(t, http.StatusMethodNotAllowed,
		doRequest(srv, http.MethodGet, "/api/sync/run", "").Code)
	assert.Equal(t, http.StatusMethodNotAllowed,
		doRequest(srv, http.MethodPut, "/api/mappings", "").Code)
}
