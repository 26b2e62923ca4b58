package presto

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RodolfoDevApp/market-presto-sync-go/internal/domain"
)

type fakeSettings struct {
	m map[string]string
}

func newFakeSettings() *fakeSettings {
	return &fakeSettings{m: make(map[string]string)}
}

func (s *fakeSettings) Get(ctx context.Context, key string) (string, error) {
	return s.m[key], nil
}

func (s *fakeSettings) Set(ctx context.Context, key, value string) error {
	s.m[key] = value
	return nil
}

func newTestClient(t *testing.T, baseURL string) (*Client, *[]time.Duration) {
	t.Helper()
	c := NewClient(baseURL, newFakeSettings(), 3, 2, 30)
	c.token = "test-token"

	var sleeps []time.Duration
	c.sleep = func(d time.Duration) { sleeps = append(sleeps, d) }
	return c, &sleeps
}

func transition() domain.Transition {
	return domain.Transition{
		PosProductID:  "A1",
		ProductName:   "Widget",
		VendorRef:     "R1",
		StockQuantity: 10,
		IsAvailable:   true,
		Action:        domain.ActionEnable,
	}
}

func TestClient_UpdateItemAvailability_PayloadShape(t *testing.T) {
	var gotBody []byte
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c, sleeps := newTestClient(t, srv.URL)
	err := c.UpdateItemAvailability(context.Background(), []domain.Transition{transition()})
	require.NoError(t, err)

	assert.Equal(t, "Bearer test-token", gotAuth)
	assert.Empty(t, *sleeps)
	assert.JSONEq(t,
		`[{"vendor_reference_id":"R1","is_available":true,"is_active":true,"stock":{"manage":true,"quantity":10}}]`,
		string(gotBody))
}

func TestClient_UpdateItemAvailability_RetriesThenSucceeds(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c, sleeps := newTestClient(t, srv.URL)
	err := c.UpdateItemAvailability(context.Background(), []domain.Transition{transition()})
	require.NoError(t, err)

	assert.Equal(t, 3, attempts)
	// 2s then 4s, and no delay after the final successful attempt
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, *sleeps)
}

func TestClient_UpdateItemAvailability_ExhaustsRetries(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	}))
	defer srv.Close()

	c, sleeps := newTestClient(t, srv.URL)
	err := c.UpdateItemAvailability(context.Background(), []domain.Transition{transition()})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPushExhausted)
	assert.Contains(t, err.Error(), "status 502")
	assert.Equal(t, 3, attempts)
	// no sleep after the last failed attempt
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, *sleeps)
}

func TestClient_UpdateItemAvailability_UnauthorizedNeverRetries(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c, sleeps := newTestClient(t, srv.URL)
	err := c.UpdateItemAvailability(context.Background(), []domain.Transition{transition()})

	assert.ErrorIs(t, err, ErrNotAuthenticated)
	assert.Equal(t, 1, attempts)
	assert.Empty(t, *sleeps)
}

func TestClient_UpdateItemAvailability_FailsFastWithoutToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv.URL)
	c.token = ""

	err := c.UpdateItemAvailability(context.Background(), []domain.Transition{transition()})
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestClient_IsAuthenticated_ExpiredToken(t *testing.T) {
	c := NewClient("http://unused", newFakeSettings(), 3, 2, 30)
	c.token = "stale"
	c.tokenExpiry = time.Now().Add(-time.Hour)
	assert.False(t, c.IsAuthenticated())

	c.tokenExpiry = time.Now().Add(time.Hour)
	assert.True(t, c.IsAuthenticated())
}

func TestClient_Authenticate_PersistsToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/developer/v1/auth/token", r.URL.Path)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "primary-integration", body["token_name"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"token":{"value":"fresh-token","expiration_date":"2026-12-31 00:00:00"}}}`))
	}))
	defer srv.Close()

	settings := newFakeSettings()
	c := NewClient(srv.URL, settings, 3, 2, 30)

	err := c.Authenticate(context.Background(), "ops@example.com", "secret")
	require.NoError(t, err)

	assert.True(t, c.IsAuthenticated())
	assert.Equal(t, "fresh-token", settings.m[settingToken])
	assert.Equal(t, "2026-12-31 00:00:00", settings.m[settingTokenExpiry])
}

func TestClient_LoadToken_RestoresPersistedState(t *testing.T) {
	settings := newFakeSettings()
	settings.m[settingToken] = "stored-token"
	settings.m[settingTokenExpiry] = "2030-01-01 00:00:00"

	c := NewClient("http://unused", settings, 3, 2, 30)
	require.NoError(t, c.LoadToken(context.Background()))
	assert.True(t, c.IsAuthenticated())
}

func TestClient_ListItems_WalksAllPages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page := r.URL.Query().Get("page")
		w.Header().Set("Content-Type", "application/json")
		switch page {
		case "1":
			_, _ = w.Write([]byte(`{
                "data":[{"id":11,"vendor_reference_id":"R1","name":{"en":"Widget","ar":"اداة"},"price":3.5,"stock":4,"is_active":true,"is_available":false}],
                "meta":{"current_page":1,"last_page":2}
            }`))
		case "2":
			_, _ = w.Write([]byte(`{
                "data":[{"id":12,"name":{"en":"Gadget"},"price":1.0,"stock":0}],
                "meta":{"current_page":2,"last_page":2}
            }`))
		default:
			t.Fatalf("unexpected page %q", page)
		}
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv.URL)
	items, err := c.ListItems(context.Background())
	require.NoError(t, err)

	require.Len(t, items, 2)
	assert.Equal(t, int64(11), items[0].PrestoID)
	require.NotNil(t, items[0].VendorRef)
	assert.Equal(t, "R1", *items[0].VendorRef)
	assert.Equal(t, "Widget", items[0].Name())
	assert.False(t, items[0].IsAvailable)

	assert.Equal(t, int64(12), items[1].PrestoID)
	assert.Nil(t, items[1].VendorRef)
	// missing flags default to true
	assert.True(t, items[1].IsActive)
	// vendor ref falls back to the raw presto id
	assert.Equal(t, "12", items[1].PushRef())
}
