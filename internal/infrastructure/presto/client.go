package presto

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/RodolfoDevApp/market-presto-sync-go/internal/domain"
)

// ErrNotAuthenticated means there is no token, or it expired. Retrying a
// push with the same token cannot succeed, so the caller must re-auth.
var ErrNotAuthenticated = errors.New("not authenticated with presto api")

// ErrPushExhausted wraps the last transport/server error once every retry
// attempt has been spent.
var ErrPushExhausted = errors.New("availability push retries exhausted")

const (
	settingToken       = "presto_token"
	settingTokenExpiry = "presto_token_expiry"

	tokenExpiryLayout = "2006-01-02 15:04:05"
)

// Client talks to the Presto developer API. It is pure transport: no
// event-log or state writes happen here.
type Client struct {
	baseURL  string
	http     *http.Client
	settings domain.SettingsRepository

	token       string
	tokenExpiry time.Time

	maxRetry int
	backoff  time.Duration
	sleep    func(time.Duration)
}

func NewClient(
	baseURL string,
	settings domain.SettingsRepository,
	maxRetry int,
	backoffSec, timeoutSec int,
) *Client {
	return &Client{
		baseURL:  baseURL,
		http:     &http.Client{Timeout: time.Duration(timeoutSec) * time.Second},
		settings: settings,
		maxRetry: maxRetry,
		backoff:  time.Duration(backoffSec) * time.Second,
		sleep:    time.Sleep,
	}
}

// LoadToken pulls the persisted token into memory. Called once at startup;
// the hot path never re-reads settings.
func (c *Client) LoadToken(ctx context.Context) error {
	token, err := c.settings.Get(ctx, settingToken)
	if err != nil {
		return err
	}
	c.token = token

	expiry, err := c.settings.Get(ctx, settingTokenExpiry)
	if err != nil {
		return err
	}
	if expiry != "" {
		t, err := time.Parse(tokenExpiryLayout, expiry)
		if err != nil {
			t, err = time.Parse(time.RFC3339, expiry)
		}
		if err != nil {
			return fmt.Errorf("invalid stored token expiry %q: %w", expiry, err)
		}
		c.tokenExpiry = t
	}
	return nil
}

func (c *Client) IsAuthenticated() bool {
	if c.token == "" {
		return false
	}
	if !c.tokenExpiry.IsZero() && c.tokenExpiry.Before(time.Now()) {
		return false
	}
	return true
}

type authTokenResponse struct {
	Data struct {
		Token struct {
			Value          string `json:"value"`
			ExpirationDate string `json:"expiration_date"`
		} `json:"token"`
	} `json:"data"`
}

// Authenticate exchanges credentials for a long-lived token and persists it.
func (c *Client) Authenticate(ctx context.Context, email, password string) error {
	body := map[string]string{
		"email":                 email,
		"password":              password,
		"token_name":            "primary-integration",
		"token_expiration_date": "2026-12-31",
	}

	status, respBody, err := c.post(ctx, "/api/developer/v1/auth/token", "", body)
	if err != nil {
		return err
	}
	if status < 200 || status >= 300 {
		return fmt.Errorf("authentication failed: status %d: %s", status, respBody)
	}

	var parsed authTokenResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return fmt.Errorf("authentication response: %w", err)
	}
	if parsed.Data.Token.Value == "" {
		return errors.New("authentication response carried no token")
	}

	c.token = parsed.Data.Token.Value
	c.tokenExpiry = time.Time{}
	if parsed.Data.Token.ExpirationDate != "" {
		t, err := time.Parse(tokenExpiryLayout, parsed.Data.Token.ExpirationDate)
		if err != nil {
			t, err = time.Parse("2006-01-02", parsed.Data.Token.ExpirationDate)
		}
		if err == nil {
			c.tokenExpiry = t
		}
	}

	if err := c.settings.Set(ctx, settingToken, c.token); err != nil {
		return err
	}
	expiryStr := ""
	if !c.tokenExpiry.IsZero() {
		expiryStr = c.tokenExpiry.Format(tokenExpiryLayout)
	}
	if err := c.settings.Set(ctx, settingTokenExpiry, expiryStr); err != nil {
		return err
	}

	log.Printf("Presto: authentication successful, token expiry %s", expiryStr)
	return nil
}

type availabilityStock struct {
	Manage   bool `json:"manage"`
	Quantity int  `json:"quantity"`
}

type availabilityEntry struct {
	VendorReferenceID string            `json:"vendor_reference_id"`
	IsAvailable       bool              `json:"is_available"`
	IsActive          bool              `json:"is_active"`
	Stock             availabilityStock `json:"stock"`
}

// UpdateItemAvailability pushes the whole batch in one bulk request.
// Up to maxRetry attempts with exponential backoff (2s, 4s for the default
// settings); a 401 aborts immediately, 200/204 short-circuits to success.
func (c *Client) UpdateItemAvailability(ctx context.Context, batch []domain.Transition) error {
	if !c.IsAuthenticated() {
		return ErrNotAuthenticated
	}

	payload := make([]availabilityEntry, 0, len(batch))
	for _, t := range batch {
		payload = append(payload, availabilityEntry{
			VendorReferenceID: t.VendorRef,
			IsAvailable:       t.IsAvailable,
			IsActive:          true,
			Stock: availabilityStock{
				Manage:   true,
				Quantity: t.StockQuantity,
			},
		})
	}

	var lastErr error
	for attempt := 1; attempt <= c.maxRetry; attempt++ {
		status, respBody, err := c.post(ctx, "/api/developer/v1/items/availability", c.token, payload)
		switch {
		case err != nil:
			lastErr = err
		case status == http.StatusOK || status == http.StatusNoContent:
			log.Printf("Presto: updated availability for %d items", len(batch))
			return nil
		case status == http.StatusUnauthorized:
			return fmt.Errorf("%w: token rejected", ErrNotAuthenticated)
		default:
			lastErr = fmt.Errorf("presto api status %d: %s", status, respBody)
		}

		if attempt < c.maxRetry {
			delay := c.backoff * time.Duration(1<<(attempt-1))
			log.Printf("Presto: availability push failed (attempt %d/%d), retrying in %s: %v",
				attempt, c.maxRetry, delay, lastErr)
			c.sleep(delay)
		}
	}

	return fmt.Errorf("%w after %d attempts: %w", ErrPushExhausted, c.maxRetry, lastErr)
}

type catalogItemDTO struct {
	ID                int64             `json:"id"`
	VendorReferenceID *string           `json:"vendor_reference_id"`
	Name              map[string]string `json:"name"`
	Description       map[string]string `json:"description"`
	Price             float64           `json:"price"`
	Stock             int               `json:"stock"`
	Sku               *string           `json:"sku"`
	Barcode           *string           `json:"barcode"`
	IsActive          *bool             `json:"is_active"`
	IsAvailable       *bool             `json:"is_available"`
	ImageURL          *string           `json:"image_url"`
}

type catalogPageResponse struct {
	Data []catalogItemDTO `json:"data"`
	Meta struct {
		CurrentPage int `json:"current_page"`
		LastPage    int `json:"last_page"`
	} `json:"meta"`
}

// ListItems walks every catalog page and returns the full item list.
func (c *Client) ListItems(ctx context.Context) ([]*domain.PrestoItem, error) {
	if !c.IsAuthenticated() {
		return nil, ErrNotAuthenticated
	}

	var items []*domain.PrestoItem
	page := 1
	for {
		parsed, err := c.fetchItemsPage(ctx, page)
		if err != nil {
			return nil, err
		}

		for _, dto := range parsed.Data {
			items = append(items, dto.toDomain())
		}

		if parsed.Meta.CurrentPage == 0 || parsed.Meta.CurrentPage >= parsed.Meta.LastPage {
			break
		}
		page++
	}

	log.Printf("Presto: fetched %d catalog items", len(items))
	return items, nil
}

func (c *Client) fetchItemsPage(ctx context.Context, page int) (*catalogPageResponse, error) {
	endpoint := c.baseURL + "/api/developer/v1/items?" + url.Values{
		"page": {strconv.Itoa(page)},
	}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, fmt.Errorf("%w: token rejected", ErrNotAuthenticated)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("failed to fetch items: status %d: %s", resp.StatusCode, body)
	}

	var parsed catalogPageResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("items page %d: %w", page, err)
	}
	return &parsed, nil
}

// TestConnection verifies both the token and plain reachability.
func (c *Client) TestConnection(ctx context.Context) error {
	if !c.IsAuthenticated() {
		return ErrNotAuthenticated
	}
	_, err := c.fetchItemsPage(ctx, 1)
	return err
}

func (dto catalogItemDTO) toDomain() *domain.PrestoItem {
	item := &domain.PrestoItem{
		PrestoID:    dto.ID,
		VendorRef:   dto.VendorReferenceID,
		Price:       dto.Price,
		Stock:       dto.Stock,
		Sku:         dto.Sku,
		Barcode:     dto.Barcode,
		ImageURL:    dto.ImageURL,
		IsActive:    true,
		IsAvailable: true,
	}
	if dto.IsActive != nil {
		item.IsActive = *dto.IsActive
	}
	if dto.IsAvailable != nil {
		item.IsAvailable = *dto.IsAvailable
	}
	if v, ok := dto.Name["ar"]; ok && v != "" {
		ar := v
		item.NameAr = &ar
	}
	if v, ok := dto.Name["en"]; ok && v != "" {
		en := v
		item.NameEn = &en
	}
	return item
}

func (c *Client) post(ctx context.Context, path, token string, body any) (int, []byte, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return 0, nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, respBody, nil
}
