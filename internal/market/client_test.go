package market

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/hitoshi/vavastore/internal/model"
)

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
}

const listingBody = `{"item":{
	"item_id":123456,
	"title":"Immortal 2 | 45 skins",
	"price":150.5,
	"riot_email_verified":1,
	"riot_valorant_level":212,
	"riot_valorant_region":"EU",
	"valorantRankTitle":"Immortal 2",
	"seller":{"username":"seller1","sold_items_count":10,"isOnline":true},
	"valorantInventory":{"WeaponSkins":["skin-a","skin-b"],"Agent":["agent-1"],"Buddy":null},
	"unknown_field":{"nested":true}
}}`

func newTestClient(serverURL, token string, buf *bytes.Buffer) *Client {
	return NewClient(http.DefaultClient, newTestLogger(buf), nil, ClientConfig{
		BaseURL: serverURL,
		Token:   token,
	})
}

func TestNewClient_DefaultBaseURL(t *testing.T) {
	c := NewClient(http.DefaultClient, slog.Default(), nil, ClientConfig{Token: "t"})
	if c.baseURL != DefaultBaseURL {
		t.Errorf("baseURL = %q, want %q", c.baseURL, DefaultBaseURL)
	}
}

func TestGetListing_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/123456" {
			t.Errorf("path = %s, want /123456", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret-token" {
			t.Errorf("Authorization = %q", got)
		}
		if got := r.Header.Get("Accept"); got != "application/json" {
			t.Errorf("Accept = %q, want application/json", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(listingBody))
	}))
	defer server.Close()

	var buf bytes.Buffer
	c := newTestClient(server.URL, "secret-token", &buf)

	listing, err := c.GetListing(context.Background(), "123456")
	if err != nil {
		t.Fatalf("GetListing がエラーを返した: %v", err)
	}

	if listing.Item.ItemID != 123456 {
		t.Errorf("ItemID = %d, want 123456", listing.Item.ItemID)
	}
	if listing.Item.ValorantRankTitle != "Immortal 2" {
		t.Errorf("ValorantRankTitle = %q", listing.Item.ValorantRankTitle)
	}
	if listing.Item.Seller == nil || listing.Item.Seller.Username != "seller1" {
		t.Errorf("Seller = %+v", listing.Item.Seller)
	}

	skins := listing.OwnedIDs(model.CategorySkins)
	if len(skins) != 2 || skins[0] != "skin-a" {
		t.Errorf("OwnedIDs(skins) = %v", skins)
	}
	if buddies := listing.OwnedIDs(model.CategoryBuddies); buddies == nil || len(buddies) != 0 {
		t.Errorf("OwnedIDs(buddies) = %v, want 空スライス", buddies)
	}

	// 型付けしていないフィールドもRawには残る
	var raw map[string]map[string]interface{}
	if err := json.Unmarshal(listing.Raw, &raw); err != nil {
		t.Fatalf("Raw のパースに失敗: %v", err)
	}
	if _, ok := raw["item"]["unknown_field"]; !ok {
		t.Error("Raw に unknown_field が保持されていない")
	}
}

func TestGetManagedListing_UsesManagingPath(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if got := r.Header.Get("Authorization"); got != "Bearer secret-token" {
			t.Errorf("Authorization = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(listingBody))
	}))
	defer server.Close()

	var buf bytes.Buffer
	c := newTestClient(server.URL, "secret-token", &buf)

	listing, err := c.GetManagedListing(context.Background(), "123456")
	if err != nil {
		t.Fatalf("GetManagedListing がエラーを返した: %v", err)
	}
	if gotPath != "/managing/123456" {
		t.Errorf("path = %s, want /managing/123456", gotPath)
	}
	if listing.Item.ItemID != 123456 {
		t.Errorf("ItemID = %d, want 123456", listing.Item.ItemID)
	}
}

func TestGetManagedListing_UpstreamStatusPassthrough(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	var buf bytes.Buffer
	c := newTestClient(server.URL, "t", &buf)

	_, err := c.GetManagedListing(context.Background(), "1")
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *model.APIError", err)
	}
	if apiErr.Code != model.ErrCodeListingNotFound || apiErr.UpstreamStatus != http.StatusNotFound {
		t.Errorf("apiErr = %+v, want LISTING_NOT_FOUND/404", apiErr)
	}
}

func TestGetListing_EmptyInventoryArray(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"item":{"item_id":7,"valorantInventory":[]}}`))
	}))
	defer server.Close()

	var buf bytes.Buffer
	c := newTestClient(server.URL, "t", &buf)

	listing, err := c.GetListing(context.Background(), "7")
	if err != nil {
		t.Fatalf("GetListing がエラーを返した: %v", err)
	}
	if skins := listing.OwnedIDs(model.CategorySkins); skins == nil || len(skins) != 0 {
		t.Errorf("OwnedIDs(skins) = %v, want 空スライス", skins)
	}
}

func TestGetListing_EscapesID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.RawPath != "/a%2Fb" && r.URL.EscapedPath() != "/a%2Fb" {
			t.Errorf("escaped path = %s, want /a%%2Fb", r.URL.EscapedPath())
		}
		w.Write([]byte(listingBody))
	}))
	defer server.Close()

	var buf bytes.Buffer
	c := newTestClient(server.URL, "t", &buf)
	if _, err := c.GetListing(context.Background(), "a/b"); err != nil {
		t.Fatalf("GetListing がエラーを返した: %v", err)
	}
}

func TestGetListing_MissingToken_NoUpstreamCall(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer server.Close()

	var buf bytes.Buffer
	c := newTestClient(server.URL, "", &buf)

	_, err := c.GetListing(context.Background(), "1")

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeConfiguration {
		t.Fatalf("err = %v, want CONFIGURATION_ERROR", err)
	}
	if atomic.LoadInt32(&hits) != 0 {
		t.Errorf("トークン未設定時に上流が呼ばれた: %d 回", hits)
	}
}

func TestGetListing_UpstreamStatusPassthrough(t *testing.T) {
	tests := []struct {
		name   string
		status int
	}{
		{"404", http.StatusNotFound},
		{"403", http.StatusForbidden},
		{"500", http.StatusInternalServerError},
		{"304", http.StatusNotModified},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var hits int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&hits, 1)
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			var buf bytes.Buffer
			c := newTestClient(server.URL, "t", &buf)

			_, err := c.GetListing(context.Background(), "1")

			var apiErr *model.APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("APIError ではない: %v", err)
			}
			if apiErr.Code != model.ErrCodeListingNotFound {
				t.Errorf("Code = %q, want %q", apiErr.Code, model.ErrCodeListingNotFound)
			}
			if apiErr.UpstreamStatus != tt.status {
				t.Errorf("UpstreamStatus = %d, want %d", apiErr.UpstreamStatus, tt.status)
			}
			// リトライしない
			if atomic.LoadInt32(&hits) != 1 {
				t.Errorf("上流呼び出し回数 = %d, want 1", hits)
			}
		})
	}
}

func TestGetListing_InvalidBody(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"不正なJSON", `not json`},
		{"itemが無い", `{"data":{}}`},
		{"item_idが文字列", `{"item":{"item_id":"abc"}}`},
		{"在庫リストが配列でない", `{"item":{"item_id":1,"valorantInventory":{"Agent":"x"}}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			var buf bytes.Buffer
			c := newTestClient(server.URL, "t", &buf)

			listing, err := c.GetListing(context.Background(), "1")
			if err == nil {
				t.Fatal("不正なボディはエラーになるべき")
			}
			if listing != nil {
				t.Error("エラー時は nil を返すべき")
			}
			var apiErr *model.APIError
			if errors.As(err, &apiErr) {
				t.Errorf("内部エラーであるべきだが APIError(%s) が返された", apiErr.Code)
			}
		})
	}
}

func TestGetListing_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	var buf bytes.Buffer
	c := newTestClient(url, "t", &buf)

	_, err := c.GetListing(context.Background(), "1")
	if err == nil {
		t.Fatal("接続失敗はエラーになるべき")
	}
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		t.Errorf("内部エラーであるべきだが APIError(%s) が返された", apiErr.Code)
	}
}

func TestFetchImage_Success(t *testing.T) {
	png := []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/42/image" {
			t.Errorf("path = %s, want /42/image", r.URL.Path)
		}
		if got := r.URL.Query().Get("type"); got != "agents" {
			t.Errorf("type = %q, want agents", got)
		}
		if got := r.Header.Get("Accept"); got != "image/*" {
			t.Errorf("Accept = %q, want image/*", got)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer t" {
			t.Errorf("Authorization = %q", got)
		}
		w.Header().Set("Content-Type", "image/webp")
		w.Write(png)
	}))
	defer server.Close()

	var buf bytes.Buffer
	c := newTestClient(server.URL, "t", &buf)

	img, err := c.FetchImage(context.Background(), "42", "agents")
	if err != nil {
		t.Fatalf("FetchImage がエラーを返した: %v", err)
	}
	defer img.Body.Close()

	if img.ContentType != "image/webp" {
		t.Errorf("ContentType = %q, want image/webp", img.ContentType)
	}
	got, _ := io.ReadAll(img.Body)
	if !bytes.Equal(got, png) {
		t.Errorf("body = %v, want %v", got, png)
	}
}

func TestFetchImage_DefaultContentType(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Content-Type の自動判定を抑止する
		w.Header()["Content-Type"] = nil
		w.Write([]byte("raw"))
	}))
	defer server.Close()

	var buf bytes.Buffer
	c := newTestClient(server.URL, "t", &buf)

	img, err := c.FetchImage(context.Background(), "1", "skins")
	if err != nil {
		t.Fatalf("FetchImage がエラーを返した: %v", err)
	}
	defer img.Body.Close()
	if img.ContentType != "image/png" {
		t.Errorf("ContentType = %q, want image/png", img.ContentType)
	}
}

func TestFetchImage_InvalidType_CheckedBeforeToken(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer server.Close()

	var buf bytes.Buffer
	c := newTestClient(server.URL, "", &buf)

	_, err := c.FetchImage(context.Background(), "1", "weaponskins")

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeInvalidImageType {
		t.Fatalf("err = %v, want INVALID_IMAGE_TYPE", err)
	}
	if atomic.LoadInt32(&hits) != 0 {
		t.Errorf("上流呼び出し回数 = %d, want 0", hits)
	}
}

func TestFetchImage_MissingToken(t *testing.T) {
	var buf bytes.Buffer
	c := newTestClient("http://127.0.0.1:1", "", &buf)

	_, err := c.FetchImage(context.Background(), "1", "buddies")

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeConfiguration {
		t.Fatalf("err = %v, want CONFIGURATION_ERROR", err)
	}
}

func TestFetchImage_UpstreamStatusPassthrough(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	var buf bytes.Buffer
	c := newTestClient(server.URL, "t", &buf)

	_, err := c.FetchImage(context.Background(), "1", "weapons")

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("APIError ではない: %v", err)
	}
	if apiErr.Code != model.ErrCodeImageNotFound || apiErr.UpstreamStatus != http.StatusNotFound {
		t.Errorf("Code/UpstreamStatus = %s/%d, want IMAGE_NOT_FOUND/404", apiErr.Code, apiErr.UpstreamStatus)
	}
}

func TestIsValidImageType(t *testing.T) {
	for _, valid := range []string{"skins", "pickaxes", "dances", "gliders", "weapons", "agents", "buddies"} {
		if !IsValidImageType(valid) {
			t.Errorf("IsValidImageType(%q) = false, want true", valid)
		}
	}
	for _, invalid := range []string{"", "weaponskins", "Skins", "sprays"} {
		if IsValidImageType(invalid) {
			t.Errorf("IsValidImageType(%q) = true, want false", invalid)
		}
	}
}
