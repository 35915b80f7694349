package legacy

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/metafam/metagame/internal/model"
)

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	var buf bytes.Buffer
	return NewClient(srv.Client(), newTestLogger(&buf), srv.URL)
}

func strPtr(s string) *string { return &s }

func TestClient_GetProfile_ConvertsToBasicProfile(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != profilePath {
			t.Errorf("path = %s, want %s", r.URL.Path, profilePath)
		}
		if got := r.URL.Query().Get("address"); got != "0xabc" {
			t.Errorf("address = %q, want lower-cased 0xabc", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"name": "Legacy Lu",
			"emoji": "🦄",
			"location": "Lisbon",
			"website": "https://lu.example",
			"image": [{"@type": "ImageObject", "contentUrl": {"/": "QmAvatar"}}],
			"coverPhoto": [{"@type": "ImageObject", "contentUrl": {"/": "QmCover"}}],
			"job": "ignored"
		}`))
	})

	got, err := c.GetProfile(context.Background(), "0xABC")
	if err != nil {
		t.Fatalf("GetProfile がエラーを返した: %v", err)
	}

	want := &model.BasicProfile{
		Name:         strPtr("Legacy Lu"),
		Emoji:        strPtr("🦄"),
		HomeLocation: strPtr("Lisbon"),
		URL:          strPtr("https://lu.example"),
		Image: &model.ImageSources{Original: model.ImageMetadata{
			Src: "ipfs://QmAvatar", MimeType: legacyImageMime, Width: avatarSize, Height: avatarSize,
		}},
		Background: &model.ImageSources{Original: model.ImageMetadata{
			Src: "ipfs://QmCover", MimeType: legacyImageMime, Width: backgroundWidth, Height: backgroundHeight,
		}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("profile mismatch (-want +got):\n%s", diff)
	}
}

func TestClient_GetProfile_NotFoundIsAbsent(t *testing.T) {
	for _, status := range []int{http.StatusNotFound, http.StatusInternalServerError} {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
			w.Write([]byte(`{"status":"error","message":"Error: Profile not found"}`))
		})

		got, err := c.GetProfile(context.Background(), "0x1")
		if err != nil {
			t.Fatalf("status %d: unexpected error: %v", status, err)
		}
		if got != nil {
			t.Errorf("status %d: expected nil profile, got %+v", status, got)
		}
	}
}

func TestClient_GetProfile_UnexpectedStatusIsError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	if _, err := c.GetProfile(context.Background(), "0x1"); err == nil {
		t.Fatal("expected error for 502")
	}
}

func TestClient_GetProfile_InvalidJSON(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	})

	if _, err := c.GetProfile(context.Background(), "0x1"); err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}

func TestToBasicProfile_EmptyFieldsAreNil(t *testing.T) {
	got := toBasicProfile(legacyProfile{Name: "only name"})
	if got.Description != nil || got.Image != nil || got.Background != nil {
		t.Errorf("expected nil optional fields, got %+v", got)
	}
}
