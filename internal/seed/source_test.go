package seed

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func TestProductionSource_FetchTopPlayers(t *testing.T) {
	var gotReq graphQLRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":{"player":[{
			"id":"prod-1","username":"bo","ethereumAddress":"0xABC",
			"availableHours":10,"timezone":"UTC","colorMask":5,
			"type":{"id":2},
			"skills":[{"Skill":{"id":"s-1","category":"TECH","name":"Go"}}]
		}]}}`))
	}))
	defer srv.Close()

	var buf bytes.Buffer
	src := NewProductionSource(srv.Client(), newTestLogger(&buf), srv.URL)

	players, err := src.FetchTopPlayers(context.Background(), 25)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotReq.OperationName != "GetTopPlayers" {
		t.Errorf("operationName = %q", gotReq.OperationName)
	}
	if gotReq.Variables["limit"] != float64(25) {
		t.Errorf("limit = %v", gotReq.Variables["limit"])
	}
	if len(players) != 1 {
		t.Fatalf("players = %d, want 1", len(players))
	}
	p := players[0]
	if p.Username != "bo" || *p.Timezone != "UTC" || p.Type.ID != 2 || p.Skills[0].Skill.Name != "Go" {
		t.Errorf("player = %+v", p)
	}
}

func TestProductionSource_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "GraphQLエラー", status: http.StatusOK, body: `{"errors":[{"message":"field not found"}]}`},
		{name: "ステータス異常", status: http.StatusBadGateway, body: `{}`},
		{name: "不正なJSON", status: http.StatusOK, body: `<html>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			var buf bytes.Buffer
			src := NewProductionSource(srv.Client(), newTestLogger(&buf), srv.URL)
			if _, err := src.FetchTopPlayers(context.Background(), 1); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestAccountMigrator_ForceMigrate(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		w.Write([]byte(`{"success":true}`))
	}))
	defer srv.Close()

	var buf bytes.Buffer
	m := NewAccountMigrator(srv.Client(), newTestLogger(&buf), srv.URL+"?force=true")
	if err := m.ForceMigrate(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Error("endpoint should be called")
	}
}

func TestAccountMigrator_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"boom"}`))
	}))
	defer srv.Close()

	var buf bytes.Buffer
	m := NewAccountMigrator(srv.Client(), newTestLogger(&buf), srv.URL)
	if err := m.ForceMigrate(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}
