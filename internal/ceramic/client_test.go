package ceramic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/metafam/metagame/internal/model"
)

const (
	testDID        = "did:3:kjzl6cwe1jw147testdid"
	testBasicDef   = "kjzl-basic"
	testAKADef     = "kjzl-aka"
	testBasicTile  = "kjzl-basic-record"
	testWalletAddr = "0xABCdef"
)

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
}

// fakeNode はCeramicノードのストリームAPIを模したテストサーバー。
type fakeNode struct {
	t         *testing.T
	links     map[string]any    // CAIP-10アカウントID → content
	indexes   map[string]any    // DID → インデックス内容
	records   map[string]any    // ストリームID → content
	failPaths map[string]string // パス → エラーメッセージ
}

func (f *fakeNode) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if msg, ok := f.failPaths[r.URL.Path]; ok {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{"error": msg})
		return
	}

	var content any
	switch {
	case r.Method == http.MethodPost && r.URL.Path == streamsPath:
		var req struct {
			Type    int `json:"type"`
			Genesis struct {
				Header struct {
					Family      string   `json:"family"`
					Controllers []string `json:"controllers"`
				} `json:"header"`
			} `json:"genesis"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			f.t.Errorf("リクエストのデコードに失敗: %v", err)
		}
		controller := req.Genesis.Header.Controllers[0]
		switch req.Genesis.Header.Family {
		case caip10LinkFamily:
			if req.Type != streamTypeCaip10Link {
				f.t.Errorf("type = %d, want %d", req.Type, streamTypeCaip10Link)
			}
			content = f.links[controller]
		case idxIndexFamily:
			content = f.indexes[controller]
		default:
			f.t.Errorf("unexpected family %q", req.Genesis.Header.Family)
		}
	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, streamsPath+"/"):
		content = f.records[strings.TrimPrefix(r.URL.Path, streamsPath+"/")]
	default:
		w.WriteHeader(http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"streamId": "kjzl-any",
		"state":    map[string]any{"content": content},
	})
}

func newTestClient(t *testing.T, node *fakeNode) *Client {
	t.Helper()
	node.t = t
	srv := httptest.NewServer(node)
	t.Cleanup(srv.Close)

	var buf bytes.Buffer
	return NewClient(srv.Client(), newTestLogger(&buf), srv.URL+"/", Definitions{
		BasicProfile: testBasicDef,
		AlsoKnownAs:  testAKADef,
	})
}

func TestAccountID_LowercasesAndAppendsChain(t *testing.T) {
	if got := AccountID("0xABC"); got != "0xabc@eip155:1" {
		t.Errorf("AccountID = %q, want %q", got, "0xabc@eip155:1")
	}
}

func TestClient_ResolveLink(t *testing.T) {
	c := newTestClient(t, &fakeNode{
		links: map[string]any{AccountID(testWalletAddr): testDID},
	})

	did, err := c.ResolveLink(context.Background(), testWalletAddr)
	if err != nil {
		t.Fatalf("ResolveLink がエラーを返した: %v", err)
	}
	if did != testDID {
		t.Errorf("did = %q, want %q", did, testDID)
	}
}

func TestClient_ResolveLink_NoLink(t *testing.T) {
	c := newTestClient(t, &fakeNode{links: map[string]any{}})

	did, err := c.ResolveLink(context.Background(), "0x999")
	if err != nil {
		t.Fatalf("ResolveLink がエラーを返した: %v", err)
	}
	if did != "" {
		t.Errorf("did = %q, want empty", did)
	}
}

func TestClient_GetDocument_BasicProfile(t *testing.T) {
	c := newTestClient(t, &fakeNode{
		indexes: map[string]any{testDID: map[string]string{testBasicDef: "ceramic://" + testBasicTile}},
		records: map[string]any{testBasicTile: map[string]any{
			"name":  "Bo",
			"image": map[string]any{"original": map[string]any{"src": "u", "mimeType": "image/png"}},
		}},
	})

	var profile model.BasicProfile
	found, err := c.GetDocument(context.Background(), testDID, BasicProfile, &profile)
	if err != nil {
		t.Fatalf("GetDocument がエラーを返した: %v", err)
	}
	if !found {
		t.Fatal("expected document to be found")
	}
	if profile.Name == nil || *profile.Name != "Bo" {
		t.Errorf("name = %v, want Bo", profile.Name)
	}
	if profile.Image == nil || profile.Image.Original.Src != "u" {
		t.Errorf("image = %+v, want src u", profile.Image)
	}
}

func TestClient_GetDocument_MissingEntryIsAbsent(t *testing.T) {
	c := newTestClient(t, &fakeNode{
		indexes: map[string]any{testDID: map[string]string{testBasicDef: "ceramic://" + testBasicTile}},
	})

	var aka model.AlsoKnownAs
	found, err := c.GetDocument(context.Background(), testDID, AlsoKnownAs, &aka)
	if err != nil {
		t.Fatalf("GetDocument がエラーを返した: %v", err)
	}
	if found {
		t.Error("expected document to be absent")
	}
}

func TestClient_GetDocument_UnconfiguredDefinitionSkipsNetwork(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer srv.Close()

	var buf bytes.Buffer
	c := NewClient(srv.Client(), newTestLogger(&buf), srv.URL, Definitions{})

	var ext model.ExtendedProfile
	found, err := c.GetDocument(context.Background(), testDID, ExtendedProfile, &ext)
	if err != nil || found {
		t.Fatalf("found = %v, err = %v, want false, nil", found, err)
	}
	if calls != 0 {
		t.Errorf("calls = %d, want 0", calls)
	}
}

func TestClient_NoDIDErrorIsSentinel(t *testing.T) {
	c := newTestClient(t, &fakeNode{
		failPaths: map[string]string{streamsPath: "No DID provided"},
	})

	var profile model.BasicProfile
	_, err := c.GetDocument(context.Background(), testDID, BasicProfile, &profile)
	if !errors.Is(err, ErrNoDID) {
		t.Fatalf("expected ErrNoDID, got %v", err)
	}
}

func TestClient_OtherErrorsPropagate(t *testing.T) {
	c := newTestClient(t, &fakeNode{
		failPaths: map[string]string{streamsPath: "node is syncing"},
	})

	_, err := c.ResolveLink(context.Background(), testWalletAddr)
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, ErrNoDID) {
		t.Error("unexpected ErrNoDID")
	}
	if !strings.Contains(err.Error(), "500") {
		t.Errorf("error should mention status: %v", err)
	}
}
