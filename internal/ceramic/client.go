// Package ceramic はCeramicノードのHTTP APIクライアントを提供する。
// CAIP-10リンクによるウォレット→DIDの解決と、IDXインデックス経由の
// プロフィールドキュメント取得を行う。
package ceramic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
)

const (
	streamsPath = "/api/v0/streams"

	streamTypeTile        = 0
	streamTypeCaip10Link  = 1
	caip10LinkFamily      = "caip10-link"
	idxIndexFamily        = "IDX"
	ceramicURIPrefix      = "ceramic://"
	maxResponseBodyBytes  = 1 << 20
	noDIDErrorSubstring   = "No DID"
	ethereumMainnetSuffix = "@eip155:1"
)

// ErrNoDID はCeramicノードが「DIDなし」を返したことを示す。
// 呼び出し元ではエラーではなく正常な不在として扱う。
var ErrNoDID = errors.New("ceramic: no DID")

// DocumentKind は取得するIDXドキュメントの種類。
type DocumentKind string

const (
	BasicProfile    DocumentKind = "basicProfile"
	ExtendedProfile DocumentKind = "extendedProfile"
	AlsoKnownAs     DocumentKind = "alsoKnownAs"
)

// Definitions はドキュメント種類ごとのIDX定義ストリームID。
// 空の定義は「未設定」として扱い、そのドキュメントは常に不在となる。
type Definitions map[DocumentKind]string

// Client はCeramicノードのクライアント。
type Client struct {
	httpClient  *http.Client
	logger      *slog.Logger
	baseURL     string
	definitions Definitions
}

// NewClient はClientを生成する。baseURLは末尾スラッシュなしのノードURL。
func NewClient(httpClient *http.Client, logger *slog.Logger, baseURL string, defs Definitions) *Client {
	return &Client{
		httpClient:  httpClient,
		logger:      logger,
		baseURL:     strings.TrimRight(baseURL, "/"),
		definitions: defs,
	}
}

// AccountID はウォレットアドレスからCAIP-10アカウントIDを生成する。
func AccountID(address string) string {
	return strings.ToLower(address) + ethereumMainnetSuffix
}

// streamState はストリームAPIレスポンスのうち参照する部分。
type streamState struct {
	StreamID string `json:"streamId"`
	State    struct {
		Content json.RawMessage `json:"content"`
	} `json:"state"`
}

type createStreamRequest struct {
	Type    int            `json:"type"`
	Genesis map[string]any `json:"genesis"`
	Opts    map[string]any `json:"opts"`
}

// ResolveLink はウォレットアドレスに紐付くDIDを返す。
// リンクが存在しない、またはDIDが未設定の場合は空文字列を返す。
func (c *Client) ResolveLink(ctx context.Context, address string) (string, error) {
	accountID := AccountID(address)
	st, err := c.createStream(ctx, streamTypeCaip10Link, map[string]any{
		"header": map[string]any{
			"family":      caip10LinkFamily,
			"controllers": []string{accountID},
		},
	})
	if err != nil {
		return "", fmt.Errorf("CAIP-10リンクの解決に失敗しました (%s): %w", accountID, err)
	}

	var did *string
	if len(st.State.Content) > 0 {
		if err := json.Unmarshal(st.State.Content, &did); err != nil {
			return "", fmt.Errorf("CAIP-10リンクの内容が不正です: %w", err)
		}
	}
	if did == nil {
		return "", nil
	}
	return *did, nil
}

// GetDocument はDIDのIDXインデックスから指定種類のドキュメントを取得し、outにデコードする。
// インデックスにエントリがない場合はfalseを返す。
func (c *Client) GetDocument(ctx context.Context, did string, kind DocumentKind, out any) (bool, error) {
	definition := c.definitions[kind]
	if definition == "" {
		c.logger.Debug("IDX定義が未設定のためスキップします", slog.String("kind", string(kind)))
		return false, nil
	}

	index, err := c.loadIndex(ctx, did)
	if err != nil {
		return false, err
	}

	recordURI, ok := index[definition]
	if !ok || recordURI == "" {
		return false, nil
	}

	st, err := c.getStream(ctx, strings.TrimPrefix(recordURI, ceramicURIPrefix))
	if err != nil {
		return false, fmt.Errorf("%sの取得に失敗しました: %w", kind, err)
	}
	if len(st.State.Content) == 0 || string(st.State.Content) == "null" {
		return false, nil
	}

	if err := json.Unmarshal(st.State.Content, out); err != nil {
		return false, fmt.Errorf("%sのデコードに失敗しました: %w", kind, err)
	}
	return true, nil
}

// loadIndex はDIDの決定的なIDXインデックスタイルを読み込む。
func (c *Client) loadIndex(ctx context.Context, did string) (map[string]string, error) {
	st, err := c.createStream(ctx, streamTypeTile, map[string]any{
		"header": map[string]any{
			"family":      idxIndexFamily,
			"controllers": []string{did},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("IDXインデックスの取得に失敗しました: %w", err)
	}

	index := map[string]string{}
	if len(st.State.Content) == 0 || string(st.State.Content) == "null" {
		return index, nil
	}
	if err := json.Unmarshal(st.State.Content, &index); err != nil {
		return nil, fmt.Errorf("IDXインデックスのデコードに失敗しました: %w", err)
	}
	return index, nil
}

// createStream は決定的ストリームをアンカー・公開なしで読み込む。
func (c *Client) createStream(ctx context.Context, streamType int, genesis map[string]any) (*streamState, error) {
	body, err := json.Marshal(createStreamRequest{
		Type:    streamType,
		Genesis: genesis,
		Opts:    map[string]any{"anchor": false, "publish": false, "sync": 0},
	})
	if err != nil {
		return nil, fmt.Errorf("リクエストのエンコードに失敗しました: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+streamsPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req)
}

func (c *Client) getStream(ctx context.Context, streamID string) (*streamState, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+streamsPath+"/"+streamID, nil)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	return c.do(req)
}

// do はリクエストを実行し、ストリーム状態をデコードする。
// エラーレスポンスに"No DID"が含まれる場合はErrNoDIDを返す。
func (c *Client) do(req *http.Request) (*streamState, error) {
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("Ceramic APIの呼び出しに失敗しました",
			slog.String("path", req.URL.Path),
			slog.String("error", err.Error()),
		)
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(body, &apiErr)
		msg := apiErr.Error
		if msg == "" {
			msg = strings.TrimSpace(string(body))
		}
		if strings.Contains(msg, noDIDErrorSubstring) {
			return nil, fmt.Errorf("%s: %w", msg, ErrNoDID)
		}
		c.logger.Error("Ceramic APIがエラーステータスを返しました",
			slog.String("path", req.URL.Path),
			slog.Int("http_status", resp.StatusCode),
		)
		return nil, fmt.Errorf("Ceramic APIがステータス %d を返しました: %s", resp.StatusCode, msg)
	}

	var st streamState
	if err := json.Unmarshal(body, &st); err != nil {
		return nil, fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
	}
	return &st, nil
}
