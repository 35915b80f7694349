// Package legacy は3Boxレガシープロフィールの取得を提供する。
// Ceramicにプロフィールがないプレイヤーのフォールバックとして使用する。
package legacy

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/metafam/metagame/internal/model"
)

const (
	profilePath          = "/profile"
	ipfsScheme           = "ipfs://"
	maxResponseBodyBytes = 1 << 20
)

// 3Boxの画像は固定サイズで保存されている。
const (
	avatarSize       = 170
	backgroundWidth  = 1000
	backgroundHeight = 420
	legacyImageMime  = "application/octet-stream"
)

// Client は3BoxプロフィールAPIのクライアント。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	endpoint   string
}

// NewClient はClientを生成する。
// httpClientには本番ではSSRF防止付きクライアントを渡す。
func NewClient(httpClient *http.Client, logger *slog.Logger, baseURL string) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		endpoint:   strings.TrimRight(baseURL, "/") + profilePath,
	}
}

// imageObject は3Boxの画像エントリ。contentUrlの"/"にIPFSハッシュが入る。
type imageObject struct {
	ContentURL struct {
		CID string `json:"/"`
	} `json:"contentUrl"`
}

// legacyProfile は3Box APIのレスポンスのうち参照する部分。
type legacyProfile struct {
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Emoji       string        `json:"emoji"`
	Location    string        `json:"location"`
	Website     string        `json:"website"`
	Image       []imageObject `json:"image"`
	CoverPhoto  []imageObject `json:"coverPhoto"`
}

// GetProfile はウォレットアドレスの3BoxプロフィールをbasicProfile形式で返す。
// プロフィールが存在しない場合はnilを返す。
func (c *Client) GetProfile(ctx context.Context, address string) (*model.BasicProfile, error) {
	reqURL, err := url.Parse(c.endpoint)
	if err != nil {
		return nil, fmt.Errorf("エンドポイントURLのパースに失敗しました: %w", err)
	}
	q := reqURL.Query()
	q.Set("address", strings.ToLower(address))
	reqURL.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("3Box APIの呼び出しに失敗しました",
			slog.String("address", address),
			slog.String("error", err.Error()),
		)
		return nil, err
	}
	defer resp.Body.Close()

	// 3Boxはプロフィール未作成のアドレスに404またはエラーボディを返す
	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusInternalServerError {
		c.logger.Debug("3Boxプロフィールが存在しません",
			slog.String("address", address),
			slog.Int("http_status", resp.StatusCode),
		)
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("3Box APIがステータス %d を返しました", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}

	var lp legacyProfile
	if err := json.Unmarshal(body, &lp); err != nil {
		return nil, fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
	}

	return toBasicProfile(lp), nil
}

// toBasicProfile はレガシープロフィールをbasicProfile形式に変換する。
func toBasicProfile(lp legacyProfile) *model.BasicProfile {
	return &model.BasicProfile{
		Name:         optional(lp.Name),
		Description:  optional(lp.Description),
		Emoji:        optional(lp.Emoji),
		HomeLocation: optional(lp.Location),
		URL:          optional(lp.Website),
		Image:        toImageSources(lp.Image, avatarSize, avatarSize),
		Background:   toImageSources(lp.CoverPhoto, backgroundWidth, backgroundHeight),
	}
}

func toImageSources(images []imageObject, width, height int) *model.ImageSources {
	if len(images) == 0 || images[0].ContentURL.CID == "" {
		return nil
	}
	return &model.ImageSources{
		Original: model.ImageMetadata{
			Src:      ipfsScheme + images[0].ContentURL.CID,
			MimeType: legacyImageMime,
			Width:    width,
			Height:   height,
		},
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
