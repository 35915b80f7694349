package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// ContentSanitizerService はプロフィール文字列からマークアップを除去する。
// 外部ドキュメント由来の名前や自己紹介をキャッシュへ書き込む前に使用する。
type ContentSanitizerService interface {
	// SanitizeText はHTMLタグを除去したプレーンテキストを返す。
	// エンティティは元の文字に戻し、前後の空白を取り除く。
	SanitizeText(s string) string
}

type contentSanitizer struct {
	policy *bluemonday.Policy
}

var _ ContentSanitizerService = (*contentSanitizer)(nil)

// NewContentSanitizer はbluemondayのStrictPolicyを使うサニタイザを生成する。
func NewContentSanitizer() ContentSanitizerService {
	return &contentSanitizer{policy: bluemonday.StrictPolicy()}
}

func (s *contentSanitizer) SanitizeText(in string) string {
	if in == "" {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(s.policy.Sanitize(in)))
}

// SanitizePtr はnilを保ったままSanitizeTextを適用する。
func SanitizePtr(s ContentSanitizerService, in *string) *string {
	if in == nil {
		return nil
	}
	out := s.SanitizeText(*in)
	return &out
}
