package idxcache

import (
	"strings"

	"github.com/metafam/metagame/internal/model"
)

// NormalizeAccountType はalsoKnownAsのホスト名をplayer_account.typeの値に変換する。
// 末尾の".com"を除き大文字化する（"twitter.com" → "TWITTER"）。
// ホスト名が空の場合は空文字列を返す。
func NormalizeAccountType(host string) model.AccountType {
	h := strings.ToLower(strings.TrimSpace(host))
	h = strings.TrimSuffix(h, ".com")
	return model.AccountType(strings.ToUpper(h))
}
