// Package prefs はブラウザ端末ごとの設定値を保存する。
// ユーザーがサインインしていなくても利用できる端末側の永続化領域として扱う。
package prefs

import (
	"context"
	"time"
)

// DefaultTTL は設定値の保持期間。
const DefaultTTL = 365 * 24 * time.Hour

// Store は端末ごとの設定値を保存するキーバリューストア。
type Store interface {
	// Get は値を取得する。存在しない場合は ok=false を返す。
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	// Set は値を保存する。
	Set(ctx context.Context, key, value string) error
}
