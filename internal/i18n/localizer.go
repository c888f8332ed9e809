package i18n

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/churchdash/internal/model"
	"github.com/hitoshi/churchdash/internal/prefs"
)

// saveTimeout はプロフィールへの言語保存の待ち時間の上限。
const saveTimeout = 10 * time.Second

// LanguageSaver は選択された言語をプロフィールに保存する。
type LanguageSaver interface {
	SaveLanguage(ctx context.Context, lang string) error
}

// PreferenceKey は端末の言語設定を保存するキーを返す。
func PreferenceKey(deviceID string) string {
	return "lang:" + deviceID
}

// Localizer は端末1つ分の表示言語を管理する。
type Localizer struct {
	catalog  *Catalog
	prefs    prefs.Store
	deviceID string
	saver    LanguageSaver
	logger   *slog.Logger

	mu   sync.RWMutex
	lang string

	wg sync.WaitGroup
}

// LocalizerOption はLocalizerの任意設定。
type LocalizerOption func(*Localizer)

// WithSaver はサインイン中のユーザーのプロフィールへ言語を保存する先を設定する。
func WithSaver(s LanguageSaver) LocalizerOption {
	return func(l *Localizer) { l.saver = s }
}

// WithLogger はロガーを設定する。
func WithLogger(logger *slog.Logger) LocalizerOption {
	return func(l *Localizer) { l.logger = logger }
}

// NewLocalizer は指定した言語で表示するLocalizerを生成する。
// 言語が選択可能でない場合は既定言語を使う。
func NewLocalizer(catalog *Catalog, store prefs.Store, deviceID, lang string, opts ...LocalizerOption) *Localizer {
	l := &Localizer{
		catalog:  catalog,
		prefs:    store,
		deviceID: deviceID,
		logger:   slog.Default(),
		lang:     catalog.DefaultLanguage(),
	}
	if code, ok := catalog.Canonicalize(lang); ok {
		l.lang = code
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// ResolveLanguage は端末の初期表示言語を決める。
// 端末に保存された設定、プロフィールの設定、Accept-Language、既定言語の順に採用する。
func ResolveLanguage(ctx context.Context, catalog *Catalog, store prefs.Store, deviceID string, id *model.Identity, acceptLanguage string) string {
	if store != nil && deviceID != "" {
		v, ok, err := store.Get(ctx, PreferenceKey(deviceID))
		if err != nil {
			slog.Warn("failed to read language preference",
				slog.String("device_id", deviceID),
				slog.String("error", err.Error()),
			)
		} else if ok {
			if code, ok := catalog.Canonicalize(v); ok {
				return code
			}
		}
	}

	if id != nil {
		if code, ok := catalog.Canonicalize(id.Language); ok {
			return code
		}
	}

	return catalog.Match(acceptLanguage)
}

// Language は現在の表示言語を返す。
func (l *Localizer) Language() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.lang
}

// Translate は現在の表示言語でキーを翻訳する。
func (l *Localizer) Translate(key string) string {
	return l.catalog.Lookup(l.Language(), key)
}

// TranslateIn は指定した言語でキーを翻訳する。
func (l *Localizer) TranslateIn(lang, key string) string {
	return l.catalog.Lookup(lang, key)
}

// SetLanguage は表示言語を変更し、正規化した言語コードを返す。
// 端末への保存は同期的に行い、プロフィールへの保存は非同期のベストエフォートで行う。
// プロフィールへの保存に失敗しても表示言語は戻さない。
func (l *Localizer) SetLanguage(ctx context.Context, code string) (string, error) {
	lang, ok := l.catalog.Canonicalize(code)
	if !ok {
		return "", model.NewInvalidLanguageError(code)
	}

	l.mu.Lock()
	l.lang = lang
	l.mu.Unlock()

	if l.prefs != nil && l.deviceID != "" {
		if err := l.prefs.Set(ctx, PreferenceKey(l.deviceID), lang); err != nil {
			l.logger.Warn("failed to store language preference",
				slog.String("device_id", l.deviceID),
				slog.String("language", lang),
				slog.String("error", err.Error()),
			)
		}
	}

	if l.saver != nil {
		saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), saveTimeout)
		l.wg.Add(1)
		go func() {
			defer l.wg.Done()
			defer cancel()
			if err := l.saver.SaveLanguage(saveCtx, lang); err != nil {
				l.logger.Warn("failed to save language to profile",
					slog.String("language", lang),
					slog.String("error", err.Error()),
				)
			}
		}()
	}

	return lang, nil
}

// Wait は実行中のプロフィール保存が終わるまで待つ。
func (l *Localizer) Wait() {
	l.wg.Wait()
}

type ctxKey struct{}

// WithLocalizer はコンテキストにLocalizerを設定する。
func WithLocalizer(ctx context.Context, l *Localizer) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext はコンテキストからLocalizerを取得する。
func FromContext(ctx context.Context) (*Localizer, bool) {
	l, ok := ctx.Value(ctxKey{}).(*Localizer)
	return l, ok && l != nil
}
