package i18n

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/hitoshi/churchdash/internal/model"
	"github.com/hitoshi/churchdash/internal/prefs"
)

type mockSaver struct {
	mu    sync.Mutex
	saved []string
	err   error
}

func (m *mockSaver) SaveLanguage(ctx context.Context, lang string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved = append(m.saved, lang)
	return m.err
}

type failingPrefs struct{}

func (failingPrefs) Get(context.Context, string) (string, bool, error) {
	return "", false, errors.New("redis down")
}

func (failingPrefs) Set(context.Context, string, string) error {
	return errors.New("redis down")
}

func TestNewLocalizer_InvalidLanguageFallsBackToDefault(t *testing.T) {
	c := loadEmbedded(t)

	l := NewLocalizer(c, nil, "", "xx")
	if got := l.Language(); got != DefaultLanguage {
		t.Errorf("Language() = %q, want %q", got, DefaultLanguage)
	}
	if got := l.Translate("nav.dashboard"); got != "Dashboard" {
		t.Errorf("Translate() = %q", got)
	}
}

func TestLocalizer_TranslateIn(t *testing.T) {
	c := loadEmbedded(t)
	l := NewLocalizer(c, nil, "", "en")

	if got := l.TranslateIn("de", "nav.settings"); got != "Einstellungen" {
		t.Errorf("TranslateIn(de) = %q, want Einstellungen", got)
	}
	if got := l.Language(); got != "en" {
		t.Errorf("TranslateIn changed language to %q", got)
	}
}

func TestLocalizer_SetLanguage_RoundTrip(t *testing.T) {
	c := loadEmbedded(t)
	store := prefs.NewMemoryStore(0)
	saver := &mockSaver{}
	l := NewLocalizer(c, store, "device-1", "en", WithSaver(saver))

	got, err := l.SetLanguage(context.Background(), "FR")
	if err != nil {
		t.Fatalf("SetLanguage() error = %v", err)
	}
	l.Wait()

	if got != "fr" {
		t.Errorf("SetLanguage() = %q, want fr", got)
	}
	if l.Language() != "fr" {
		t.Errorf("Language() = %q, want fr", l.Language())
	}
	if l.Translate("nav.settings") != "Paramètres" {
		t.Errorf("Translate() = %q", l.Translate("nav.settings"))
	}

	v, ok, _ := store.Get(context.Background(), PreferenceKey("device-1"))
	if !ok || v != "fr" {
		t.Errorf("stored preference = %q, %v; want fr", v, ok)
	}
	if len(saver.saved) != 1 || saver.saved[0] != "fr" {
		t.Errorf("saved = %v, want [fr]", saver.saved)
	}

	// 新しいリクエストでも端末の設定が優先される
	if lang := ResolveLanguage(context.Background(), c, store, "device-1", nil, "de"); lang != "fr" {
		t.Errorf("ResolveLanguage() = %q, want fr", lang)
	}
}

func TestLocalizer_SetLanguage_Invalid(t *testing.T) {
	c := loadEmbedded(t)
	saver := &mockSaver{}
	l := NewLocalizer(c, prefs.NewMemoryStore(0), "device-1", "es", WithSaver(saver))

	_, err := l.SetLanguage(context.Background(), "klingon-ish")
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeInvalidLanguage {
		t.Fatalf("error = %v, want INVALID_LANGUAGE", err)
	}
	l.Wait()
	if l.Language() != "es" {
		t.Errorf("Language() = %q, want unchanged es", l.Language())
	}
	if len(saver.saved) != 0 {
		t.Errorf("saved = %v, want none", saver.saved)
	}
}

func TestLocalizer_SetLanguage_SaveFailureIsOnlyLogged(t *testing.T) {
	c := loadEmbedded(t)
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	saver := &mockSaver{err: errors.New("profile store down")}
	l := NewLocalizer(c, failingPrefs{}, "device-1", "en", WithSaver(saver), WithLogger(logger))

	got, err := l.SetLanguage(context.Background(), "de")
	if err != nil {
		t.Fatalf("SetLanguage() error = %v", err)
	}
	l.Wait()

	if got != "de" || l.Language() != "de" {
		t.Errorf("language = %q/%q, want de", got, l.Language())
	}
	out := buf.String()
	if !strings.Contains(out, "failed to save language to profile") {
		t.Errorf("log output lacks profile save failure: %s", out)
	}
	if !strings.Contains(out, "failed to store language preference") {
		t.Errorf("log output lacks preference failure: %s", out)
	}
}

func TestLocalizer_SetLanguage_WithoutSaver(t *testing.T) {
	c := loadEmbedded(t)
	l := NewLocalizer(c, nil, "", "en")

	if _, err := l.SetLanguage(context.Background(), "pt"); err != nil {
		t.Fatalf("SetLanguage() error = %v", err)
	}
	l.Wait()
	if l.Language() != "pt" {
		t.Errorf("Language() = %q, want pt", l.Language())
	}
}

func TestResolveLanguage_Order(t *testing.T) {
	c := loadEmbedded(t)
	ctx := context.Background()

	withPref := prefs.NewMemoryStore(0)
	_ = withPref.Set(ctx, PreferenceKey("device-1"), "es")
	withBadPref := prefs.NewMemoryStore(0)
	_ = withBadPref.Set(ctx, PreferenceKey("device-1"), "zz-invalid")

	identity := &model.Identity{ID: "user-1", Language: "de"}

	tests := []struct {
		name   string
		store  prefs.Store
		id     *model.Identity
		accept string
		want   string
	}{
		{name: "端末の設定", store: withPref, id: identity, accept: "fr", want: "es"},
		{name: "プロフィールの設定", store: prefs.NewMemoryStore(0), id: identity, accept: "fr", want: "de"},
		{name: "Accept-Language", store: prefs.NewMemoryStore(0), accept: "fr-CA,fr;q=0.9", want: "fr"},
		{name: "既定言語", store: prefs.NewMemoryStore(0), want: "en"},
		{name: "不正な端末の設定は無視", store: withBadPref, id: identity, want: "de"},
		{name: "読み込み失敗は無視", store: failingPrefs{}, accept: "pt", want: "pt"},
		{name: "プロフィールの不正な言語は無視", store: nil, id: &model.Identity{Language: "??"}, accept: "de", want: "de"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ResolveLanguage(ctx, c, tt.store, "device-1", tt.id, tt.accept); got != tt.want {
				t.Errorf("ResolveLanguage() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFromContext(t *testing.T) {
	c := loadEmbedded(t)

	if _, ok := FromContext(context.Background()); ok {
		t.Error("expected no localizer in empty context")
	}

	l := NewLocalizer(c, nil, "", "fr")
	got, ok := FromContext(WithLocalizer(context.Background(), l))
	if !ok || got != l {
		t.Error("expected the stored localizer")
	}
}
