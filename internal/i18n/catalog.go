// Package i18n は画面表示用の翻訳テーブルと言語設定を扱う。
package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

// DefaultLanguage は翻訳が見つからない場合に使う言語。
const DefaultLanguage = "en"

//go:embed locales/*.yaml languages.yaml
var embeddedFS embed.FS

// Language は選択可能な言語を表す。
type Language struct {
	Code       string `yaml:"code" json:"code"`
	Name       string `yaml:"name" json:"name"`
	NativeName string `yaml:"native_name" json:"native_name"`
}

type localeFile struct {
	Language string            `yaml:"language"`
	Messages map[string]string `yaml:"messages"`
}

type languagesFile struct {
	Languages []Language `yaml:"languages"`
}

// Catalog は言語ごとの翻訳テーブルを保持する。
// 読み込み後は変更されないため、並行に利用してよい。
type Catalog struct {
	defaultLang string
	tables      map[string]map[string]string
	languages   []Language
	selectable  map[string]struct{}
	supported   []language.Tag
	matcher     language.Matcher
}

// LoadEmbedded は組み込みの翻訳テーブルを読み込む。
func LoadEmbedded(defaultLang string) (*Catalog, error) {
	return LoadFromFS(embeddedFS, defaultLang)
}

// LoadFromFS はファイルシステムから翻訳テーブルを読み込む。
// locales/<言語>.yaml と languages.yaml が必要。既定言語のテーブルがない場合はエラーを返す。
func LoadFromFS(fsys fs.FS, defaultLang string) (*Catalog, error) {
	if defaultLang == "" {
		defaultLang = DefaultLanguage
	}

	paths, err := fs.Glob(fsys, "locales/*.yaml")
	if err != nil {
		return nil, fmt.Errorf("failed to glob locale files: %w", err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no locale files found")
	}
	sort.Strings(paths)

	c := &Catalog{
		defaultLang: defaultLang,
		tables:      make(map[string]map[string]string, len(paths)),
		selectable:  make(map[string]struct{}),
	}

	for _, p := range paths {
		data, err := fs.ReadFile(fsys, p)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", p, err)
		}
		var f localeFile
		if err := yaml.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", p, err)
		}
		lang := strings.TrimSpace(f.Language)
		if lang == "" {
			return nil, fmt.Errorf("%s: language is required", p)
		}
		if _, exists := c.tables[lang]; exists {
			return nil, fmt.Errorf("%s: language %q already defined", p, lang)
		}
		c.tables[lang] = f.Messages
	}
	if _, ok := c.tables[defaultLang]; !ok {
		return nil, fmt.Errorf("default language %q has no locale file", defaultLang)
	}

	data, err := fs.ReadFile(fsys, "languages.yaml")
	if err != nil {
		return nil, fmt.Errorf("failed to read languages.yaml: %w", err)
	}
	var lf languagesFile
	if err := yaml.Unmarshal(data, &lf); err != nil {
		return nil, fmt.Errorf("failed to parse languages.yaml: %w", err)
	}

	// 既定言語を先頭に置くとマッチしなかった場合の結果になる
	c.supported = append(c.supported, language.Make(defaultLang))
	for _, l := range lf.Languages {
		tag, err := language.Parse(l.Code)
		if err != nil {
			return nil, fmt.Errorf("languages.yaml: invalid code %q: %w", l.Code, err)
		}
		c.languages = append(c.languages, l)
		c.selectable[l.Code] = struct{}{}
		if l.Code != defaultLang {
			c.supported = append(c.supported, tag)
		}
	}
	if _, ok := c.selectable[defaultLang]; !ok {
		return nil, fmt.Errorf("default language %q is not selectable", defaultLang)
	}
	c.matcher = language.NewMatcher(c.supported)

	return c, nil
}

// DefaultLanguage は既定言語のコードを返す。
func (c *Catalog) DefaultLanguage() string {
	return c.defaultLang
}

// Languages は選択可能な言語の一覧を返す。
func (c *Catalog) Languages() []Language {
	out := make([]Language, len(c.languages))
	copy(out, c.languages)
	return out
}

// HasTable は言語（またはその基本言語）の翻訳テーブルがあるかどうかを返す。
func (c *Catalog) HasTable(lang string) bool {
	_, ok := c.table(lang)
	return ok
}

// Lookup はキーの翻訳を返す。常に何らかの文字列を返す。
// 言語のテーブル、基本言語のテーブル（pt-BR → pt）、既定言語のテーブルの順に探し、
// どれにもなければキーそのものを返す。
func (c *Catalog) Lookup(lang, key string) string {
	if t, ok := c.table(lang); ok {
		if v, ok := t[key]; ok {
			return v
		}
	}
	if v, ok := c.tables[c.defaultLang][key]; ok {
		return v
	}
	return key
}

// Table は言語の翻訳テーブルを既定言語で補完して返す。クライアントへの配信用。
func (c *Catalog) Table(lang string) map[string]string {
	base := c.tables[c.defaultLang]
	out := make(map[string]string, len(base))
	for k, v := range base {
		out[k] = v
	}
	if t, ok := c.table(lang); ok {
		for k, v := range t {
			out[k] = v
		}
	}
	return out
}

// Canonicalize は言語コードを正規化し、選択可能な言語であればそのコードを返す。
// 地域付きのコードは、一覧にあればそのまま、なければ基本言語に丸める。
func (c *Catalog) Canonicalize(code string) (string, bool) {
	code = strings.TrimSpace(code)
	if code == "" {
		return "", false
	}
	tag, err := language.Parse(code)
	if err != nil {
		return "", false
	}
	if s := tag.String(); c.isSelectable(s) {
		return s, true
	}
	base, _ := tag.Base()
	if s := base.String(); c.isSelectable(s) {
		return s, true
	}
	return "", false
}

// Match はAccept-Languageヘッダーに最も合う選択可能な言語を返す。
// 解析できない場合や一致しない場合は既定言語を返す。
func (c *Catalog) Match(acceptLanguage string) string {
	acceptLanguage = strings.TrimSpace(acceptLanguage)
	if acceptLanguage == "" {
		return c.defaultLang
	}
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return c.defaultLang
	}
	_, idx, conf := c.matcher.Match(tags...)
	if conf == language.No {
		return c.defaultLang
	}
	if code, ok := c.Canonicalize(c.supported[idx].String()); ok {
		return code
	}
	return c.defaultLang
}

func (c *Catalog) isSelectable(code string) bool {
	_, ok := c.selectable[code]
	return ok
}

func (c *Catalog) table(lang string) (map[string]string, bool) {
	if t, ok := c.tables[lang]; ok {
		return t, true
	}
	tag, err := language.Parse(lang)
	if err != nil {
		return nil, false
	}
	base, _ := tag.Base()
	t, ok := c.tables[base.String()]
	return t, ok
}
