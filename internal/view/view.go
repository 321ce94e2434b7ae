// Package view renders the HTML pages from the embedded templates.
package view

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/diewo77/atelier/internal/i18n"
	"github.com/diewo77/atelier/internal/middleware"
	"github.com/diewo77/atelier/internal/models"
)

//go:embed templates/*.html
var files embed.FS

// Config holds the display settings of the pages.
type Config struct {
	Dev      bool // reparse templates on every render
	ShopName string
}

// Renderer renders the pages with a fixed Config. Parsed templates are cached unless Dev is set.
type Renderer struct {
	cfg   Config
	mu    sync.RWMutex
	cache map[string]*template.Template
}

func New(cfg Config) *Renderer {
	if cfg.ShopName == "" {
		cfg.ShopName = "Paula Couture"
	}
	return &Renderer{cfg: cfg, cache: map[string]*template.Template{}}
}

const dateFR = "02/01/2006"

func formatMoney(v any) string {
	var d decimal.Decimal
	switch x := v.(type) {
	case decimal.Decimal:
		d = x
	case decimal.NullDecimal:
		if !x.Valid {
			return "-"
		}
		d = x.Decimal
	case *decimal.Decimal:
		if x == nil {
			return "-"
		}
		d = *x
	default:
		return fmt.Sprint(v)
	}
	return strings.Replace(d.StringFixed(2), ".", ",", 1) + " €"
}

func asTime(v any) (time.Time, bool) {
	switch x := v.(type) {
	case time.Time:
		return x, !x.IsZero()
	case *time.Time:
		if x == nil {
			return time.Time{}, false
		}
		return *x, !x.IsZero()
	}
	return time.Time{}, false
}

// Funcs returns the func map bound to the request language.
func Funcs(r *http.Request) template.FuncMap {
	lang := "fr"
	theme := "system"
	if r != nil {
		lang = middleware.LangFrom(r)
		theme = middleware.ThemeFrom(r)
	}
	return template.FuncMap{
		"t":     func(code string) string { return i18n.T(lang, code) },
		"lang":  func() string { return lang },
		"theme": func() string { return theme },
		"year":  func() int { return time.Now().Year() },
		"money": formatMoney,
		"date": func(v any) string {
			if t, ok := asTime(v); ok {
				return t.Format(dateFR)
			}
			return ""
		},
		"iso": func(v any) string {
			if t, ok := asTime(v); ok {
				return t.Format(models.DateLayout)
			}
			return ""
		},
		"add": func(a, b int) int { return a + b },
		"deref": func(p *uint) uint {
			if p == nil {
				return 0
			}
			return *p
		},
		// link marks sms: and tel: deep links built by the notify package as safe.
		"link": func(s string) template.URL { return template.URL(s) },
		"join": strings.Join,
		"done": func(status string) bool { return status == models.StatusDone },
		// dict creates a map from key-value pairs for passing to sub-templates.
		"dict": func(values ...any) map[string]any {
			if len(values)%2 != 0 {
				return nil
			}
			m := make(map[string]any, len(values)/2)
			for i := 0; i < len(values); i += 2 {
				key, ok := values[i].(string)
				if !ok {
					continue
				}
				m[key] = values[i+1]
			}
			return m
		},
	}
}

func parse(name string) (*template.Template, error) {
	return template.New("layout.html").Funcs(Funcs(nil)).ParseFS(files, "templates/layout.html", "templates/"+name)
}

func (v *Renderer) lookup(name string) (*template.Template, error) {
	if !v.cfg.Dev {
		v.mu.RLock()
		t, ok := v.cache[name]
		v.mu.RUnlock()
		if ok {
			return t, nil
		}
	}
	t, err := parse(name)
	if err != nil {
		return nil, err
	}
	if !v.cfg.Dev {
		v.mu.Lock()
		v.cache[name] = t
		v.mu.Unlock()
	}
	return t, nil
}

// Render executes templates/<name> inside the layout. Output is buffered so a template
// error never leaves a half-written page.
func (v *Renderer) Render(w http.ResponseWriter, r *http.Request, name string, data map[string]any) error {
	base, err := v.lookup(name)
	if err != nil {
		return err
	}
	t, err := base.Clone()
	if err != nil {
		return err
	}
	t.Funcs(Funcs(r))

	if data == nil {
		data = map[string]any{}
	}
	if _, ok := data["Shop"]; !ok {
		data["Shop"] = v.cfg.ShopName
	}
	if _, ok := data["Flash"]; !ok {
		data["Flash"] = middleware.ReadFlash(w, r)
	}
	data["Path"] = r.URL.Path

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout.html", data); err != nil {
		return err
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, err = buf.WriteTo(w)
	return err
}
