package view

import (
	"bytes"
	"html"
	"html/template"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"path"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestTemplatesParse(t *testing.T) {
	names, err := fs.Glob(files, "templates/*.html")
	if err != nil {
		t.Fatal(err)
	}
	if len(names) < 2 {
		t.Fatalf("templates not embedded: %v", names)
	}
	for _, n := range names {
		name := path.Base(n)
		if name == "layout.html" {
			continue
		}
		if _, err := parse(name); err != nil {
			t.Errorf("%s: %v", name, err)
		}
	}
}

func TestFormatMoney(t *testing.T) {
	d := decimal.RequireFromString("12.5")
	cases := []struct {
		in   any
		want string
	}{
		{d, "12,50 €"},
		{decimal.NewNullDecimal(d), "12,50 €"},
		{decimal.NullDecimal{}, "-"},
		{(*decimal.Decimal)(nil), "-"},
		{&d, "12,50 €"},
		{"x", "x"},
	}
	for _, c := range cases {
		if got := formatMoney(c.in); got != c.want {
			t.Errorf("formatMoney(%v) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestFuncs(t *testing.T) {
	day := time.Date(2026, 3, 12, 0, 0, 0, 0, time.UTC)
	var id uint = 7
	tpl := template.Must(template.New("x").Funcs(Funcs(nil)).Parse(
		`{{date .Day}}|{{iso .Day}}|{{date .Nil}}|{{deref .ID}}|{{deref .NoID}}|{{add 1 2}}|{{done "Terminée"}}|<a href="{{link .SMS}}">`))
	var buf bytes.Buffer
	err := tpl.Execute(&buf, map[string]any{
		"Day":  day,
		"Nil":  (*time.Time)(nil),
		"ID":   &id,
		"NoID": (*uint)(nil),
		"SMS":  "sms:+33612345678?body=Bonjour",
	})
	if err != nil {
		t.Fatal(err)
	}
	want := `12/03/2026|2026-03-12||7|0|3|true|<a href="sms:+33612345678?body=Bonjour">`
	// attribute values come out entity-escaped ("+" as "&#43;"); browsers decode them back
	if got := html.UnescapeString(buf.String()); got != want {
		t.Errorf("got  %s\nwant %s", got, want)
	}
}

func TestRenderWrapsPageInLayout(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/clients", nil)
	rec := httptest.NewRecorder()
	err := New(Config{ShopName: "Atelier Test"}).Render(rec, req, "clients.html", map[string]any{"Title": "Clients", "Query": ""})
	if err != nil {
		t.Fatal(err)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("content type %q", ct)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "<title>Clients · Atelier Test</title>") {
		t.Errorf("layout title missing:\n%s", body)
	}
}

func TestRenderUnknownTemplate(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if err := New(Config{}).Render(httptest.NewRecorder(), req, "missing.html", nil); err == nil {
		t.Fatal("want an error for a missing template")
	}
}

func TestRendererCache(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/clients", nil)
	data := func() map[string]any { return map[string]any{"Query": ""} }

	cached := New(Config{})
	if err := cached.Render(httptest.NewRecorder(), req, "clients.html", data()); err != nil {
		t.Fatal(err)
	}
	if _, ok := cached.cache["clients.html"]; !ok {
		t.Error("template not cached")
	}

	dev := New(Config{Dev: true})
	if err := dev.Render(httptest.NewRecorder(), req, "clients.html", data()); err != nil {
		t.Fatal(err)
	}
	if len(dev.cache) != 0 {
		t.Error("dev renderer should reparse templates")
	}
}
