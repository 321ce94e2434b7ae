package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/diewo77/atelier/internal/httpx"
	"github.com/diewo77/atelier/internal/i18n"
	"github.com/diewo77/atelier/internal/middleware"
	"github.com/diewo77/atelier/internal/services"
	"github.com/diewo77/atelier/internal/validation"
	"github.com/diewo77/atelier/internal/view"
)

var (
	errBadID      = errors.New("invalid_id")
	errBadRequest = errors.New("bad_request")
)

// idParam reads a positive numeric chi URL parameter.
func idParam(r *http.Request, name string) (uint, error) {
	n, err := strconv.ParseUint(chi.URLParam(r, name), 10, 64)
	if err != nil || n == 0 {
		return 0, errBadID
	}
	return uint(n), nil
}

// optUint parses an optional id form value; empty or invalid yields nil.
func optUint(s string) *uint {
	n, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil || n == 0 {
		return nil
	}
	u := uint(n)
	return &u
}

func uints(values []string) []uint {
	out := make([]uint, 0, len(values))
	for _, v := range values {
		if p := optUint(v); p != nil {
			out = append(out, *p)
		}
	}
	return out
}

func checked(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "on", "true", "yes", "oui":
		return true
	}
	return false
}

var clientErrors = []struct {
	err    error
	status int
}{
	{errBadID, http.StatusBadRequest},
	{errBadRequest, http.StatusBadRequest},
	{services.ErrNotFound, http.StatusNotFound},
	{services.ErrNameRequired, http.StatusBadRequest},
	{services.ErrInvalidPrice, http.StatusBadRequest},
	{services.ErrInvalidQuantity, http.StatusBadRequest},
	{services.ErrInvalidStatus, http.StatusBadRequest},
	{services.ErrInvalidDate, http.StatusBadRequest},
	{services.ErrNoLines, http.StatusBadRequest},
	{services.ErrDuplicate, http.StatusConflict},
	{services.ErrConversionAlreadyApplied, http.StatusConflict},
}

// classify maps a service error to an HTTP status, an error code and optional details.
func classify(err error) (int, string, any) {
	var verr *services.ValidationError
	if errors.As(err, &verr) {
		return http.StatusBadRequest, "validation_failed", verr.Violations
	}
	for _, ce := range clientErrors {
		if errors.Is(err, ce.err) {
			return ce.status, ce.err.Error(), nil
		}
	}
	return http.StatusInternalServerError, "internal_error", nil
}

// describe renders violations as "field: message" pairs for flash messages.
func describe(r *http.Request, details any) string {
	v, ok := details.(validation.Violations)
	if !ok || v.Empty() {
		return ""
	}
	lang := middleware.LangFrom(r)
	parts := make([]string, 0, len(v))
	for field, code := range v {
		parts = append(parts, field+": "+i18n.T(lang, code))
	}
	sort.Strings(parts)
	return strings.Join(parts, ", ")
}

// fail answers an error as JSON, or as a danger flash and a redirect to back for forms.
func fail(w http.ResponseWriter, r *http.Request, log *zap.Logger, err error, back string) {
	status, code, details := classify(err)
	if status >= http.StatusInternalServerError {
		log.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
	}
	if httpx.WantsJSON(r) {
		httpx.JSONError(w, status, code, details)
		return
	}
	if back == "" || r.Method == http.MethodGet {
		http.Error(w, i18n.T(middleware.LangFrom(r), code), status)
		return
	}
	if extra := describe(r, details); extra != "" {
		middleware.Flash(w, r, middleware.FlashDanger, code, extra)
	} else {
		middleware.Flash(w, r, middleware.FlashDanger, code)
	}
	http.Redirect(w, r, back, http.StatusSeeOther)
}

// done answers a successful mutation: payload as JSON, or a flash and a redirect.
func done(w http.ResponseWriter, r *http.Request, status int, payload any, level, code, back string) {
	if httpx.WantsJSON(r) {
		httpx.JSON(w, status, payload)
		return
	}
	middleware.Flash(w, r, level, code)
	http.Redirect(w, r, back, http.StatusSeeOther)
}

// page renders an HTML page or the JSON payload when asked for JSON.
func page(views *view.Renderer, w http.ResponseWriter, r *http.Request, log *zap.Logger, name string, data map[string]any, payload any) {
	if httpx.WantsJSON(r) {
		httpx.JSON(w, http.StatusOK, payload)
		return
	}
	if err := views.Render(w, r, name, data); err != nil {
		log.Error("render failed", zap.String("template", name), zap.Error(err))
		http.Error(w, "template render error", http.StatusInternalServerError)
	}
}

// backTo returns the referring page when it is local, else fallback.
func backTo(r *http.Request, fallback string) string {
	if ref := r.Header.Get("Referer"); ref != "" {
		if i := strings.Index(ref, "://"); i >= 0 {
			rest := ref[i+3:]
			if j := strings.Index(rest, "/"); j >= 0 && strings.EqualFold(rest[:j], r.Host) {
				return rest[j:]
			}
			return fallback
		}
		if strings.HasPrefix(ref, "/") && !strings.HasPrefix(ref, "//") {
			return ref
		}
	}
	return fallback
}

// readForm returns the submitted fields. A JSON object body is flattened into the same
// url.Values shape as a form post, so handlers share one parsing path.
func readForm(r *http.Request) (url.Values, error) {
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		if err := r.ParseMultipartForm(32 << 20); err != nil && !errors.Is(err, http.ErrNotMultipart) {
			return nil, fmt.Errorf("%w: %v", errBadRequest, err)
		}
		return r.Form, nil
	}
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: %v", errBadRequest, err)
	}
	out := url.Values{}
	for k, v := range body {
		switch x := v.(type) {
		case nil:
		case []any:
			for _, e := range x {
				out.Add(k, scalar(e))
			}
		default:
			out.Set(k, scalar(x))
		}
	}
	return out, nil
}

func scalar(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case bool:
		if x {
			return "1"
		}
		return "0"
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case nil:
		return ""
	}
	b, _ := json.Marshal(v)
	return string(b)
}

func writeJSON(w http.ResponseWriter, v any) {
	httpx.JSON(w, http.StatusOK, v)
}

func wantsJSON(r *http.Request) bool { return httpx.WantsJSON(r) }
