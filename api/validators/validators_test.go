package validators

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	pkgerrors "github.com/thevault/register/pkg/errors"
)

type submitBody struct {
	PaymentMethod string `json:"payment_method" validate:"required,payment_method"`
}

func TestDecodeJSONBodyValidates(t *testing.T) {
	var ok submitBody
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"payment_method":"mobile_money"}`))
	if err := DecodeJSONBody(req, &ok); err != nil {
		t.Fatalf("decode: %v", err)
	}

	for _, body := range []string{`{"payment_method":"bitcoin"}`, `{}`, `{"payment_method":"cash","extra":1}`, `{`} {
		var dest submitBody
		err := DecodeJSONBody(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body)), &dest)
		if pkgerrors.CodeOf(err) != pkgerrors.CodeValidation {
			t.Fatalf("%s: expected validation error, got %v", body, err)
		}
	}
}

func TestDecodeJSONBodyAcceptsEmptyBody(t *testing.T) {
	var dest struct {
		Text string `json:"text"`
	}
	if err := DecodeJSONBody(httptest.NewRequest(http.MethodPost, "/", nil), &dest); err != nil {
		t.Fatalf("empty body: %v", err)
	}
}

func TestParseQueryHelpers(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?page=3&bad=x&from=2025-05-01&to=05/01/2025", nil)
	if v, err := ParseQueryInt(req, "page", 1, 1, 10); err != nil || v != 3 {
		t.Fatalf("page: %d %v", v, err)
	}
	if v, err := ParseQueryInt(req, "missing", 5, 1, 10); err != nil || v != 5 {
		t.Fatalf("default: %d %v", v, err)
	}
	if _, err := ParseQueryInt(req, "bad", 1, 1, 10); err == nil {
		t.Fatal("expected numeric error")
	}
	if d, err := ParseQueryDate(req, "from"); err != nil || d.Day() != 1 {
		t.Fatalf("from: %v %v", d, err)
	}
	if _, err := ParseQueryDate(req, "to"); err == nil {
		t.Fatal("expected date format error")
	}
}

func TestParsePathID(t *testing.T) {
	for raw, valid := range map[string]bool{"42": true, "0": false, "abc": false} {
		rc := chi.NewRouteContext()
		rc.URLParams.Add("saleID", raw)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))
		_, err := ParsePathID(req, "saleID")
		if (err == nil) != valid {
			t.Fatalf("%s: valid=%v err=%v", raw, valid, err)
		}
	}
}

func TestSanitizeStringCapsRunes(t *testing.T) {
	if got := SanitizeString("  Njeri Wambüi  ", 12); got != "Njeri Wambüi" {
		t.Fatalf("unexpected %q", got)
	}
	if got := SanitizeString("Wambüi", 5); got != "Wambü" {
		t.Fatalf("unexpected %q", got)
	}
}
