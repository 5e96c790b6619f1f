package validators

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	pkgerrors "github.com/angelmondragon/pcstore-storefront/pkg/errors"
)

type quantityBody struct {
	ProductID string `json:"productId" validate:"required"`
	Quantity  int    `json:"quantity" validate:"min=0,max=9999"`
}

func TestDecodeJSONBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPut, "/", strings.NewReader(`{"productId":"cpu-1","quantity":3}`))
	var body quantityBody
	if err := DecodeJSONBody(req, &body); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if body.ProductID != "cpu-1" || body.Quantity != 3 {
		t.Fatalf("unexpected body %+v", body)
	}
}

func TestDecodeJSONBodyRejectsUnknownFieldsAndInvalidValues(t *testing.T) {
	req := httptest.NewRequest(http.MethodPut, "/", strings.NewReader(`{"productId":"cpu-1","qty":3}`))
	var body quantityBody
	err := DecodeJSONBody(req, &body)
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for unknown field, got %v", err)
	}

	req = httptest.NewRequest(http.MethodPut, "/", strings.NewReader(`{"quantity":10000}`))
	var invalid quantityBody
	err = DecodeJSONBody(req, &invalid)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	details, ok := typed.Details().(map[string]string)
	if !ok {
		t.Fatalf("expected field details, got %T", typed.Details())
	}
	if details["productId"] != "is required" || details["quantity"] != "must be at most 9999" {
		t.Fatalf("unexpected details %v", details)
	}
}

func TestQueryHelpers(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?q=++rtx+4090++", nil)
	if got := QueryString(req, "q", 5); got != "rtx 4" {
		t.Fatalf("unexpected query value %q", got)
	}
	if _, err := PathParam("  ", "productId", 64); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for blank path param, got %v", err)
	}
	if got, err := PathParam(" cpu-1 ", "productId", 64); err != nil || got != "cpu-1" {
		t.Fatalf("unexpected path param %q %v", got, err)
	}
}

func TestSanitizeStringKeepsRunesIntact(t *testing.T) {
	if got := SanitizeString("  Bàn phím cơ  ", 7); got != "Bàn phí" {
		t.Fatalf("unexpected sanitized value %q", got)
	}
	if got := SanitizeString(" x ", 0); got != "x" {
		t.Fatalf("unexpected sanitized value %q", got)
	}
}

func TestDecodeJSONBodyRejectsEmptyTrailingAndOversizedBodies(t *testing.T) {
	var body quantityBody

	err := DecodeJSONBody(httptest.NewRequest(http.MethodPut, "/", strings.NewReader("")), &body)
	if typed := pkgerrors.As(err); typed == nil || typed.Message() != "request body is required" {
		t.Fatalf("expected empty body error, got %v", err)
	}

	err = DecodeJSONBody(httptest.NewRequest(http.MethodPut, "/", strings.NewReader(`{"productId":"a"}{"productId":"b"}`)), &body)
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected trailing data to be rejected, got %v", err)
	}

	huge := `{"productId":"` + strings.Repeat("x", MaxBodyBytes) + `"}`
	err = DecodeJSONBody(httptest.NewRequest(http.MethodPut, "/", strings.NewReader(huge)), &body)
	if typed := pkgerrors.As(err); typed == nil || typed.Message() != "request body too large" {
		t.Fatalf("expected oversized body error, got %v", err)
	}
}

func TestSanitizeStringDropsControlCharacters(t *testing.T) {
	if got := SanitizeString("rtx\x00 4090\n", 0); got != "rtx 4090" {
		t.Fatalf("unexpected sanitized value %q", got)
	}
}
