package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

type testProductRequest struct {
	Name     string  `json:"name" validate:"required,max=50"`
	Price    float64 `json:"price" validate:"gte=0"`
	Quantity int     `json:"quantity" validate:"gte=0"`
}

func decode(t *testing.T, body string, v interface{}) error {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return DecodeAndValidate(httptest.NewRecorder(), req, v)
}

// Feature: pricebot-chat, Property 21: Required field validation works
func TestProperty_RequiredFieldValidationWorks(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("a missing name is rejected", prop.ForAll(
		func(includeName bool, price float64) bool {
			reqMap := map[string]interface{}{"price": price, "quantity": 1}
			if includeName {
				reqMap["name"] = "Desk Lamp"
			}
			reqBody, _ := json.Marshal(reqMap)

			var req testProductRequest
			err := decode(t, string(reqBody), &req)
			if includeName {
				return err == nil
			}
			return err != nil
		},
		gen.Bool(),
		gen.Float64Range(0, 1000),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

// Feature: pricebot-chat, Property 22: Negative prices and quantities are rejected
func TestProperty_NegativeNumbersRejected(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("price and quantity below zero fail validation", prop.ForAll(
		func(price float64, quantity int) bool {
			reqBody, _ := json.Marshal(map[string]interface{}{"name": "Lamp", "price": price, "quantity": quantity})

			var req testProductRequest
			err := decode(t, string(reqBody), &req)
			return (err == nil) == (price >= 0 && quantity >= 0)
		},
		gen.Float64Range(-100, 100),
		gen.IntRange(-10, 10),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestFormatValidationErrors_UsesJSONNames(t *testing.T) {
	var req testProductRequest
	err := decode(t, `{"name": "`+strings.Repeat("x", 51)+`", "price": -1}`, &req)
	if err == nil {
		t.Fatal("expected validation error")
	}

	got := map[string]string{}
	for _, ve := range FormatValidationErrors(err) {
		got[ve.Field] = ve.Message
	}
	if got["name"] != "Value is too long" {
		t.Errorf("name error = %q", got["name"])
	}
	if got["price"] != "Value must be greater than or equal to 0" {
		t.Errorf("price error = %q", got["price"])
	}
}

func TestDecodeAndValidate_MalformedBodies(t *testing.T) {
	for name, body := range map[string]string{
		"empty":         "",
		"not json":      "{name",
		"unknown field": `{"name": "Lamp", "colour": "red"}`,
		"wrong type":    `{"name": 5}`,
	} {
		t.Run(name, func(t *testing.T) {
			var req testProductRequest
			err := decode(t, body, &req)
			if !errors.Is(err, ErrMalformedBody) {
				t.Errorf("error = %v, want ErrMalformedBody", err)
			}
		})
	}
}

func TestRespondWithDecodeError(t *testing.T) {
	var req testProductRequest
	err := decode(t, `{"price": 1}`, &req)

	w := httptest.NewRecorder()
	RespondWithDecodeError(w, err)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if !bytes.Contains(w.Body.Bytes(), []byte("validation_errors")) {
		t.Errorf("body lacks validation details: %s", w.Body.String())
	}
}
