package money

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/walletdesk/walletdesk/internal/walletapi"
)

func TestParseAmount(t *testing.T) {
	cases := map[string]string{
		"100":        "100.00",
		"25.5":       "25.50",
		" 74.50 ":    "74.50",
		"$1,250.00":  "1250.00",
		"10.005":     "10.01",
		"0.004999":   "0.00",
		".5":         "0.50",
		"12.":        "12.00",
		"USD 3.14":   "3.14",
		"EUR 5":      "5.00",
		"0.10000000": "0.10",
		"1e2":        "100.00",
		"2.5E1":      "25.00",
		"1.5e-1":     "0.15",
	}
	for in, want := range cases {
		got, err := ParseAmount(in)
		if want == "0.00" {
			if !errors.Is(err, walletapi.ErrValidation) {
				t.Fatalf("ParseAmount(%q): expected validation error, got %v", in, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParseAmount(%q): %v", in, err)
		}
		if Format(got) != want {
			t.Fatalf("ParseAmount(%q) = %s, want %s", in, Format(got), want)
		}
	}
}

func TestParseAmountRejects(t *testing.T) {
	for _, in := range []string{"", "abc", "NaN", "Infinity", "-5", "0", "0.00", "1.2.3", "5-3", "-", ".", "99999999999999999", "1e17", "1e999999999", "1e-999999999", "1e9999999999", "$1e99999999999", "-1e2"} {
		if _, err := ParseAmount(in); !errors.Is(err, walletapi.ErrValidation) {
			t.Fatalf("ParseAmount(%q): expected validation error, got %v", in, err)
		}
	}
}

func TestNormalizeCurrency(t *testing.T) {
	got, err := NormalizeCurrency(" usd ")
	if err != nil || got != "USD" {
		t.Fatalf("NormalizeCurrency: got %q, %v", got, err)
	}
	for _, in := range []string{"", "US", "USDT", "U$D"} {
		if _, err := NormalizeCurrency(in); !errors.Is(err, walletapi.ErrValidation) {
			t.Fatalf("NormalizeCurrency(%q): expected validation error, got %v", in, err)
		}
	}
}

func TestInputAcceptsNumbersAndStrings(t *testing.T) {
	var payload struct {
		A Input `json:"a"`
		B Input `json:"b"`
		C Input `json:"c"`
	}
	if err := json.Unmarshal([]byte(`{"a": 12.5, "b": "$3.00", "c": null}`), &payload); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if payload.A != "12.5" || payload.B != "$3.00" || payload.C != "" {
		t.Fatalf("unexpected decode: %+v", payload)
	}
}

func TestInputNumberWithExponent(t *testing.T) {
	var payload struct {
		Amount Input `json:"amount"`
	}
	if err := json.Unmarshal([]byte(`{"amount": 1e2}`), &payload); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	got, err := ParseAmount(payload.Amount.String())
	if err != nil {
		t.Fatalf("ParseAmount(%q): %v", payload.Amount, err)
	}
	if Format(got) != "100.00" {
		t.Fatalf("amount = %s, want 100.00", Format(got))
	}
}

func TestInputRejectsNonNumbers(t *testing.T) {
	for _, body := range []string{`{"amount": true}`, `{"amount": {"value": 5}}`, `{"amount": [5]}`} {
		var payload struct {
			Amount Input `json:"amount"`
		}
		if err := json.Unmarshal([]byte(body), &payload); err == nil {
			t.Fatalf("unmarshal %s: expected error, got amount %q", body, payload.Amount)
		}
	}
}
