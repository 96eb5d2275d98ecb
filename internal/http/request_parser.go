// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for parsing and validating HTTP request data.
// Submissions arrive either as JSON or as form-encoded bodies.

package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"monthbook/internal/core"
	"monthbook/internal/services"
)

const maxBodyBytes = 64 << 10

var errEmptyBody = errors.New("request body is empty")

// flexString accepts a JSON string or number and keeps its literal text.
// Amounts are never routed through float64.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", data)
	}
	*f = flexString(n.String())
	return nil
}

type submitBody struct {
	UserID   string     `json:"userId"`
	Type     string     `json:"type"`
	Amount   flexString `json:"amount"`
	Category string     `json:"category"`
	Month    flexString `json:"month"`
	Year     flexString `json:"year"`
	Date     string     `json:"date"`
}

// ParseSubmitRequest decodes a transaction submission. The returned error
// describes a malformed body, or is a core.ValidationError for a field
// carrying control characters; all other field validation is left to the
// service.
func ParseSubmitRequest(w http.ResponseWriter, r *http.Request) (services.SubmitRequest, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return services.SubmitRequest{}, fmt.Errorf("request body exceeds %d bytes", tooLarge.Limit)
		}
		return services.SubmitRequest{}, fmt.Errorf("read request body: %w", err)
	}
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return services.SubmitRequest{}, errEmptyBody
	}

	if isJSON(r.Header.Get("Content-Type"), body) {
		return parseJSONSubmit(body)
	}
	return parseFormSubmit(body)
}

func isJSON(contentType string, body []byte) bool {
	if strings.HasPrefix(strings.ToLower(contentType), "application/json") {
		return true
	}
	return body[0] == '{'
}

func parseJSONSubmit(body []byte) (services.SubmitRequest, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()

	var in submitBody
	if err := dec.Decode(&in); err != nil {
		return services.SubmitRequest{}, fmt.Errorf("malformed JSON body: %w", err)
	}
	if dec.More() {
		return services.SubmitRequest{}, errors.New("malformed JSON body: trailing data")
	}

	req := services.SubmitRequest{
		UserID:   in.UserID,
		Type:     in.Type,
		Amount:   string(in.Amount),
		Category: in.Category,
		Month:    string(in.Month),
		Year:     string(in.Year),
		Date:     in.Date,
	}
	return req, cleanRequest(&req)
}

func parseFormSubmit(body []byte) (services.SubmitRequest, error) {
	form, err := url.ParseQuery(string(body))
	if err != nil {
		return services.SubmitRequest{}, fmt.Errorf("malformed form body: %w", err)
	}
	req := services.SubmitRequest{
		UserID:   form.Get("userId"),
		Type:     form.Get("type"),
		Amount:   form.Get("amount"),
		Category: form.Get("category"),
		Month:    form.Get("month"),
		Year:     form.Get("year"),
		Date:     form.Get("date"),
	}
	return req, cleanRequest(&req)
}

// cleanRequest trims every field and rejects any that still carries control
// characters. Fields are never shortened or rewritten beyond the trim, so two
// distinct inputs cannot collapse into the same value.
func cleanRequest(req *services.SubmitRequest) error {
	fields := []struct {
		name  string
		value *string
	}{
		{"userId", &req.UserID},
		{"type", &req.Type},
		{"amount", &req.Amount},
		{"category", &req.Category},
		{"month", &req.Month},
		{"year", &req.Year},
		{"date", &req.Date},
	}
	for _, f := range fields {
		v, err := clean(f.name, *f.value)
		if err != nil {
			return err
		}
		*f.value = v
	}
	return nil
}

func clean(field, s string) (string, error) {
	s = strings.TrimSpace(s)
	if hasControlChars(s) {
		return "", core.NewValidationError(field, "contains control characters")
	}
	return s, nil
}

func hasControlChars(s string) bool {
	for _, r := range s {
		if r < 0x20 || r == 0x7f {
			return true
		}
	}
	return false
}
