// Package http provides HTTP server and handler implementations.
//
// This file implements the Builder Pattern for constructing JSON responses
// and the wire representation of ledgers.

package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"monthbook/internal/core"
	"monthbook/internal/services"
)

// JSONResponseBuilder provides a fluent API for building JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	body       interface{}
	headers    map[string]string
}

// NewJSONResponse creates a new response builder with default 200 status.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

// Status sets the HTTP status code for the response.
func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

// Header adds a custom header to the response.
func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

// Body sets the value encoded as the response body.
func (b *JSONResponseBuilder) Body(v interface{}) *JSONResponseBuilder {
	b.body = v
	return b
}

// Write sends the built response to the http.ResponseWriter.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}

	if b.body == nil {
		w.WriteHeader(b.statusCode)
		return
	}

	payload, err := json.Marshal(b.body)
	if err != nil {
		slog.Error("Failed to encode response", "error", err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(b.statusCode)
	_, _ = w.Write(payload)
	_, _ = w.Write([]byte("\n"))
}

type errorBody struct {
	Error  string `json:"error"`
	Field  string `json:"field,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// ErrorResponse creates a standard JSON error response.
func ErrorResponse(statusCode int, message string) *JSONResponseBuilder {
	return NewJSONResponse().
		Status(statusCode).
		Body(errorBody{Error: message})
}

// ValidationErrorResponse creates a 422 response naming the offending field.
func ValidationErrorResponse(ve *core.ValidationError) *JSONResponseBuilder {
	return NewJSONResponse().
		Status(http.StatusUnprocessableEntity).
		Body(errorBody{Error: ve.Error(), Field: ve.Field, Reason: ve.Reason})
}

// BadRequestError creates a 400 Bad Request error response.
func BadRequestError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message)
}

// InternalServerError creates a 500 Internal Server Error response.
func InternalServerError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, message)
}

// Amounts are rendered as JSON numbers carrying the exact decimal text.
func amount(d decimal.Decimal) json.Number {
	return json.Number(d.String())
}

type calculationsResponse struct {
	TotalIncome   json.Number `json:"totalIncome"`
	TotalExpense  json.Number `json:"totalExpense"`
	CurrentAmount json.Number `json:"currentAmount"`
}

func newCalculationsResponse(c core.Calculations) calculationsResponse {
	return calculationsResponse{
		TotalIncome:   amount(c.TotalIncome),
		TotalExpense:  amount(c.TotalExpense),
		CurrentAmount: amount(c.CurrentAmount),
	}
}

type submitResponse struct {
	MonthYear     string               `json:"monthYear"`
	Calculations  calculationsResponse `json:"calculations"`
	Version       int64                `json:"version"`
	TransactionID string               `json:"transactionId"`
}

func newSubmitResponse(res services.SubmitResult) submitResponse {
	return submitResponse{
		MonthYear:     res.MonthYear,
		Calculations:  newCalculationsResponse(res.Calculations),
		Version:       res.Version,
		TransactionID: res.TransactionID,
	}
}

type rowResponse struct {
	ID       string      `json:"id"`
	Date     string      `json:"date"`
	Category string      `json:"category"`
	Amount   json.Number `json:"amount"`
}

type tableResponse struct {
	TableName string        `json:"tableName"`
	Columns   []string      `json:"columns"`
	Rows      []rowResponse `json:"rows"`
}

type ledgerResponse struct {
	UserID       string               `json:"userId"`
	MonthYear    string               `json:"monthYear"`
	MonthNumber  string               `json:"monthNumber"`
	Tables       []tableResponse      `json:"tables"`
	Calculations calculationsResponse `json:"calculations"`
	Version      int64                `json:"version"`
	CreatedAt    *time.Time           `json:"createdAt,omitempty"`
	UpdatedAt    *time.Time           `json:"updatedAt,omitempty"`
}

func newLedgerResponse(l core.MonthlyLedger) ledgerResponse {
	out := ledgerResponse{
		UserID:       l.UserID,
		MonthYear:    l.MonthYear,
		MonthNumber:  l.MonthNumber,
		Calculations: newCalculationsResponse(l.Calculations),
		Version:      l.Version,
	}
	for _, t := range l.Tables() {
		tr := tableResponse{
			TableName: t.Name.String(),
			Columns:   t.Columns,
			Rows:      make([]rowResponse, 0, len(t.Rows)),
		}
		if tr.Columns == nil {
			tr.Columns = core.DefaultColumns
		}
		for _, row := range t.Rows {
			tr.Rows = append(tr.Rows, rowResponse{
				ID:       row.ID,
				Date:     row.Date.String(),
				Category: row.Category,
				Amount:   amount(row.Amount),
			})
		}
		out.Tables = append(out.Tables, tr)
	}
	if !l.CreatedAt.IsZero() {
		created := l.CreatedAt.UTC()
		out.CreatedAt = &created
	}
	if !l.UpdatedAt.IsZero() {
		updated := l.UpdatedAt.UTC()
		out.UpdatedAt = &updated
	}
	return out
}

type categoriesResponse struct {
	Type       string   `json:"type"`
	Categories []string `json:"categories"`
}
