// Package memory is an in-process LedgerExporter used when no spreadsheet
// is configured and in tests.
package memory

import (
	"context"
	"sync"

	"monthbook/internal/core"
	ports "monthbook/internal/sheets"
)

type Exporter struct {
	mu           sync.Mutex
	summaries    map[string][]string
	versions     map[string]int64
	order        []string
	transactions [][]string
	seen         map[string]struct{}
}

var _ ports.LedgerExporter = (*Exporter)(nil)

func New() *Exporter {
	return &Exporter{
		summaries: map[string][]string{},
		versions:  map[string]int64{},
		seen:      map[string]struct{}{},
	}
}

// Export records the summary row, replacing an older version, and appends
// unseen transactions.
func (e *Exporter) Export(ctx context.Context, l core.MonthlyLedger) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	key := l.Identity().Key()
	if v, ok := e.versions[key]; !ok || l.Version > v {
		if !ok {
			e.order = append(e.order, key)
		}
		e.summaries[key] = ports.SummaryRow(l)
		e.versions[key] = l.Version
	}
	for _, row := range ports.TransactionRows(l) {
		if _, ok := e.seen[row[0]]; ok {
			continue
		}
		e.seen[row[0]] = struct{}{}
		e.transactions = append(e.transactions, row)
	}
	return nil
}

// Summaries returns summary rows in first-export order.
func (e *Exporter) Summaries() [][]string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([][]string, 0, len(e.order))
	for _, k := range e.order {
		out = append(out, append([]string(nil), e.summaries[k]...))
	}
	return out
}

func (e *Exporter) Transactions() [][]string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([][]string, len(e.transactions))
	for i, r := range e.transactions {
		out[i] = append([]string(nil), r...)
	}
	return out
}
