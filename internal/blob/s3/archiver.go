package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/alanyoungcy/emojibot/internal/domain"
)

// multipartThreshold switches journal exports to multipart uploads.
const multipartThreshold = minPartSize

// ReportArchiver stores each periodic portfolio report as JSON and, when a
// journal is attached, the orders recorded since the previous report as
// JSONL next to it.
//
//	reports/<team>/<yyyy>/<mm>/<dd>/<iteration>.json
//	reports/<team>/<yyyy>/<mm>/<dd>/<iteration>-orders.jsonl
type ReportArchiver struct {
	writer domain.BlobWriter
	team   string
	orders domain.OrderStore
	now    func() time.Time

	mu       sync.Mutex
	lastSent time.Time
}

// NewReportArchiver creates a ReportArchiver writing under team.
func NewReportArchiver(writer domain.BlobWriter, team string) *ReportArchiver {
	return &ReportArchiver{
		writer: writer,
		team:   team,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// WithJournal exports journal entries alongside each report.
func (a *ReportArchiver) WithJournal(orders domain.OrderStore) *ReportArchiver {
	a.orders = orders
	return a
}

// Name returns "s3".
func (a *ReportArchiver) Name() string { return "s3" }

// Report uploads the portfolio report for iteration.
func (a *ReportArchiver) Report(ctx context.Context, iteration int64, p domain.PortfolioSnapshot) error {
	now := a.now()
	dir := fmt.Sprintf("reports/%s/%s", a.team, now.Format("2006/01/02"))

	data, err := json.Marshal(domain.NewPortfolioReport(a.team, iteration, p))
	if err != nil {
		return fmt.Errorf("s3blob: marshal report: %w", err)
	}
	reportPath := fmt.Sprintf("%s/%d.json", dir, iteration)
	if err := a.writer.Put(ctx, reportPath, bytes.NewReader(data), "application/json"); err != nil {
		return err
	}

	if a.orders == nil {
		return nil
	}
	return a.exportOrders(ctx, fmt.Sprintf("%s/%d-orders.jsonl", dir, iteration), now)
}

func (a *ReportArchiver) exportOrders(ctx context.Context, path string, now time.Time) error {
	a.mu.Lock()
	since := a.lastSent
	a.mu.Unlock()

	opts := domain.ListOpts{Limit: 10000}
	if !since.IsZero() {
		opts.Since = &since
	}
	records, err := a.orders.ListRecent(ctx, opts)
	if err != nil {
		return fmt.Errorf("s3blob: list orders: %w", err)
	}
	if len(records) == 0 {
		return nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for i := len(records) - 1; i >= 0; i-- {
		if err := enc.Encode(newOrderLine(records[i])); err != nil {
			return fmt.Errorf("s3blob: encode order %s: %w", records[i].ID, err)
		}
	}

	if int64(buf.Len()) >= multipartThreshold {
		err = a.writer.PutMultipart(ctx, path, &buf, minPartSize)
	} else {
		err = a.writer.Put(ctx, path, &buf, "application/x-ndjson")
	}
	if err != nil {
		return err
	}

	a.mu.Lock()
	a.lastSent = now
	a.mu.Unlock()
	return nil
}

type orderLine struct {
	ID             string    `json:"id"`
	OrderID        string    `json:"order_id,omitempty"`
	Symbol         string    `json:"symbol"`
	Side           string    `json:"side"`
	Price          string    `json:"price"`
	Quantity       int64     `json:"quantity"`
	Status         string    `json:"status"`
	FilledQuantity int64     `json:"filled_quantity"`
	Source         string    `json:"source"`
	Error          string    `json:"error,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

func newOrderLine(r domain.OrderRecord) orderLine {
	return orderLine{
		ID:             r.ID,
		OrderID:        r.OrderID,
		Symbol:         r.Symbol,
		Side:           string(r.Side),
		Price:          r.Price.StringFixed(2),
		Quantity:       r.Quantity,
		Status:         string(r.Status),
		FilledQuantity: r.FilledQuantity,
		Source:         string(r.Source),
		Error:          r.Error,
		CreatedAt:      r.CreatedAt,
	}
}
