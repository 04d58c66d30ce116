package catalog

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/beevik/etree"

	"github.com/starford/finplan/internal/models"
)

// ReferenceRateID is the record id the reference feed writes to.
const ReferenceRateID = "reference-key-rate"

// ReferenceConfig configures the reference rate feed.
type ReferenceConfig struct {
	URL string
	// XPath selects the rate elements; the first match wins.
	XPath string
	// SOAPBody, when set, is POSTed to URL; otherwise a GET is issued.
	SOAPBody   string
	SOAPAction string
	// Margin is added to the published rate, in percentage points.
	Margin float64
}

// ReferenceFeed fetches a published key rate and stores it as a reference record.
type ReferenceFeed struct {
	cfg    ReferenceConfig
	db     RateStore
	client *http.Client
	logger *slog.Logger
}

// NewReferenceFeed returns a feed using a 10s HTTP client.
func NewReferenceFeed(cfg ReferenceConfig, db RateStore, logger *slog.Logger) *ReferenceFeed {
	return &ReferenceFeed{
		cfg:    cfg,
		db:     db,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger,
	}
}

// Refresh fetches the current rate and upserts the reference record.
func (f *ReferenceFeed) Refresh(ctx context.Context) (*models.Rate, error) {
	body, err := f.fetch(ctx)
	if err != nil {
		return nil, err
	}
	published, err := ParseReferenceRate(body, f.cfg.XPath)
	if err != nil {
		return nil, err
	}

	rate := math.Round((published+f.cfg.Margin)*100) / 100
	r := &models.Rate{
		ID:          ReferenceRateID,
		Bank:        "Reference",
		Product:     "Key rate plus margin",
		ProductType: models.ProductMortgage,
		RateMin:     rate,
		RateMax:     rate,
		Source:      models.SourceReference,
		Checksum:    strconv.FormatFloat(rate, 'f', -1, 64),
		UpdatedAt:   time.Now().UTC(),
	}
	if err := r.Validate(); err != nil {
		return nil, fmt.Errorf("reference rate: %w", err)
	}
	if err := f.db.UpsertRate(ctx, r); err != nil {
		return nil, err
	}
	f.logger.Info("reference rate refreshed",
		slog.Float64("published", published),
		slog.Float64("margin", f.cfg.Margin),
		slog.Float64("rate", rate))
	return r, nil
}

func (f *ReferenceFeed) fetch(ctx context.Context) ([]byte, error) {
	method := http.MethodGet
	var body io.Reader
	if f.cfg.SOAPBody != "" {
		method = http.MethodPost
		body = bytes.NewBufferString(f.cfg.SOAPBody)
	}
	req, err := http.NewRequestWithContext(ctx, method, f.cfg.URL, body)
	if err != nil {
		return nil, fmt.Errorf("reference rate: build request: %w", err)
	}
	if f.cfg.SOAPBody != "" {
		req.Header.Set("Content-Type", "application/soap+xml; charset=utf-8")
		if f.cfg.SOAPAction != "" {
			req.Header.Set("SOAPAction", f.cfg.SOAPAction)
		}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("reference rate: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("reference rate: unexpected status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("reference rate: read body: %w", err)
	}
	return data, nil
}

// ParseReferenceRate extracts the first rate matched by path from an XML
// document. Decimal commas are accepted.
func ParseReferenceRate(data []byte, path string) (float64, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return 0, fmt.Errorf("reference rate: parse xml: %w", err)
	}

	p, err := etree.CompilePath(path)
	if err != nil {
		return 0, fmt.Errorf("reference rate: xpath %q: %w", path, err)
	}
	elems := doc.FindElementsPath(p)
	if len(elems) == 0 {
		return 0, fmt.Errorf("reference rate: no element matches %q", path)
	}

	text := strings.ReplaceAll(strings.TrimSpace(elems[0].Text()), ",", ".")
	v, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, fmt.Errorf("reference rate: parse %q: %w", text, err)
	}
	if v < 0 {
		return 0, fmt.Errorf("reference rate: negative rate %v", v)
	}
	return v, nil
}
