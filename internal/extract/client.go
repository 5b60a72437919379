package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/joseph-ayodele/finreport/internal/common"
)

// Config for the extraction client.
type Config struct {
	Endpoint    string        // full URL of the extraction service
	Timeout     time.Duration // per-request bound; the request is not otherwise cancellable
	LenientJSON bool          // attempt a JSON repair before declaring a body malformed
	MaxPeriods  int           // upper bound on top-level keys accepted from the service
	Headers     map[string]string
}

// Client issues exactly one request per Extract call; it never retries.
type Client struct {
	cfg      Config
	http     *http.Client
	schema   *jsonschema.Schema
	logger   *slog.Logger
	inFlight atomic.Bool
}

func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, common.NewAppError("CONFIG_ERROR", "extraction endpoint is required", common.ErrInvalidInput)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 90 * time.Second
	}
	schema, err := CompileSchema(BuildResultJSONSchema(cfg.MaxPeriods))
	if err != nil {
		return nil, err
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		schema: schema,
		logger: logger,
	}, nil
}

// InFlight reports whether an extraction is pending; callers show a loading state while true.
func (c *Client) InFlight() bool {
	return c.inFlight.Load()
}

// Extract posts {"pdf_url": referenceURL} to the service and returns the parsed result.
// Non-2xx answers yield *StatusError, unusable bodies *MalformedResponseError.
func (c *Client) Extract(ctx context.Context, referenceURL string) (Result, error) {
	if !c.inFlight.CompareAndSwap(false, true) {
		c.logger.Warn("extract.rejected_in_flight", "reference_url", referenceURL)
		return nil, ErrExtractionInFlight
	}
	defer c.inFlight.Store(false)

	if err := validateReferenceURL(referenceURL); err != nil {
		return nil, err
	}

	rid := common.RequestIDFromContext(ctx)
	if rid == "" {
		rid = uuid.New().String()
		ctx = common.WithRequestID(ctx, rid)
	}
	start := time.Now()

	ctx, cancel := common.Detached(ctx, c.cfg.Timeout)
	defer cancel()

	c.logger.Info("extract.start", "req_id", rid, "reference_url", referenceURL)

	raw, status, err := SendJSON(ctx, c.http, c.cfg.Endpoint, Request{PDFURL: referenceURL}, c.cfg.Headers, c.logger)
	if err != nil {
		if status != 0 && status/100 != 2 {
			se := &StatusError{StatusCode: status, Body: excerpt(raw, 512)}
			c.logger.Error("extract.status_error", "req_id", rid, "status", status, "elapsed_ms", time.Since(start).Milliseconds())
			return nil, se
		}
		c.logger.Error("extract.transport_error", "req_id", rid, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return nil, common.NewAppError("EXTRACTION_UNAVAILABLE", "extraction service unreachable", errors.Join(common.ErrUnavailable, err))
	}

	res, err := c.parse(rid, raw)
	if err != nil {
		c.logger.Error("extract.malformed_response",
			"req_id", rid, "error", err, "raw_bytes", len(raw),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return nil, err
	}

	c.logger.Info("extract.ok",
		"req_id", rid,
		"periods", len(res),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}

func (c *Client) parse(rid string, raw []byte) (Result, error) {
	res, err := ParseResult(raw)
	if err != nil && c.cfg.LenientJSON {
		repaired, _, rErr := RepairResult(raw)
		if rErr == nil {
			c.logger.Warn("extract.lenient_repair_applied", "req_id", rid, "strict_error", err)
			res, err = repaired, nil
		}
	}
	if err != nil {
		return nil, &MalformedResponseError{Cause: err, Excerpt: excerpt(raw, 256)}
	}
	if err := ValidateResult(c.schema, res); err != nil {
		return nil, &MalformedResponseError{Cause: err, Excerpt: excerpt(raw, 256)}
	}
	return res, nil
}

func validateReferenceURL(ref string) error {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return common.NewAppError("INVALID_REFERENCE", "reference url is required", common.ErrInvalidInput)
	}
	u, err := url.Parse(ref)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return common.NewAppError("INVALID_REFERENCE", fmt.Sprintf("reference url %q is not an absolute http(s) url", ref), common.ErrInvalidInput)
	}
	return nil
}
