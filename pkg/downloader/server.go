package downloader

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/marmos91/objectloader/internal/logger"
	"github.com/marmos91/objectloader/internal/telemetry"
	"github.com/marmos91/objectloader/pkg/metrics"
	"github.com/marmos91/objectloader/pkg/objects"
)

const (
	// DefaultMaxBatchWait is how long a download worker waits for its batch to fill.
	DefaultMaxBatchWait = 200 * time.Millisecond

	// DefaultRequestTimeout bounds one HTTP request.
	DefaultRequestTimeout = 5 * time.Minute

	// DefaultMaxLineSize bounds one object line of a batch response.
	DefaultMaxLineSize = 256 << 20

	// RawEncodingType marks objects stored in a native format this loader
	// does not decode. They are delivered as stubs.
	RawEncodingType = "Objects.Other.RawEncoding"

	missingPreview = 10
)

// ServerOptions configures a Server downloader.
type ServerOptions struct {
	ServerURL string
	StreamID  string
	ObjectID  string
	Token     string

	// Headers are added to every request.
	Headers map[string]string

	// HTTPClient defaults to a client with DefaultRequestTimeout.
	HTTPClient *http.Client

	// RequestsPerSecond paces batch requests. Zero means unlimited.
	RequestsPerSecond float64

	MaxBatchWait time.Duration
	MaxLineSize  int
	Metrics      metrics.LoaderMetrics
}

// Server downloads objects from the object API of a Speckle server.
type Server struct {
	opts    ServerOptions
	client  *http.Client
	limiter *rate.Limiter

	mu       sync.Mutex
	pool     *pool
	results  objects.ItemSink
	disposed bool
}

var _ Downloader = (*Server)(nil)

// NewServer creates a Server downloader.
func NewServer(opts ServerOptions) *Server {
	opts.ServerURL = strings.TrimRight(opts.ServerURL, "/")
	if opts.MaxBatchWait <= 0 {
		opts.MaxBatchWait = DefaultMaxBatchWait
	}
	if opts.MaxLineSize <= 0 {
		opts.MaxLineSize = DefaultMaxLineSize
	}

	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: DefaultRequestTimeout}
	}

	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}

	return &Server{
		opts:    opts,
		client:  client,
		limiter: rate.NewLimiter(limit, 1),
	}
}

// Initialize starts one download worker per batch size.
func (s *Server) Initialize(results objects.ItemSink, total int, onError func(error)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pool != nil {
		s.pool.close()
	}
	sizes := batchSizes(total)
	s.results = results
	s.pool = newPool(sizes, s.opts.MaxBatchWait, s.downloadBatch, onError)

	logger.Debug("Download pool started",
		logger.KeyServerURL, s.opts.ServerURL,
		logger.KeyStreamID, s.opts.StreamID,
		logger.KeyTotal, total,
		"workers", len(sizes))
}

// Add queues id for the next batch request.
func (s *Server) Add(id string) {
	s.mu.Lock()
	p, disposed := s.pool, s.disposed
	s.mu.Unlock()

	if p == nil {
		if disposed {
			logger.Debug("Download requested after dispose", logger.ObjectID(id))
			return
		}
		logger.Error("Download requested before initialization", logger.ObjectID(id), logger.Err(ErrNotInitialized))
		return
	}
	p.add(id)
}

// Dispose stops the download workers.
func (s *Server) Dispose() {
	s.mu.Lock()
	p := s.pool
	s.pool = nil
	s.disposed = true
	s.mu.Unlock()

	if p != nil {
		p.close()
	}
}

// DownloadSingle fetches the root object.
func (s *Server) DownloadSingle(ctx context.Context) (item *objects.Item, err error) {
	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanDownloadRoot,
		telemetry.StreamID(s.opts.StreamID), telemetry.RootID(s.opts.ObjectID))
	defer func() { telemetry.EndSpan(span, err) }()

	start := time.Now()
	url := fmt.Sprintf("%s/objects/%s/%s/single", s.opts.ServerURL, s.opts.StreamID, s.opts.ObjectID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	s.setHeaders(req)

	body, err := s.do(req)
	if err != nil {
		metrics.ObserveDownload(s.opts.Metrics, 1, 0, time.Since(start), err)
		return nil, err
	}
	metrics.ObserveDownload(s.opts.Metrics, 1, int64(len(body)), time.Since(start), nil)

	if bytes.Contains(body, []byte(RawEncodingType)) {
		logger.WarnCtx(ctx, "Root object uses a raw encoding", logger.RootID(s.opts.ObjectID))
		return nil, nil
	}

	base, err := objects.ParseBase(body)
	if err != nil {
		return nil, fmt.Errorf("error parsing root object %s: %w", s.opts.ObjectID, err)
	}
	return &objects.Item{BaseID: s.opts.ObjectID, Base: base, Size: len(body)}, nil
}

type getObjectsRequest struct {
	Objects string `json:"objects"`
}

func (s *Server) downloadBatch(ctx context.Context, ids []string) (err error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}

	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanDownloadBatch,
		telemetry.StreamID(s.opts.StreamID), telemetry.ObjectCount(len(ids)))
	defer func() { telemetry.EndSpan(span, err) }()

	start := time.Now()
	var received int64
	defer func() {
		metrics.ObserveDownload(s.opts.Metrics, len(ids), received, time.Since(start), err)
	}()

	encodedIDs, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("failed to encode ids: %w", err)
	}
	payload, err := json.Marshal(getObjectsRequest{Objects: string(encodedIDs)})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/api/getobjects/%s", s.opts.ServerURL, s.opts.StreamID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	s.setHeaders(req)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if err := checkStatus(resp); err != nil {
		return err
	}

	received, err = s.readBatch(resp.Body, ids)
	if err != nil {
		return err
	}

	logger.DebugCtx(ctx, "Downloaded batch",
		logger.BatchSize(len(ids)),
		logger.KeySize, received,
		logger.DurationMs(time.Since(start)))
	return nil
}

// readBatch parses "id\tjson" lines and hands each object to the sink.
// Every requested id must be answered; the ones that are not come back in a
// *BatchError wrapping ErrMissingItems.
func (s *Server) readBatch(body io.Reader, ids []string) (int64, error) {
	missing := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		missing[id] = struct{}{}
	}

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), s.opts.MaxLineSize)

	var total int64
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		total += int64(len(line)) + 1

		id, data, ok := bytes.Cut(line, []byte{'\t'})
		if !ok {
			return total, fmt.Errorf("invalid line format: %s", logger.Truncate(string(line), 100))
		}
		baseID := string(id)
		delete(missing, baseID)

		if bytes.Contains(data, []byte(RawEncodingType)) {
			logger.Debug("Skipping raw encoded object", logger.ObjectID(baseID))
			s.results(objects.Stub(baseID))
			continue
		}

		base, err := objects.ParseBase(data)
		if err != nil {
			return total, fmt.Errorf("error parsing object %s: %w", baseID, err)
		}
		s.results(objects.Item{BaseID: baseID, Base: base, Size: len(data)})
	}
	if err := scanner.Err(); err != nil {
		return total, fmt.Errorf("failed to read response: %w", err)
	}

	if len(missing) > 0 {
		absent := make([]string, 0, len(missing))
		for _, id := range ids {
			if _, ok := missing[id]; ok {
				absent = append(absent, id)
			}
		}
		preview := absent[:min(len(absent), missingPreview)]
		return total, &BatchError{
			IDs: absent,
			Err: fmt.Errorf("%w: %s", ErrMissingItems, strings.Join(preview, ",")),
		}
	}
	return total, nil
}

func (s *Server) setHeaders(req *http.Request) {
	req.Header.Set("Accept", "text/plain")
	if s.opts.Token != "" {
		req.Header.Set("Authorization", "Bearer "+s.opts.Token)
	}
	for k, v := range s.opts.Headers {
		req.Header.Set(k, v)
	}
}

func (s *Server) do(req *http.Request) ([]byte, error) {
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return body, nil
}

func checkStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return ErrNoAccess
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return &StatusError{StatusCode: resp.StatusCode, Status: resp.Status}
	}
	return nil
}
