package forward

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/infinitehq/aimlgw/internal/apierror"
	"github.com/infinitehq/aimlgw/internal/observability"
)

// subjectParam is the query key under which the authenticated caller's
// subject id is attributed to the upstream. The injected value always wins
// over a caller-supplied one: auth-derived identity must not be spoofable
// via query string.
const subjectParam = "user_id"

// Forwarder relays requests to the upstream AIML service. It holds no
// cross-request state; each call is independent.
type Forwarder struct {
	client         *http.Client
	streamClient   *http.Client
	logger         observability.Logger
	metrics        *Metrics
	connectRetries int
	retryInterval  time.Duration
}

// Option is a functional option for the Forwarder.
type Option func(*Forwarder)

// WithLogger sets the logger.
func WithLogger(logger observability.Logger) Option {
	return func(f *Forwarder) {
		f.logger = logger
	}
}

// WithMetrics sets the metrics.
func WithMetrics(metrics *Metrics) Option {
	return func(f *Forwarder) {
		f.metrics = metrics
	}
}

// WithHTTPClient sets the client used for non-streaming calls.
func WithHTTPClient(client *http.Client) Option {
	return func(f *Forwarder) {
		f.client = client
	}
}

// WithStreamClient sets the client used for streaming calls. The stream
// client must not enforce a timeout: a long-lived generation may
// legitimately run for minutes.
func WithStreamClient(client *http.Client) Option {
	return func(f *Forwarder) {
		f.streamClient = client
	}
}

// WithConnectRetries sets the number of attempts for connection
// establishment failures.
func WithConnectRetries(attempts int) Option {
	return func(f *Forwarder) {
		if attempts > 0 {
			f.connectRetries = attempts
		}
	}
}

// WithRetryInterval sets the fixed sleep between connect attempts.
func WithRetryInterval(interval time.Duration) Option {
	return func(f *Forwarder) {
		if interval > 0 {
			f.retryInterval = interval
		}
	}
}

// New creates a new Forwarder.
func New(opts ...Option) *Forwarder {
	f := &Forwarder{
		client:         &http.Client{Timeout: 30 * time.Second},
		streamClient:   &http.Client{},
		logger:         observability.NopLogger(),
		connectRetries: 3,
		retryInterval:  time.Second,
	}

	for _, opt := range opts {
		opt(f)
	}

	if f.metrics == nil {
		f.metrics = NewMetrics("gateway")
	}

	return f
}

// request is the upstream request specification, built fresh per call and
// replayed identically across connect retries.
type request struct {
	query   url.Values
	body    interface{}
	subject string
}

// RequestOption configures a single upstream call.
type RequestOption func(*request)

// Query sets the query parameters.
func Query(values url.Values) RequestOption {
	return func(r *request) {
		r.query = values
	}
}

// JSONBody sets the JSON request body.
func JSONBody(body interface{}) RequestOption {
	return func(r *request) {
		r.body = body
	}
}

// Subject injects the authenticated caller's subject id.
func Subject(id string) RequestOption {
	return func(r *request) {
		r.subject = id
	}
}

// Forward relays one call to the upstream and returns the normalized
// response body. Connection-establishment failures are retried up to the
// configured attempt count with a fixed sleep in between; completed
// round trips and other network faults are never retried.
func (f *Forwarder) Forward(ctx context.Context, method, rawURL string, opts ...RequestOption) (interface{}, error) {
	target, payload, err := f.buildRequest(rawURL, opts)
	if err != nil {
		return nil, err
	}

	resp, err := f.doWithConnectRetry(ctx, f.client, method, target, payload)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apierror.ServiceUnavailable(err.Error())
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, apierror.FromUpstream(resp.StatusCode, body)
	}

	// No content is still a value: callers treat it uniformly.
	if len(body) == 0 {
		return map[string]interface{}{}, nil
	}

	var parsed interface{}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, err
	}

	return NormalizeDocumentIDs(parsed), nil
}

// buildRequest resolves the target URL and serializes the body once so the
// identical payload is replayed on every attempt.
func (f *Forwarder) buildRequest(rawURL string, opts []RequestOption) (string, []byte, error) {
	var spec request
	for _, opt := range opts {
		opt(&spec)
	}

	target, err := url.Parse(rawURL)
	if err != nil {
		return "", nil, apierror.Internal(fmt.Sprintf("invalid upstream URL: %v", err))
	}

	query := spec.query
	if query == nil {
		query = url.Values{}
	}
	if spec.subject != "" {
		query.Set(subjectParam, spec.subject)
	}
	if len(query) > 0 {
		target.RawQuery = query.Encode()
	}

	var payload []byte
	if spec.body != nil {
		payload, err = json.Marshal(spec.body)
		if err != nil {
			return "", nil, apierror.Internal(fmt.Sprintf("failed to encode request body: %v", err))
		}
	}

	return target.String(), payload, nil
}

// doWithConnectRetry executes the round trip, retrying only
// connection-establishment failures.
func (f *Forwarder) doWithConnectRetry(
	ctx context.Context, client *http.Client, method, target string, payload []byte,
) (*http.Response, error) {
	var lastErr error

	for attempt := 1; attempt <= f.connectRetries; attempt++ {
		req, err := f.newRequest(ctx, method, target, payload)
		if err != nil {
			return nil, err
		}

		start := time.Now()
		resp, err := client.Do(req)
		if err == nil {
			f.metrics.RecordRequest(method, resp.StatusCode, time.Since(start))
			return resp, nil
		}

		if !isConnectError(err) {
			// Timeouts and mid-flight faults: the upstream may have seen
			// the request, do not replay it.
			return nil, apierror.ServiceUnavailable(err.Error())
		}

		lastErr = err
		if attempt < f.connectRetries {
			f.metrics.RecordRetry()
			f.logger.WithContext(ctx).Warn("upstream connect failed, retrying",
				observability.Int("attempt", attempt),
				observability.Int("maxAttempts", f.connectRetries),
				observability.Error(err),
			)

			select {
			case <-ctx.Done():
				return nil, apierror.ServiceUnavailable(ctx.Err().Error())
			case <-time.After(f.retryInterval):
			}
		}
	}

	return nil, apierror.ServiceUnavailable(
		fmt.Sprintf("upstream unreachable after %d attempts: %v", f.connectRetries, lastErr))
}

// newRequest builds one attempt's HTTP request.
func (f *Forwarder) newRequest(ctx context.Context, method, target string, payload []byte) (*http.Request, error) {
	var body io.Reader = http.NoBody
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, apierror.Internal(fmt.Sprintf("failed to build upstream request: %v", err))
	}

	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return req, nil
}
