package forward

import (
	"context"
	"io"

	"github.com/infinitehq/aimlgw/internal/apierror"
	"github.com/infinitehq/aimlgw/internal/observability"
)

// Stream is an open upstream response whose bytes are relayed verbatim as
// they arrive. The caller owns Body and must close it.
type Stream struct {
	Body        io.ReadCloser
	StatusCode  int
	ContentType string
}

// Close releases the upstream connection.
func (s *Stream) Close() error {
	return s.Body.Close()
}

// OpenStream opens a long-lived upstream call for chunked relay. Unlike
// Forward there is no retry and no timeout ceiling: a stream cannot be
// safely replayed once started, and a generation may run for minutes.
// Failures are reported only before the first chunk; after that the only
// failure signal is early termination of the byte sequence. Cancelling ctx
// releases the upstream connection.
func (f *Forwarder) OpenStream(ctx context.Context, method, rawURL string, opts ...RequestOption) (*Stream, error) {
	target, payload, err := f.buildRequest(rawURL, opts)
	if err != nil {
		return nil, err
	}

	req, err := f.newRequest(ctx, method, target, payload)
	if err != nil {
		return nil, err
	}

	resp, err := f.streamClient.Do(req)
	if err != nil {
		return nil, apierror.ServiceUnavailable(err.Error())
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		_ = resp.Body.Close()
		return nil, apierror.FromUpstream(resp.StatusCode, body)
	}

	f.metrics.RecordStreamOpened()
	f.logger.WithContext(ctx).Debug("stream opened",
		observability.String("method", method),
		observability.Int("status", resp.StatusCode),
	)

	return &Stream{
		Body:        resp.Body,
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
	}, nil
}
