package fetch

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/phrazzld/restaurant-reviews/internal/domain"
	"github.com/phrazzld/restaurant-reviews/internal/redact"
)

// Session is the transport used to issue requests. *http.Client satisfies it.
type Session interface {
	Do(req *http.Request) (*http.Response, error)
}

// SessionFunc adapts an ordinary function to the Session interface.
type SessionFunc func(req *http.Request) (*http.Response, error)

// Do calls f(req).
func (f SessionFunc) Do(req *http.Request) (*http.Response, error) {
	return f(req)
}

// Client executes requests over a reusable session and converts their bodies
// into JSON mappings.
type Client struct {
	session Session
	logger  *slog.Logger
}

// NewClient creates a Client. A nil session falls back to http.DefaultClient.
func NewClient(session Session, logger *slog.Logger) *Client {
	if session == nil {
		session = http.DefaultClient
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Client{
		session: session,
		logger:  logger.With("component", "fetch_client"),
	}
}

// JSONTask issues req and blocks until its body has been converted into a JSON
// mapping. Failures are checked in this order: transport failure or missing
// response, non-200 status, missing body, body that is not a JSON object.
func (c *Client) JSONTask(req *http.Request) (domain.JSON, error) {
	start := time.Now()
	logger := c.logger.With(
		"method", req.Method,
		"url", redact.URL(req.URL),
	)

	resp, err := c.session.Do(req)
	if err != nil {
		logger.Debug("request failed", "error", redact.Error(err))
		return nil, newError(ErrRequestFailed, 0, err)
	}
	if resp == nil {
		logger.Debug("request returned no response")
		return nil, newError(ErrRequestFailed, 0, nil)
	}
	if resp.Body != nil {
		defer func() { _ = resp.Body.Close() }()
	}

	logger = logger.With("status", resp.StatusCode, "elapsed", time.Since(start))

	if resp.StatusCode != http.StatusOK {
		logger.Debug("response unsuccessful")
		return nil, newError(ErrResponseUnsuccessful, resp.StatusCode, nil)
	}

	if resp.Body == nil {
		logger.Debug("response has no body")
		return nil, newError(ErrInvalidData, resp.StatusCode, nil)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		logger.Debug("failed to read response body", "error", redact.Error(err))
		return nil, newError(ErrRequestFailed, resp.StatusCode, err)
	}
	if len(data) == 0 {
		logger.Debug("response body is empty")
		return nil, newError(ErrInvalidData, resp.StatusCode, nil)
	}

	var body domain.JSON
	if err := json.Unmarshal(data, &body); err != nil {
		logger.Debug("response body is not a JSON object", "error", err)
		return nil, newError(ErrJSONConversionFailure, resp.StatusCode, err)
	}
	if body == nil {
		logger.Debug("response body is JSON null")
		return nil, newError(ErrJSONConversionFailure, resp.StatusCode, errors.New("body is null"))
	}

	logger.Debug("request completed", "bytes", len(data))
	return body, nil
}

// Fetch issues req in the background and hands the decoded mapping to decode.
// completion is called exactly once, from another goroutine, with either the
// decoded value or an error. A decode error is reported as
// ErrJSONParsingFailure.
func Fetch[T any](
	c *Client,
	req *http.Request,
	decode func(domain.JSON) (T, error),
	completion func(T, error),
) {
	go func() {
		var zero T

		body, err := c.JSONTask(req)
		if err != nil {
			completion(zero, err)
			return
		}

		value, err := decode(body)
		if err != nil {
			c.logger.Debug("failed to decode entity",
				"url", redact.URL(req.URL),
				"error", err)
			completion(zero, newError(ErrJSONParsingFailure, http.StatusOK, err))
			return
		}

		completion(value, nil)
	}()
}

// FetchMany is the collection variant of Fetch. decodeMany is expected to be
// lenient and drop malformed records, so it cannot fail by itself.
func FetchMany[T any](
	c *Client,
	req *http.Request,
	decodeMany func(domain.JSON) []T,
	completion func([]T, error),
) {
	go func() {
		body, err := c.JSONTask(req)
		if err != nil {
			completion(nil, err)
			return
		}

		values := decodeMany(body)
		if values == nil {
			values = []T{}
		}
		completion(values, nil)
	}()
}

// Await runs an asynchronous call that reports through a completion callback
// and blocks until the callback fires.
func Await[T any](call func(completion func(T, error))) (T, error) {
	type result struct {
		value T
		err   error
	}

	done := make(chan result, 1)
	call(func(value T, err error) {
		done <- result{value: value, err: err}
	})

	r := <-done
	return r.value, r.err
}
