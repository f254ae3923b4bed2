// Package fetch retrieves the content bookmarks point at, with timeout and
// size-cap policy, a closed error taxonomy for retry decisions, and an
// optional headless-Chrome mode for pages that only render under JS.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Defaults applied when options are left zero.
const (
	DefaultTimeout  = 30 * time.Second
	DefaultMaxBytes = 10 * 1024 * 1024 // 10MB
	UserAgent       = "Mozilla/5.0 (compatible; hbt/1.0)"
)

// Kind classifies fetched content. The set is closed and known at archive
// time; it is stored alongside the object metadata.
type Kind string

const (
	KindHTML     Kind = "html"
	KindBinary   Kind = "binary"
	KindRedirect Kind = "redirect"
)

// ErrorKind distinguishes fetch failures for retry policy.
type ErrorKind int

const (
	// Timeout covers deadline expiry on the request. Retryable.
	Timeout ErrorKind = iota
	// TooLarge means the response exceeded the byte cap. Retryable: the
	// cap may be raised or the page may slim down on a later pass.
	TooLarge
	// Unreachable covers DNS failures, refused connections, and 5xx
	// responses. Retryable.
	Unreachable
	// ClientError covers 4xx responses and other permanent failures.
	// Not retryable: a 404 will still be a 404 after backoff.
	ClientError
)

func (k ErrorKind) String() string {
	switch k {
	case Timeout:
		return "timeout"
	case TooLarge:
		return "too large"
	case Unreachable:
		return "unreachable"
	case ClientError:
		return "client error"
	default:
		return "unknown"
	}
}

// Error is a classified fetch failure.
type Error struct {
	Kind ErrorKind
	URL  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Kind, e.Err)
	}
	return fmt.Sprintf("fetch %s: %s", e.URL, e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Retryable reports whether the failure class is worth another attempt.
func (e *Error) Retryable() bool {
	return e.Kind != ClientError
}

// Retryable reports whether err is a retryable fetch error. Unclassified
// errors are treated as non-retryable.
func Retryable(err error) bool {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Retryable()
	}
	return false
}

// Result is the outcome of a successful fetch.
type Result struct {
	// Body is the raw content bytes, capped at the configured maximum.
	Body []byte
	// FinalURL is the URL after any redirects were followed.
	FinalURL string
	// ContentType is the declared (or sniffed) media type.
	ContentType string
	// Kind is the closed classification of the content.
	Kind Kind
	// Title is the document title for HTML content, when one could be
	// extracted. Empty otherwise.
	Title string
}

// Fetcher is the capability the sync engine consumes.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (Result, error)
}

// Options configures a Client.
type Options struct {
	// Timeout is the per-request deadline. If <= 0, DefaultTimeout.
	Timeout time.Duration
	// MaxBytes caps the response size. If <= 0, DefaultMaxBytes.
	MaxBytes int64
	// UserAgent overrides the default User-Agent header.
	UserAgent string
}

// Client fetches over plain HTTP.
type Client struct {
	http      *http.Client
	timeout   time.Duration
	maxBytes  int64
	userAgent string
}

// NewClient builds an HTTP fetcher with the given policy.
func NewClient(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = DefaultMaxBytes
	}
	if opts.UserAgent == "" {
		opts.UserAgent = UserAgent
	}
	return &Client{
		http:      &http.Client{},
		timeout:   opts.Timeout,
		maxBytes:  opts.MaxBytes,
		userAgent: opts.UserAgent,
	}
}

// Fetch retrieves the content at url. Failures are returned as *Error with
// a Kind the caller can base retry decisions on.
func (c *Client) Fetch(ctx context.Context, url string) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Result{}, &Error{Kind: ClientError, URL: url, Err: err}
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return Result{}, &Error{Kind: classifyTransportError(err), URL: url, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500:
		return Result{}, &Error{Kind: Unreachable, URL: url, Err: fmt.Errorf("HTTP %d", resp.StatusCode)}
	case resp.StatusCode == http.StatusRequestTimeout || resp.StatusCode == http.StatusTooManyRequests:
		// Transient despite being 4xx.
		return Result{}, &Error{Kind: Unreachable, URL: url, Err: fmt.Errorf("HTTP %d", resp.StatusCode)}
	case resp.StatusCode >= 400:
		return Result{}, &Error{Kind: ClientError, URL: url, Err: fmt.Errorf("HTTP %d", resp.StatusCode)}
	}

	if resp.ContentLength > c.maxBytes {
		return Result{}, &Error{
			Kind: TooLarge,
			URL:  url,
			Err:  fmt.Errorf("declared %d bytes, cap is %d", resp.ContentLength, c.maxBytes),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes+1))
	if err != nil {
		return Result{}, &Error{Kind: classifyTransportError(err), URL: url, Err: err}
	}
	if int64(len(body)) > c.maxBytes {
		return Result{}, &Error{
			Kind: TooLarge,
			URL:  url,
			Err:  fmt.Errorf("body exceeds %d byte cap", c.maxBytes),
		}
	}
	if len(body) == 0 {
		return Result{}, &Error{Kind: ClientError, URL: url, Err: errors.New("empty response body")}
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(body)
	}

	finalURL := url
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	res := Result{
		Body:        body,
		FinalURL:    finalURL,
		ContentType: contentType,
		Kind:        classifyKind(resp.StatusCode, contentType),
	}
	if res.Kind == KindHTML {
		res.Title = extractTitle(body)
	}
	return res, nil
}

func classifyTransportError(err error) ErrorKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return Timeout
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Timeout
	}
	return Unreachable
}

func classifyKind(status int, contentType string) Kind {
	if status >= 300 && status < 400 {
		return KindRedirect
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = contentType
	}
	switch mediaType {
	case "text/html", "application/xhtml+xml":
		return KindHTML
	}
	return KindBinary
}

// extractTitle pulls <title> out of HTML bytes. Best effort: parse failures
// just yield an empty title.
func extractTitle(body []byte) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(doc.Find("title").First().Text())
}
