package headless

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/gabriel-vasile/mimetype"
	"github.com/cryguy/offscreen/internal/core"
	"github.com/cryguy/offscreen/internal/eventloop"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
	"golang.org/x/net/publicsuffix"
)

// blankDocument is what about:blank renders.
const blankDocument = "<html><head></head><body></body></html>"

var errTooBig = errors.New("response exceeds size limit")

// loader fetches documents for every browser of an engine.
type loader struct {
	client         *http.Client
	userAgent      string
	acceptLanguage string
	maxBytes       int64
}

func newLoader(s core.Settings) *loader {
	jar, _ := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	timeout := s.NetworkTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	maxBytes := s.MaxResponseBytes
	if maxBytes <= 0 {
		maxBytes = 10 << 20
	}
	return &loader{
		client: &http.Client{
			Timeout: timeout,
			Jar:     jar,
			Transport: &http.Transport{
				Proxy:              http.ProxyFromEnvironment,
				DisableCompression: true,
				DialContext: (&net.Dialer{
					Timeout:   10 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout: 10 * time.Second,
				MaxIdleConnsPerHost: 4,
			},
		},
		userAgent:      s.UserAgent,
		acceptLanguage: s.AcceptLanguage,
		maxBytes:       maxBytes,
	}
}

// start begins loading target on its own goroutine and returns the channel
// the result arrives on.
func (l *loader) start(ctx context.Context, target string) <-chan eventloop.LoadResult {
	ch := make(chan eventloop.LoadResult, 1)
	go func() {
		ch <- l.load(ctx, target)
	}()
	return ch
}

func (l *loader) load(ctx context.Context, target string) eventloop.LoadResult {
	u, err := url.Parse(target)
	if err != nil || (u.Scheme == "" && u.Opaque == "") {
		return failure(target, core.ErrInvalidURL, fmt.Errorf("invalid URL %q", target))
	}
	switch strings.ToLower(u.Scheme) {
	case "about":
		if u.Opaque != "blank" {
			return failure(target, core.ErrInvalidURL, fmt.Errorf("unknown about page %q", target))
		}
		return eventloop.LoadResult{Status: 200, MimeType: "text/html", Body: []byte(blankDocument), FinalURL: target}
	case "data":
		return loadData(target)
	case "file":
		return l.loadFile(u)
	case "http", "https":
		return l.loadHTTP(ctx, u)
	default:
		return failure(target, core.ErrUnknownURLScheme, fmt.Errorf("unsupported scheme %q", u.Scheme))
	}
}

func failure(target string, code core.ErrorCode, err error) eventloop.LoadResult {
	return eventloop.LoadResult{FinalURL: target, Code: code, Err: err}
}

// loadData decodes a data: URL of the form data:[<mime>][;base64],<payload>.
func loadData(target string) eventloop.LoadResult {
	rest := strings.TrimPrefix(target[len("data"):], ":")
	comma := strings.IndexByte(rest, ',')
	if comma < 0 {
		return failure(target, core.ErrInvalidURL, errors.New("data URL has no payload separator"))
	}
	meta, payload := rest[:comma], rest[comma+1:]
	isBase64 := false
	if strings.HasSuffix(strings.ToLower(meta), ";base64") {
		isBase64 = true
		meta = meta[:len(meta)-len(";base64")]
	}
	mimeType, charset := "text/plain", ""
	if meta != "" {
		mimeType, charset = splitContentType(meta)
	}

	var body []byte
	if isBase64 {
		decoded, err := base64.StdEncoding.DecodeString(strings.TrimRight(payload, "="))
		if err != nil {
			decoded, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "="))
		}
		if err != nil {
			return failure(target, core.ErrInvalidURL, fmt.Errorf("decoding data URL: %w", err))
		}
		body = decoded
	} else {
		unescaped, err := url.PathUnescape(payload)
		if err != nil {
			return failure(target, core.ErrInvalidURL, fmt.Errorf("decoding data URL: %w", err))
		}
		body = []byte(unescaped)
	}
	return eventloop.LoadResult{Status: 200, MimeType: mimeType, Charset: charset, Body: body, FinalURL: target}
}

func (l *loader) loadFile(u *url.URL) eventloop.LoadResult {
	path := filepath.FromSlash(u.Path)
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return failure(u.String(), core.ErrFileNotFound, err)
		}
		return failure(u.String(), core.ErrFailed, err)
	}
	if info.IsDir() {
		return failure(u.String(), core.ErrFileNotFound, fmt.Errorf("%s is a directory", path))
	}
	if info.Size() > l.maxBytes {
		return failure(u.String(), core.ErrFileTooBig, errTooBig)
	}
	body, err := os.ReadFile(path)
	if err != nil {
		return failure(u.String(), core.ErrFailed, err)
	}
	contentType := mime.TypeByExtension(filepath.Ext(path))
	if contentType == "" {
		contentType = mimetype.Detect(body).String()
	}
	res := eventloop.LoadResult{Status: 200, Body: body, FinalURL: u.String()}
	res.MimeType, res.Charset = splitContentType(contentType)
	return res
}

func (l *loader) loadHTTP(ctx context.Context, u *url.URL) eventloop.LoadResult {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return failure(u.String(), core.ErrInvalidURL, err)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Encoding", "br, gzip, deflate, zstd")
	if l.userAgent != "" {
		req.Header.Set("User-Agent", l.userAgent)
	}
	if l.acceptLanguage != "" {
		req.Header.Set("Accept-Language", l.acceptLanguage)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return failure(u.String(), classifyNetError(ctx, err), err)
	}
	defer resp.Body.Close()

	body, err := decodeBody(resp.Header.Get("Content-Encoding"), resp.Body, l.maxBytes)
	if err != nil {
		if errors.Is(err, errTooBig) {
			return failure(u.String(), core.ErrFileTooBig, err)
		}
		return failure(u.String(), classifyNetError(ctx, err), err)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = mimetype.Detect(body).String()
	}
	res := eventloop.LoadResult{
		Status:   resp.StatusCode,
		Body:     body,
		FinalURL: resp.Request.URL.String(),
	}
	res.MimeType, res.Charset = splitContentType(contentType)
	return res
}

func splitContentType(contentType string) (mimeType, charset string) {
	mt, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "text/html", ""
	}
	return mt, params["charset"]
}

// decodeBody undoes Content-Encoding and enforces limit on the decoded size.
func decodeBody(encoding string, r io.Reader, limit int64) ([]byte, error) {
	var dec io.Reader
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "", "identity":
		dec = r
	case "br":
		dec = brotli.NewReader(r)
	case "gzip", "x-gzip":
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("gzip: %w", err)
		}
		defer gz.Close()
		dec = gz
	case "deflate":
		// Servers send both zlib-wrapped and raw deflate under this name.
		buffered := &peekReader{r: r}
		if zr, err := zlib.NewReader(buffered); err == nil {
			defer zr.Close()
			dec = zr
		} else {
			dec = flate.NewReader(buffered.rewind())
		}
	case "zstd":
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("zstd: %w", err)
		}
		defer zr.Close()
		dec = zr
	default:
		return nil, fmt.Errorf("unsupported content encoding %q", encoding)
	}

	body, err := io.ReadAll(io.LimitReader(dec, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > limit {
		return nil, errTooBig
	}
	return body, nil
}

// peekReader records what it has read so a failed zlib header probe can be
// replayed as raw deflate.
type peekReader struct {
	r    io.Reader
	seen []byte
}

func (p *peekReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	p.seen = append(p.seen, b[:n]...)
	return n, err
}

func (p *peekReader) rewind() io.Reader {
	return io.MultiReader(strings.NewReader(string(p.seen)), p.r)
}

func classifyNetError(ctx context.Context, err error) core.ErrorCode {
	if errors.Is(ctx.Err(), context.Canceled) || errors.Is(err, context.Canceled) {
		return core.ErrAborted
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return core.ErrTimedOut
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return core.ErrNameNotResolved
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return core.ErrConnectionRefused
	}
	return core.ErrFailed
}
