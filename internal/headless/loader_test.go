package headless

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cryguy/offscreen/internal/core"
)

const samplePage = "<html><head><title>Hi</title></head><body>hello</body></html>"

func compress(t *testing.T, encoding string, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	var w io.WriteCloser
	switch encoding {
	case "gzip":
		w = gzip.NewWriter(&buf)
	case "br":
		w = brotli.NewWriter(&buf)
	case "zlib":
		w = zlib.NewWriter(&buf)
	case "deflate":
		fw, err := flate.NewWriter(&buf, flate.DefaultCompression)
		require.NoError(t, err)
		w = fw
	case "zstd":
		zw, err := zstd.NewWriter(&buf)
		require.NoError(t, err)
		w = zw
	}
	_, err := w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestDecodeBody(t *testing.T) {
	cases := []struct {
		name     string
		header   string
		encoding string
	}{
		{"identity", "", ""},
		{"gzip", "gzip", "gzip"},
		{"brotli", "br", "br"},
		{"zlib deflate", "deflate", "zlib"},
		{"raw deflate", "deflate", "deflate"},
		{"zstd", "zstd", "zstd"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			body := []byte(samplePage)
			if tc.encoding != "" {
				body = compress(t, tc.encoding, body)
			}
			got, err := decodeBody(tc.header, bytes.NewReader(body), 1<<20)
			require.NoError(t, err)
			assert.Equal(t, samplePage, string(got))
		})
	}
}

func TestDecodeBody_Limits(t *testing.T) {
	_, err := decodeBody("", strings.NewReader(strings.Repeat("x", 11)), 10)
	assert.ErrorIs(t, err, errTooBig)

	_, err = decodeBody("compress", strings.NewReader("x"), 10)
	assert.Error(t, err)
}

func testLoader() *loader {
	return newLoader(core.Settings{UserAgent: "offscreen-test", AcceptLanguage: "de-DE", NetworkTimeout: 5 * time.Second, MaxResponseBytes: 1 << 20})
}

func TestLoadHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/gz":
			assert.Contains(t, r.Header.Get("Accept-Encoding"), "zstd")
			assert.Equal(t, "offscreen-test", r.Header.Get("User-Agent"))
			assert.Equal(t, "de-DE", r.Header.Get("Accept-Language"))
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.Header().Set("Content-Encoding", "gzip")
			_, _ = w.Write(compress(t, "gzip", []byte(samplePage)))
		case "/redirect":
			http.Redirect(w, r, "/gz", http.StatusFound)
		case "/missing":
			w.Header().Set("Content-Type", "text/html")
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, "<p>gone</p>")
		case "/big":
			_, _ = w.Write(bytes.Repeat([]byte("x"), 2<<20))
		}
	}))
	defer srv.Close()
	l := testLoader()

	res := l.load(context.Background(), srv.URL+"/redirect")
	require.NoError(t, res.Err)
	assert.Equal(t, 200, res.Status)
	assert.Equal(t, "text/html", res.MimeType)
	assert.Equal(t, "utf-8", res.Charset)
	assert.Equal(t, samplePage, string(res.Body))
	assert.Equal(t, srv.URL+"/gz", res.FinalURL)

	res = l.load(context.Background(), srv.URL+"/missing")
	require.NoError(t, res.Err)
	assert.Equal(t, 404, res.Status)

	res = l.load(context.Background(), srv.URL+"/big")
	assert.Equal(t, core.ErrFileTooBig, res.Code)
}

func TestLoadHTTP_Cancelled(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	ch := testLoader().start(ctx, srv.URL)
	cancel()
	select {
	case res := <-ch:
		assert.Equal(t, core.ErrAborted, res.Code)
	case <-time.After(5 * time.Second):
		t.Fatal("cancelled load did not finish")
	}
}

func TestLoadHTTP_ConnectionRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	res := testLoader().load(context.Background(), "http://"+addr+"/")
	assert.Equal(t, core.ErrConnectionRefused, res.Code)
}

func TestLoadSchemes(t *testing.T) {
	l := testLoader()
	ctx := context.Background()

	res := l.load(ctx, "about:blank")
	require.NoError(t, res.Err)
	assert.Equal(t, blankDocument, string(res.Body))

	res = l.load(ctx, "about:nothing")
	assert.Equal(t, core.ErrInvalidURL, res.Code)

	res = l.load(ctx, "gopher://example.com/")
	assert.Equal(t, core.ErrUnknownURLScheme, res.Code)

	res = l.load(ctx, "data:text/html;charset=utf-8,%3Cp%3Ehi%3C%2Fp%3E")
	require.NoError(t, res.Err)
	assert.Equal(t, "text/html", res.MimeType)
	assert.Equal(t, "<p>hi</p>", string(res.Body))

	res = l.load(ctx, "data:text/html;base64,PGI+eDwvYj4=")
	require.NoError(t, res.Err)
	assert.Equal(t, "<b>x</b>", string(res.Body))

	res = l.load(ctx, "data:,plain")
	require.NoError(t, res.Err)
	assert.Equal(t, "text/plain", res.MimeType)

	res = l.load(ctx, "data:text/html;base64")
	assert.Equal(t, core.ErrInvalidURL, res.Code)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index.html")
	require.NoError(t, os.WriteFile(path, []byte(samplePage), 0o644))
	l := testLoader()

	res := l.load(context.Background(), "file://"+filepath.ToSlash(path))
	require.NoError(t, res.Err)
	assert.Equal(t, "text/html", res.MimeType)
	assert.Equal(t, samplePage, string(res.Body))

	res = l.load(context.Background(), "file://"+filepath.ToSlash(filepath.Join(dir, "nope.html")))
	assert.Equal(t, core.ErrFileNotFound, res.Code)
}

func TestSplitContentType(t *testing.T) {
	mt, cs := splitContentType("Text/HTML; Charset=ISO-8859-1")
	assert.Equal(t, "text/html", mt)
	assert.Equal(t, "ISO-8859-1", cs)

	mt, cs = splitContentType(";;;")
	assert.Equal(t, "text/html", mt)
	assert.Equal(t, "", cs)
}
