package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractText(t *testing.T) {
	t.Parallel()

	page := `<html><head><title>T</title><style>p{}</style></head>
<body><nav>menu</nav><h1>Heading</h1><p>First   paragraph.</p>
<script>var x = 1;</script><p>Second</p><footer>foot</footer></body></html>`

	assert.Equal(t, "T Heading First paragraph. Second", ExtractText(page))
}

func TestIsURL(t *testing.T) {
	t.Parallel()

	assert.True(t, IsURL("https://example.com"))
	assert.True(t, IsURL("  http://example.com"))
	assert.True(t, IsURL("www.example.com"))
	assert.False(t, IsURL("just some text"))
}

func TestFetch_HTML(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, userAgent, r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(`<p>Hello <b>audit</b> trail</p>`))
	}))
	defer srv.Close()

	text, err := New(srv.Client()).Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "Hello audit trail", text)
}

func TestFetch_PlainText(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("  line one\n\nline   two "))
	}))
	defer srv.Close()

	text, err := New(srv.Client()).Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "line one line two", text)
}

func TestFetch_Errors(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/missing":
			http.NotFound(w, r)
		case "/empty":
			w.Header().Set("Content-Type", "text/html")
			w.Write([]byte(`<script>only()</script>`))
		}
	}))
	defer srv.Close()

	f := New(srv.Client())
	ctx := context.Background()

	_, err := f.Fetch(ctx, srv.URL+"/missing")
	assert.ErrorContains(t, err, "HTTP 404")

	_, err = f.Fetch(ctx, srv.URL+"/empty")
	assert.ErrorIs(t, err, ErrNoText)

	_, err = f.Fetch(ctx, "ftp://example.com/file")
	assert.ErrorContains(t, err, "unsupported scheme")
}
