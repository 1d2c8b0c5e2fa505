package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGet_Success(t *testing.T) {
	var gotUA, gotAccept string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotAccept = r.Header.Get("Accept")
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html><body><h1>Test</h1></body></html>"))
	}))
	defer server.Close()

	doc, err := Get(context.Background(), server.URL, &Options{UserAgent: "test-agent"})
	require.NoError(t, err)
	assert.Equal(t, server.URL, doc.FinalURL)
	assert.Contains(t, doc.HTML, "<h1>Test</h1>")
	assert.Equal(t, http.StatusOK, doc.StatusCode)
	assert.Equal(t, "test-agent", gotUA)
	assert.Equal(t, "text/html,application/xhtml+xml", gotAccept)
}

func TestGet_FollowsRedirects(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/new", http.StatusFound)
	})
	mux.HandleFunc("/new", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<p>moved</p>"))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	doc, err := Get(context.Background(), server.URL+"/old", nil)
	require.NoError(t, err)
	assert.Equal(t, server.URL+"/new", doc.FinalURL)
}

func TestGet_InvalidURL(t *testing.T) {
	for _, u := range []string{"not-a-valid-url", "ftp://example.com/file"} {
		_, err := Get(context.Background(), u, nil)
		require.Error(t, err)

		var fetchErr *Error
		assert.ErrorAs(t, err, &fetchErr)
		assert.Contains(t, err.Error(), "invalid URL")
	}
}

func TestGet_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	doc, err := Get(context.Background(), server.URL, nil)
	require.Error(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, http.StatusNotFound, doc.StatusCode)

	var fetchErr *Error
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, http.StatusNotFound, fetchErr.StatusCode)
	assert.Contains(t, err.Error(), "404")
}

func TestGet_DeadlineReturnsContextError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := Get(ctx, server.URL, nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestExtractMainText_WithMainElement(t *testing.T) {
	html := `
	<html>
		<body>
			<nav>Navigation</nav>
			<main>
				<h1>Main Content</h1>
				<p>This is the   important text.</p>
			</main>
			<footer>Footer</footer>
		</body>
	</html>`

	text, err := ExtractMainText(html, CompanyPageSelectors())
	require.NoError(t, err)
	assert.Contains(t, text, "Main Content")
	assert.Contains(t, text, "This is the important text.")
	assert.NotContains(t, text, "Navigation")
	assert.NotContains(t, text, "Footer")
}

func TestExtractMainText_FallbackToBody(t *testing.T) {
	text, err := ExtractMainText(`<html><body><div>Some content here.</div></body></html>`, CompanyPageSelectors())
	require.NoError(t, err)
	assert.Equal(t, "Some content here.", text)
}

func TestExtractMainText_PlatformNoise(t *testing.T) {
	html := `
	<html>
		<body>
			<div class="sidebar">Sidebar junk</div>
			<div class="job__description">
				<h2>Requirements</h2>
				<p>5 years experience in Go</p>
				<div class="voluntary-self-id">Self identification</div>
			</div>
		</body>
	</html>`

	text, err := ExtractMainText(html, ContentSelectors(PlatformGreenhouse), NoiseSelectors(PlatformGreenhouse)...)
	require.NoError(t, err)
	assert.Contains(t, text, "Requirements")
	assert.Contains(t, text, "5 years experience")
	assert.NotContains(t, text, "Sidebar junk")
	assert.NotContains(t, text, "Self identification")
}

func TestDocumentFetcher_MemoizesByURL(t *testing.T) {
	var hits atomic.Int32
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		<-release
		_, _ = w.Write([]byte("<html><body>posting</body></html>"))
	}))
	defer server.Close()

	f := NewDocumentFetcher(nil, time.Minute, FetcherConfig{})

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			doc, err := f.Fetch(context.Background(), server.URL)
			assert.NoError(t, err)
			assert.Contains(t, doc.HTML, "posting")
		}()
	}
	require.Eventually(t, func() bool { return hits.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(10 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.True(t, f.Cached(server.URL))
	_, err := f.Fetch(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, int32(1), hits.Load())
}

func TestDocumentFetcher_FailuresNotCached(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	f := NewDocumentFetcher(nil, time.Minute, FetcherConfig{})

	_, err := f.Fetch(context.Background(), server.URL)
	var fetchErr *Error
	require.ErrorAs(t, err, &fetchErr)
	assert.False(t, f.Cached(server.URL))

	doc, err := f.Fetch(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, "ok", doc.HTML)
}

func TestDocumentFetcher_BrowserFallbackForThinPages(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html><body><div id="root"></div></body></html>`))
	}))
	defer server.Close()

	rendered := "<html><body><main>" + strings.Repeat("Rendered job text. ", 40) + "</main></body></html>"
	var renders atomic.Int32
	f := NewDocumentFetcher(nil, time.Minute, FetcherConfig{
		UseBrowser: true,
		Renderer: func(ctx context.Context, url string) (string, error) {
			renders.Add(1)
			return rendered, nil
		},
	})

	doc, err := f.Fetch(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, rendered, doc.HTML)
	assert.Equal(t, int32(1), renders.Load())
}

func TestDocumentFetcher_NoBrowserForRichPages(t *testing.T) {
	page := "<html><body><main>" + strings.Repeat("Plenty of server rendered text. ", 40) + "</main></body></html>"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(page))
	}))
	defer server.Close()

	f := NewDocumentFetcher(nil, time.Minute, FetcherConfig{
		UseBrowser: true,
		Renderer: func(ctx context.Context, url string) (string, error) {
			t.Fatal("renderer should not be called")
			return "", nil
		},
	})

	doc, err := f.Fetch(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, page, doc.HTML)
}

func TestShouldUseBrowser(t *testing.T) {
	assert.True(t, ShouldUseBrowser(""))
	assert.True(t, ShouldUseBrowser("   Loading...   "))
	assert.False(t, ShouldUseBrowser(strings.Repeat("a", MinContentLength)))
}

func TestHeadlessOptions(t *testing.T) {
	base := len(chromedp.DefaultExecAllocatorOptions)
	assert.Len(t, headlessOptions(""), base+4)
	assert.Len(t, headlessOptions("custom/1.0"), base+4)
}

func TestDocumentFetcher_DeadlineCancelsUpstreamRequest(t *testing.T) {
	upstreamDone := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
		close(upstreamDone)
	}))
	defer server.Close()

	f := NewDocumentFetcher(nil, time.Minute, FetcherConfig{})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := f.Fetch(ctx, server.URL)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	select {
	case <-upstreamDone:
	case <-time.After(2 * time.Second):
		t.Fatal("upstream request still open after the caller's deadline")
	}
	assert.False(t, f.Cached(server.URL))
}

func TestDocumentFetcher_SharedRequestSurvivesOneCaller(t *testing.T) {
	release := make(chan struct{})
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		select {
		case <-release:
			_, _ = w.Write([]byte("<html><body>posting</body></html>"))
		case <-r.Context().Done():
		}
	}))
	defer server.Close()

	f := NewDocumentFetcher(nil, time.Minute, FetcherConfig{})
	impatient, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := f.Fetch(impatient, server.URL)
		firstErr <- err
	}()
	require.Eventually(t, func() bool { return hits.Load() == 1 }, time.Second, time.Millisecond)

	second := make(chan *Document, 1)
	go func() {
		doc, _ := f.Fetch(context.Background(), server.URL)
		second <- doc
	}()
	require.Eventually(t, func() bool { return f.cache.Waiting(server.URL) == 2 }, time.Second, time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-firstErr, context.Canceled)
	close(release)

	doc := <-second
	require.NotNil(t, doc)
	assert.Contains(t, doc.HTML, "posting")
	assert.Equal(t, int32(1), hits.Load())
}

func TestNewHTTPClient(t *testing.T) {
	c := NewHTTPClient(45 * time.Second)
	assert.Equal(t, 45*time.Second, c.Timeout)
	tr, ok := c.Transport.(*http.Transport)
	require.True(t, ok)
	assert.Equal(t, TLSHandshakeTimeout, tr.TLSHandshakeTimeout)
	assert.Equal(t, 45*time.Second, tr.ResponseHeaderTimeout)

	assert.Equal(t, DefaultTimeout, NewHTTPClient(0).Timeout)
}
