package prefetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPWarmer prefetches routes and images with plain GETs against the
// marketplace origin, relying on the HTTP cache to make the later real
// request cheap. Implements both RoutePrefetcher and ImageLoader.
type HTTPWarmer struct {
	BaseURL string
	Client  *http.Client
}

func NewHTTPWarmer(baseURL string) *HTTPWarmer {
	return &HTTPWarmer{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (w *HTTPWarmer) PrefetchRoute(ctx context.Context, route string) error {
	return w.get(ctx, w.BaseURL+"/"+strings.TrimLeft(route, "/"))
}

func (w *HTTPWarmer) LoadImage(ctx context.Context, src string) error {
	url := src
	if !strings.HasPrefix(src, "http://") && !strings.HasPrefix(src, "https://") {
		url = w.BaseURL + "/" + strings.TrimLeft(src, "/")
	}
	return w.get(ctx, url)
}

func (w *HTTPWarmer) get(ctx context.Context, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := w.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	// Drain so the connection can be reused; the payload itself is the point.
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= 400 {
		return fmt.Errorf("warm %s: status %d", url, resp.StatusCode)
	}
	return nil
}
