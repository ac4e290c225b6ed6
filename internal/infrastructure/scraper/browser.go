package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

const (
	defaultPageTimeout    = 45 * time.Second
	defaultAcceptLanguage = "el-GR,el;q=0.9,en;q=0.8"
)

// ErrPage wraps failures to load a page.
var ErrPage = errors.New("scraper: page load failed")

// Browser loads a page and returns its rendered HTML.
type Browser interface {
	HTML(ctx context.Context, url string) (string, error)
}

// ChromeConfig configures the headless Chrome browser
type ChromeConfig struct {
	// RemoteURL is the DevTools endpoint of a running Chrome. Empty starts a local one.
	RemoteURL string
	// ExecPath overrides the Chrome binary.
	ExecPath    string
	PageTimeout time.Duration
	// NoSandbox is required when running as root in containers.
	NoSandbox bool
	// WaitSelector is awaited before the HTML is read. Defaults to body.
	WaitSelector string
	// AcceptLanguage is sent with every request. Supplier sites serve
	// their Greek availability labels only for Greek locales.
	AcceptLanguage string
	Logger         *zap.Logger
}

// ChromeBrowser renders pages in headless Chrome so sites that build their
// catalog with JavaScript can be read.
type ChromeBrowser struct {
	config      ChromeConfig
	logger      *zap.Logger
	allocCtx    context.Context
	allocCancel context.CancelFunc
}

// NewChromeBrowser creates the browser allocator. Chrome itself starts on the
// first page load.
func NewChromeBrowser(config ChromeConfig) *ChromeBrowser {
	if config.PageTimeout == 0 {
		config.PageTimeout = defaultPageTimeout
	}
	if config.WaitSelector == "" {
		config.WaitSelector = "body"
	}
	if config.AcceptLanguage == "" {
		config.AcceptLanguage = defaultAcceptLanguage
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	b := &ChromeBrowser{config: config, logger: logger}
	if config.RemoteURL != "" {
		b.allocCtx, b.allocCancel = chromedp.NewRemoteAllocator(context.Background(), config.RemoteURL)
		return b
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("blink-settings", "imagesEnabled=false"),
		chromedp.UserAgent("Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0 Safari/537.36"),
	)
	if config.NoSandbox {
		opts = append(opts, chromedp.Flag("no-sandbox", true))
	}
	if config.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(config.ExecPath))
	}
	b.allocCtx, b.allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
	return b
}

// HTML navigates to url and returns the document once it is ready.
func (b *ChromeBrowser) HTML(ctx context.Context, url string) (string, error) {
	tabCtx, cancelTab := chromedp.NewContext(b.allocCtx,
		chromedp.WithLogf(func(format string, args ...interface{}) {
			b.logger.Debug(fmt.Sprintf(format, args...))
		}),
	)
	defer cancelTab()

	// chromedp contexts derive from the allocator, so the caller's
	// cancellation is bridged by hand.
	tabCtx, cancelTimeout := context.WithTimeout(tabCtx, b.config.PageTimeout)
	defer cancelTimeout()
	stop := context.AfterFunc(ctx, cancelTimeout)
	defer stop()

	var html string
	err := chromedp.Run(tabCtx,
		network.Enable(),
		network.SetExtraHTTPHeaders(network.Headers{"Accept-Language": b.config.AcceptLanguage}),
		chromedp.Navigate(url),
		chromedp.WaitReady(b.config.WaitSelector, chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrPage, url, err)
	}
	return html, nil
}

// Close shuts the browser down.
func (b *ChromeBrowser) Close() {
	if b.allocCancel != nil {
		b.allocCancel()
	}
}

// HTTPBrowser fetches pages without rendering them. It serves sites whose
// catalog pages are plain server-rendered HTML.
type HTTPBrowser struct {
	client *http.Client
}

// NewHTTPBrowser creates an HTTPBrowser. A nil client uses a default one.
func NewHTTPBrowser(client *http.Client) *HTTPBrowser {
	if client == nil {
		client = &http.Client{Timeout: defaultPageTimeout}
	}
	return &HTTPBrowser{client: client}
}

// HTML fetches url.
func (b *HTTPBrowser) HTML(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrPage, err)
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrPage, url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: %s: HTTP %d", ErrPage, url, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrPage, url, err)
	}
	return string(body), nil
}
