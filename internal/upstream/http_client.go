package upstream

import (
	"context"
	"errors"
	"math/rand"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	utls "github.com/refraction-networking/utls"
)

// BrowserClient issues requests that look like they come from a desktop
// browser session. With LLMRELAY_UTLS=1 the TLS handshake itself carries a
// Chrome fingerprint.
type BrowserClient struct {
	client      *http.Client
	userAgents  []string
	langs       []string
	rng         *rand.Rand
	mu          sync.Mutex
	defaultUA   string
	defaultLang string
}

// NewBrowserClient creates a browser-shaped HTTP client with the given
// request timeout.
func NewBrowserClient(timeout time.Duration) *BrowserClient {
	useUTLS := strings.TrimSpace(os.Getenv("LLMRELAY_UTLS")) == "1"
	client := &http.Client{
		Timeout:   timeout,
		Transport: newTransport(useUTLS),
	}

	return &BrowserClient{
		client: client,
		userAgents: []string{
			"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.3 Safari/605.1.15",
			"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
		},
		langs:       []string{"en-US,en;q=0.9", "en-GB,en;q=0.8"},
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
		defaultUA:   "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		defaultLang: "en-US,en;q=0.9",
	}
}

// Do applies browser headers and sends the request.
func (bc *BrowserClient) Do(req *http.Request) (*http.Response, error) {
	if req == nil {
		return nil, errors.New("nil request")
	}
	bc.applyHeaders(req)
	return bc.client.Do(req)
}

func (bc *BrowserClient) applyHeaders(req *http.Request) {
	bc.mu.Lock()
	defer bc.mu.Unlock()

	ua := bc.defaultUA
	lang := bc.defaultLang
	if len(bc.userAgents) > 0 {
		ua = bc.userAgents[bc.rng.Intn(len(bc.userAgents))]
	}
	if len(bc.langs) > 0 {
		lang = bc.langs[bc.rng.Intn(len(bc.langs))]
	}

	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", ua)
	}
	if req.Header.Get("Accept-Language") == "" {
		req.Header.Set("Accept-Language", lang)
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "*/*")
	}
	if req.Header.Get("Sec-CH-UA") == "" {
		req.Header.Set("Sec-CH-UA", `"Chromium";v="120", "Not(A:Brand";v="8", "Google Chrome";v="120"`)
	}
	if req.Header.Get("Sec-CH-UA-Mobile") == "" {
		req.Header.Set("Sec-CH-UA-Mobile", "?0")
	}
	if req.Header.Get("Sec-CH-UA-Platform") == "" {
		req.Header.Set("Sec-CH-UA-Platform", `"Windows"`)
	}
	req.Header.Set("Sec-Fetch-Dest", "empty")
	req.Header.Set("Sec-Fetch-Mode", "cors")
	req.Header.Set("Sec-Fetch-Site", "same-origin")
	req.Header.Set("Cache-Control", "no-cache")
}

func newTransport(useUTLS bool) http.RoundTripper {
	if !useUTLS {
		return &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   10 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout: 10 * time.Second,
			MaxIdleConns:        100,
			IdleConnTimeout:     90 * time.Second,
		}
	}

	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialTLSContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			dialer := &net.Dialer{Timeout: 10 * time.Second}
			rawConn, err := dialer.DialContext(ctx, network, addr)
			if err != nil {
				return nil, err
			}
			host := addr
			if strings.Contains(addr, ":") {
				host, _, _ = net.SplitHostPort(addr)
			}
			config := &utls.Config{
				ServerName: host,
				NextProtos: []string{"h2", "http/1.1"},
			}
			uconn := utls.UClient(rawConn, config, utls.HelloChrome_120)
			if err := uconn.Handshake(); err != nil {
				_ = rawConn.Close()
				return nil, err
			}
			return uconn, nil
		},
		TLSHandshakeTimeout: 10 * time.Second,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
	}
}
