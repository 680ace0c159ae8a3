// Package httpfetch is the plain-HTTP session: it fetches server-rendered
// pages with a cookie-carrying resty client.
package httpfetch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"golang.org/x/net/html/charset"

	"review-scraper/config"
	"review-scraper/models"
	"review-scraper/scraper"
	"review-scraper/utils"
)

// Client is a scraper.Session over HTTP.
type Client struct {
	http   *resty.Client
	cfg    *config.Config
	logger *utils.Logger
}

func New(cfg *config.Config, logger *utils.Logger) (*Client, error) {
	client := resty.New()
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	client.SetCookieJar(jar)
	client.SetHeader("user-agent", cfg.UserAgent)
	client.SetHeader("accept-language", "vi-VN,vi;q=0.9,en;q=0.8")
	if cfg.CloudflareBypass {
		client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)
	}

	return &Client{http: client, cfg: cfg, logger: logger}, nil
}

// SetTransport replaces the underlying round tripper.
func (c *Client) SetTransport(rt http.RoundTripper) {
	c.http.SetTransport(rt)
}

// Load fetches url and returns the decoded document. Non-2xx statuses and
// timeouts come back as *scraper.NavigationError.
func (c *Client) Load(ctx context.Context, url string) (*models.Page, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.NavTimeout())
	defer cancel()

	res, err := c.http.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, &scraper.NavigationError{URL: url, Err: err}
	}
	if res.IsError() {
		return nil, &scraper.NavigationError{URL: url, Status: res.StatusCode(), Err: fmt.Errorf("%s", res.Status())}
	}

	body, err := decode(res.Body(), res.Header().Get("Content-Type"))
	if err != nil {
		return nil, &scraper.NavigationError{URL: url, Err: err}
	}

	c.logger.Debug("[http] GET %s -> %d (%d bytes)", url, res.StatusCode(), len(body))
	return &models.Page{URL: finalURL(res, url), HTML: body}, nil
}

func (c *Client) Close() error {
	return nil
}

// decode converts body to UTF-8 using the content type and any <meta charset>.
func decode(body []byte, contentType string) (string, error) {
	r, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		return "", fmt.Errorf("charset: %w", err)
	}
	out, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("charset: %w", err)
	}
	return string(out), nil
}

func finalURL(res *resty.Response, fallback string) string {
	if res.RawResponse != nil && res.RawResponse.Request != nil && res.RawResponse.Request.URL != nil {
		return res.RawResponse.Request.URL.String()
	}
	return fallback
}
