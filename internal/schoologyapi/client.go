// client.go contains the transport for the schoology REST api, the calls themselves
// live in assignments.go.

package schoologyapi

import (
	"errors"
	"fmt"
	"net/url"
	"schoology-export/internal/components/assert"
	"schoology-export/internal/components/chrono"
	"schoology-export/internal/components/telemetry"
	"strconv"
	"strings"
	"time"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"github.com/mazen160/go-random"
	"golang.org/x/time/rate"
)

const DefaultBaseUrl = "https://api.schoology.com/v1"

const (
	report_client_sign_request = "client.sign-request"
)

// ErrUnexpectedStatus is returned when the api responds with a non-2xx status.
var ErrUnexpectedStatus = errors.New("unexpected status")

type ClientOptions struct {
	// defaults to DefaultBaseUrl
	BaseUrl        string
	ConsumerKey    string
	ConsumerSecret string
	// requests per second, defaults to 10 (schoology allows 50 requests per 5 seconds)
	RateLimit float64
	// defaults to 30 seconds
	Timeout time.Duration
}

type Client struct {
	BaseUrl *url.URL
	Http    *resty.Client

	consumerKey    string
	consumerSecret string
	clock          chrono.API
	tel            telemetry.API
}

func NewClient(opts ClientOptions, clock chrono.API, tel telemetry.API) (*Client, error) {
	assert.NotEmptyStr(opts.ConsumerKey)
	assert.NotEmptyStr(opts.ConsumerSecret)
	assert.NotNil(clock)
	assert.NotNil(tel)

	tel = telemetry.NewScopedAPI("schoology_api", tel)

	if opts.BaseUrl == "" {
		opts.BaseUrl = DefaultBaseUrl
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 10
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}

	parsedBaseUrl, err := url.Parse(strings.TrimSuffix(opts.BaseUrl, "/"))
	if err != nil {
		return nil, err
	}

	httpClient := resty.New()
	httpClient.SetBaseURL(parsedBaseUrl.String())
	httpClient.SetTimeout(opts.Timeout)
	httpClient.SetHeader("accept", "application/json")
	httpClient.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(httpClient.GetClient().Transport)

	c := &Client{
		BaseUrl:        parsedBaseUrl,
		Http:           httpClient,
		consumerKey:    opts.ConsumerKey,
		consumerSecret: opts.ConsumerSecret,
		clock:          clock,
		tel:            tel,
	}

	// max burst == rate just means that no requests will be dropped
	rateLimiter := rate.NewLimiter(rate.Limit(opts.RateLimit), max(1, int(opts.RateLimit)))
	httpClient.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		return rateLimiter.Wait(req.Context())
	})
	httpClient.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		header, err := c.authorization()
		if err != nil {
			c.tel.ReportBroken(report_client_sign_request, err)
			return err
		}
		req.SetHeader("Authorization", header)
		return nil
	})

	telemetry.InstrumentResty(httpClient, tel)

	return c, nil
}

// percentEncode encodes according to RFC 3986 as oauth requires, url.QueryEscape
// encodes spaces as '+' which oauth does not accept.
func percentEncode(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

// authorization builds a two-legged oauth 1.0 header using the PLAINTEXT signature
// method, the only one schoology needs for consumer key/secret access.
func (c *Client) authorization() (string, error) {
	nonce, err := random.String(16)
	if err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	timestamp := strconv.FormatInt(c.clock.Now().Unix(), 10)
	// the token secret is empty for two-legged requests
	signature := percentEncode(c.consumerSecret) + "&"

	params := [][2]string{
		{"realm", "Schoology API"},
		{"oauth_consumer_key", c.consumerKey},
		{"oauth_token", ""},
		{"oauth_nonce", nonce},
		{"oauth_timestamp", timestamp},
		{"oauth_signature_method", "PLAINTEXT"},
		{"oauth_version", "1.0"},
		{"oauth_signature", signature},
	}

	var out strings.Builder
	out.WriteString("OAuth ")
	for i, p := range params {
		if i > 0 {
			out.WriteString(", ")
		}
		value := percentEncode(p[1])
		if p[0] == "realm" {
			value = p[1]
		}
		fmt.Fprintf(&out, `%s="%s"`, p[0], value)
	}
	return out.String(), nil
}

func checkStatus(res *resty.Response) error {
	if res.IsSuccess() {
		return nil
	}
	return fmt.Errorf("%w: %s %s: %s", ErrUnexpectedStatus, res.Request.Method, res.Request.URL, res.Status())
}
