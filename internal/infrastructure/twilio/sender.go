// Package twilio sends SMS through the Twilio Messages API.
package twilio

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	twiliosdk "github.com/twilio/twilio-go"
	"github.com/twilio/twilio-go/client"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
)

const DefaultBaseURL = "https://api.twilio.com"

// Sender posts messages from a fixed Twilio number.
type Sender struct {
	baseURL string
	from    string
	rest    *twiliosdk.RestClient
}

// NewSender builds a sender. An empty baseURL means DefaultBaseURL; any other
// value redirects every SDK request to that host.
func NewSender(baseURL, accountSID, authToken, from string) *Sender {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")

	httpClient := &http.Client{Timeout: 10 * time.Second}
	if baseURL != DefaultBaseURL {
		if u, err := url.Parse(baseURL); err == nil && u.Host != "" {
			httpClient.Transport = &baseURLTransport{base: u, next: http.DefaultTransport}
		}
	}

	c := &client.Client{
		Credentials: client.NewCredentials(accountSID, authToken),
		HTTPClient:  httpClient,
	}
	c.SetAccountSid(accountSID)

	return &Sender{
		baseURL: baseURL,
		from:    from,
		rest:    twiliosdk.NewRestClientWithParams(twiliosdk.ClientParams{Client: c}),
	}
}

// SendSMS returns errors that carry the Twilio status and error code only.
// Twilio messages echo the destination number, so they are dropped.
func (s *Sender) SendSMS(ctx context.Context, to, message string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("twilio: %w", err)
	}

	params := &openapi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(s.from)
	params.SetBody(message)

	if _, err := s.rest.Api.CreateMessage(params); err != nil {
		var restErr *client.TwilioRestError
		if errors.As(err, &restErr) {
			return fmt.Errorf("twilio: status %d: code %d", restErr.Status, restErr.Code)
		}
		return fmt.Errorf("twilio: %s", strings.ReplaceAll(err.Error(), to, "[redacted]"))
	}
	return nil
}

// baseURLTransport rewrites the scheme and host of outgoing requests.
type baseURLTransport struct {
	base *url.URL
	next http.RoundTripper
}

func (t *baseURLTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())
	r.URL.Scheme = t.base.Scheme
	r.URL.Host = t.base.Host
	r.Host = t.base.Host
	return t.next.RoundTrip(r)
}
