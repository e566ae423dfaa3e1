package activity

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	coreerrors "github.com/davidahmann/loom/core/errors"
	schemaactivity "github.com/davidahmann/loom/core/schema/v1/activity"
)

// NetDoer executes HTTP activities against the live network. Record-mode
// clients use it as their outbound transport; replay-mode clients never
// touch it.
type NetDoer struct {
	Client *http.Client
}

func NewNetDoer(timeout time.Duration) *NetDoer {
	return &NetDoer{Client: &http.Client{Timeout: timeout}}
}

func (d *NetDoer) Do(ctx context.Context, url string, options schemaactivity.HTTPRequestOptions) (schemaactivity.HTTPResponse, error) {
	method := options.Method
	if method == "" {
		method = http.MethodGet
	}
	var body io.Reader
	if options.Body != "" {
		body = strings.NewReader(options.Body)
	}
	request, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return schemaactivity.HTTPResponse{}, coreerrors.Wrap(err, coreerrors.CategoryInvalidInput, "http_request_build", "check the request URL and method", false)
	}
	for key, value := range options.Headers {
		request.Header.Set(key, value)
	}

	response, err := d.client().Do(request)
	if err != nil {
		return schemaactivity.HTTPResponse{}, coreerrors.Wrap(err, coreerrors.CategoryNetworkTransient, "http_request_failed", "verify the endpoint is reachable", true)
	}
	defer func() { _ = response.Body.Close() }()

	payload, err := io.ReadAll(response.Body)
	if err != nil {
		return schemaactivity.HTTPResponse{}, coreerrors.Wrap(err, coreerrors.CategoryNetworkTransient, "http_response_read", "the response stream was interrupted", true)
	}

	headers := make(map[string]string, len(response.Header))
	for key := range response.Header {
		headers[key] = response.Header.Get(key)
	}
	return schemaactivity.HTTPResponse{
		Status:  response.StatusCode,
		Headers: headers,
		Body:    string(payload),
	}, nil
}

func (d *NetDoer) client() *http.Client {
	if d.Client != nil {
		return d.Client
	}
	return http.DefaultClient
}
