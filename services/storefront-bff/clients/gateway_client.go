package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	apperrors "github.com/jewelrybyluna/storefront/services/common/errors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// GatewayClient talks to the upstream shop API.
type GatewayClient struct {
	baseURL string
	client  *http.Client
}

func NewGatewayClient(baseURL string, timeout time.Duration) *GatewayClient {
	return &GatewayClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

func (g *GatewayClient) Do(ctx context.Context, method, path string, query url.Values, headers http.Header, body io.Reader) (*http.Response, error) {
	u := g.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, err
	}

	for k, v := range headers {
		for _, vv := range v {
			req.Header.Add(k, vv)
		}
	}

	return g.client.Do(req)
}

// DoJSON sends in (when non-nil) as JSON with the bearer token and decodes the reply into
// out (when non-nil).
func (g *GatewayClient) DoJSON(ctx context.Context, method, path, token string, in, out any) error {
	headers := http.Header{}
	headers.Set("Accept", "application/json")
	if token != "" {
		headers.Set("Authorization", "Bearer "+token)
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(b)
		headers.Set("Content-Type", "application/json")
	}

	resp, err := g.Do(ctx, method, path, nil, headers, body)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrUpstream, err)
	}
	return DecodeJSON(resp, out)
}

type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// DecodeJSON decodes a successful response into out. Error responses become an upstream
// *errors.Error carrying the server's message when it sent one.
func DecodeJSON(resp *http.Response, out any) error {
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		var eb errorBody
		_ = json.Unmarshal(body, &eb)

		msg := strings.TrimSpace(eb.Message)
		if msg == "" {
			msg = strings.TrimSpace(eb.Error)
		}
		if msg == "" {
			msg = apperrors.ErrUpstream.Message
		}
		code := resp.StatusCode
		if code >= 500 {
			code = apperrors.ErrUpstream.Code
		}
		return apperrors.New(code, apperrors.ErrUpstream.Kind, msg,
			fmt.Errorf("upstream status=%d body=%s", resp.StatusCode, string(body)))
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperrors.Wrap(apperrors.ErrUpstream, fmt.Errorf("decode upstream response: %w", err))
	}
	return nil
}
