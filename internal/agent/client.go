package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker/v2"

	"snackpay/backend/internal/domain"
)

// httpClient wraps one remote endpoint behind a circuit breaker. Three
// consecutive failures open the breaker; a single probe is allowed through
// after the cool-off.
type httpClient struct {
	baseURL string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[[]byte]
}

func newHTTPClient(name string, baseURL string) *httpClient {
	return &httpClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
		breaker: gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
			Name:        name,
			MaxRequests: 1,
			Timeout:     15 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 3
			},
		}),
	}
}

type remoteError struct {
	Error string `json:"error"`
}

func (c *httpClient) do(ctx context.Context, method string, path string, body any, out any) error {
	var payload io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return err
		}
		payload = bytes.NewReader(encoded)
	}

	responseBody, err := c.breaker.Execute(func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, payload)
		if err != nil {
			return nil, err
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusOK {
			var remote remoteError
			if json.Unmarshal(raw, &remote) == nil && remote.Error != "" {
				return nil, fmt.Errorf("%s %s: %s (status %d)", method, path, remote.Error, resp.StatusCode)
			}
			return nil, fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode)
		}
		return raw, nil
	})
	if err != nil {
		return err
	}

	if out != nil {
		return json.Unmarshal(responseBody, out)
	}
	return nil
}

func (c *httpClient) postJSON(ctx context.Context, path string, body any, out any) error {
	return c.do(ctx, http.MethodPost, path, body, out)
}

func (c *httpClient) getJSON(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

// VendorClient speaks to one vendor process.
type VendorClient struct {
	http *httpClient
}

func NewVendorClient(name string, baseURL string) *VendorClient {
	return &VendorClient{http: newHTTPClient(name, baseURL)}
}

func (c *VendorClient) QueryCatalog(ctx context.Context, req domain.CatalogQueryRequest) (*domain.CatalogQueryResponse, error) {
	var resp domain.CatalogQueryResponse
	if err := c.http.postJSON(ctx, "/catalog/query", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *VendorClient) CreateQuote(ctx context.Context, req domain.QuoteCreateRequest) (*domain.Quote, error) {
	var quote domain.Quote
	if err := c.http.postJSON(ctx, "/quote/create", req, &quote); err != nil {
		return nil, err
	}
	return &quote, nil
}

func (c *VendorClient) Negotiate(ctx context.Context, req domain.NegotiateRequest) (*domain.NegotiateResponse, error) {
	var resp domain.NegotiateResponse
	if err := c.http.postJSON(ctx, "/negotiate", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *VendorClient) LockCart(ctx context.Context, req domain.CartLockRequest) (*domain.CartLockResponse, error) {
	var resp domain.CartLockResponse
	if err := c.http.postJSON(ctx, "/cart/lock", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *VendorClient) CartStatus(ctx context.Context, cartID string) (*domain.Cart, error) {
	var cart domain.Cart
	if err := c.http.getJSON(ctx, "/cart/status?cartId="+url.QueryEscape(cartID), &cart); err != nil {
		return nil, err
	}
	return &cart, nil
}

// SettlementClient speaks to the settlement process.
type SettlementClient struct {
	http *httpClient
}

func NewSettlementClient(baseURL string) *SettlementClient {
	return &SettlementClient{http: newHTTPClient("settlement", baseURL)}
}

func (c *SettlementClient) CreateMandate(ctx context.Context, req domain.MandateCreateRequest) (*domain.MandateResponse, error) {
	var resp domain.MandateResponse
	if err := c.http.postJSON(ctx, "/mandate/create", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *SettlementClient) Pay(ctx context.Context, req domain.PayRequest) (*domain.PayResponse, error) {
	var resp domain.PayResponse
	if err := c.http.postJSON(ctx, "/pay", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *SettlementClient) PaymentStatus(ctx context.Context, paymentID string) (*domain.PaymentStatusResponse, error) {
	var resp domain.PaymentStatusResponse
	if err := c.http.getJSON(ctx, "/payment/status?paymentId="+url.QueryEscape(paymentID), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
