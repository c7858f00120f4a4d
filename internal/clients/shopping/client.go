package shopping

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"github.com/pkg/errors"
	"github.com/rankowl/rank-tracker/internal/clients"
	"github.com/rankowl/rank-tracker/internal/domain/models"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
	"io"
	"net/http"
	"time"
)

//rateLimitErrorCode is the provider's body-level "too many requests" code,
//returned alongside HTTP 200 by some gateway versions.
const rateLimitErrorCode = "012"

const rotationDelay = time.Second

type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

type CredentialSource interface {
	Next() (models.Credential, error)
	MarkLimited(id int)
	Size() int
}

type searchResponse struct {
	Total     int          `json:"total"`
	Start     int          `json:"start"`
	Display   int          `json:"display"`
	ErrorCode string       `json:"errorCode"`
	Items     []searchItem `json:"items"`
}

type searchItem struct {
	ProductID string `json:"productId"`
	Title     string `json:"title"`
	LPrice    string `json:"lprice"`
	MallName  string `json:"mallName"`
	Category1 string `json:"category1"`
	Category2 string `json:"category2"`
	Category3 string `json:"category3"`
	Category4 string `json:"category4"`
}

type Client struct {
	httpClient  HTTPClient
	credentials CredentialSource
	baseURL     string
	rateLimiter *rate.Limiter
}

func NewClient(baseURL string, credentials CredentialSource) *Client {
	return &Client{
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		credentials: credentials,
		baseURL:     baseURL,
	}
}

func (c *Client) SetHTTPClient(client HTTPClient) {
	c.httpClient = client
}

func (c *Client) SetRateLimit(maxRequestsPerSecond float32) {
	c.rateLimiter = rate.NewLimiter(rate.Limit(maxRequestsPerSecond), 1)
}

// Search fetches one page of results for the keyword. On a rate-limit signal
// the used credential is marked limited and the call retries with the next
// one, up to min(3, pool size) attempts; exhausting them returns
// clients.ErrCredentialsExhausted. Other errors propagate without rotation.
func (c *Client) Search(ctx context.Context, params SearchParameters) ([]clients.Item, int, error) {

	if err := params.Validate(); err != nil {
		return nil, 0, fmt.Errorf("invalid parameters: %w", err)
	}

	attempts := min(3, c.credentials.Size())
	if attempts == 0 {
		return nil, 0, clients.ErrNoCredentials
	}

	var items []clients.Item
	var total int
	var err error

	_, _, _ = lo.AttemptWhileWithDelay(attempts, rotationDelay, func(i int, _ time.Duration) (error, bool) {
		if i > 0 {
			log.Warnf("shopping api rate limited, rotating credential (attempt %d)", i+1)
		}
		items, total, err = c.searchOnce(ctx, params)
		return err, errors.Is(err, clients.ErrRateLimited)
	})

	if errors.Is(err, clients.ErrRateLimited) {
		return nil, 0, clients.ErrCredentialsExhausted
	}
	return items, total, err
}

func (c *Client) searchOnce(ctx context.Context, params SearchParameters) ([]clients.Item, int, error) {

	credential, err := c.credentials.Next()
	if err != nil {
		return nil, 0, err
	}

	body, err := c.sendRequest(ctx, credential, c.baseURL+"?"+params.ToUrlParams().Encode())
	if err != nil {
		if errors.Is(err, clients.ErrRateLimited) {
			c.credentials.MarkLimited(credential.ID)
		}
		return nil, 0, err
	}

	var response searchResponse
	if err := json.NewDecoder(bytes.NewReader(body)).Decode(&response); err != nil {
		return nil, 0, fmt.Errorf("error decoding JSON response: %v", err)
	}

	if response.ErrorCode == rateLimitErrorCode {
		c.credentials.MarkLimited(credential.ID)
		return nil, 0, clients.ErrRateLimited
	}

	return lo.Map(response.Items, func(item searchItem, _ int) clients.Item {
		return item.normalize()
	}), response.Total, nil
}

func (c *Client) sendRequest(ctx context.Context, credential models.Credential, url string) ([]byte, error) {

	if c.rateLimiter != nil {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %v", err)
	}
	req.Header.Set("X-Api-Client-Id", credential.ClientID)
	req.Header.Set("X-Api-Client-Secret", credential.ClientSecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error sending request: %v", err)
	}
	defer resp.Body.Close()

	return c.handleResponse(resp)
}

func (c *Client) handleResponse(resp *http.Response) ([]byte, error) {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response body: %v", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, clients.ErrRateLimited
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("request failed with status %v, body: %v", resp.StatusCode, string(body))
	}

	return body, nil
}
