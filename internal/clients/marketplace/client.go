package marketplace

import (
	"context"
	"fmt"
	"math/rand"
	"net"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"github.com/rankowl/rank-tracker/internal/clients"
	"github.com/rankowl/rank-tracker/internal/domain/models"
	log "github.com/sirupsen/logrus"
)

const rotationDelay = time.Second

type CredentialSource interface {
	Next() (models.Credential, error)
	MarkLimited(id int)
	Size() int
}

type searchResponse struct {
	TotalCount int             `json:"totalCount"`
	Products   []productResult `json:"products"`
}

type productResult struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	SalesPrice   int64  `json:"salesPrice"`
	SellerName   string `json:"sellerName"`
	CategoryName string `json:"categoryName"`
}

type Client struct {
	resty       *resty.Client
	credentials CredentialSource
	pacingMin   time.Duration
	pacingMax   time.Duration
}

func NewClient(baseURL string, credentials CredentialSource, timeout time.Duration) *Client {

	if timeout == 0 {
		timeout = 30 * time.Second
	}

	r := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")

	return &Client{resty: r, credentials: credentials}
}

// SetPacing sets the randomized sleep window applied after every successful
// search. Pacing is a mandatory per-call cost for this provider, not a retry
// policy.
func (c *Client) SetPacing(minDelay, maxDelay time.Duration) {
	c.pacingMin = minDelay
	c.pacingMax = maxDelay
}

// Search fetches one page of marketplace results. Rate limits rotate the
// credential pool like the shopping client; a network-level denial is
// classified as clients.ErrBlocked and propagates without rotation.
func (c *Client) Search(ctx context.Context, keyword string, page, perPage int) ([]clients.Item, int, error) {

	attempts := min(3, c.credentials.Size())
	if attempts == 0 {
		return nil, 0, clients.ErrNoCredentials
	}

	var items []clients.Item
	var total int
	var err error

	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			log.Warnf("marketplace api rate limited, rotating credential (attempt %d)", attempt+1)
			select {
			case <-ctx.Done():
				return nil, 0, ctx.Err()
			case <-time.After(rotationDelay):
			}
		}

		items, total, err = c.searchOnce(ctx, keyword, page, perPage)
		if !errors.Is(err, clients.ErrRateLimited) {
			break
		}
	}

	if errors.Is(err, clients.ErrRateLimited) {
		return nil, 0, clients.ErrCredentialsExhausted
	}
	if err != nil {
		return nil, 0, err
	}

	c.pace(ctx)
	return items, total, nil
}

func (c *Client) searchOnce(ctx context.Context, keyword string, page, perPage int) ([]clients.Item, int, error) {

	credential, err := c.credentials.Next()
	if err != nil {
		return nil, 0, err
	}

	var response searchResponse
	resp, err := c.resty.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"q":       keyword,
			"page":    fmt.Sprintf("%d", page),
			"perPage": fmt.Sprintf("%d", perPage),
		}).
		SetHeader("X-Api-Key", credential.ClientID).
		SetHeader("X-Api-Secret", credential.ClientSecret).
		SetResult(&response).
		Get("")

	if err != nil {
		if isBlockedTransportError(err) {
			return nil, 0, errors.Wrap(clients.ErrBlocked, err.Error())
		}
		return nil, 0, fmt.Errorf("error sending request: %v", err)
	}

	switch {
	case resp.StatusCode() == 429:
		c.credentials.MarkLimited(credential.ID)
		return nil, 0, clients.ErrRateLimited
	case resp.StatusCode() == 403 && !isJSONBody(resp):
		return nil, 0, errors.Wrapf(clients.ErrBlocked, "status %d", resp.StatusCode())
	case resp.IsError():
		return nil, 0, fmt.Errorf("request failed with status %v, body: %v", resp.StatusCode(), string(resp.Body()))
	}

	var normalized []clients.Item
	for _, product := range response.Products {
		normalized = append(normalized, clients.Item{
			ProductID:  product.ID,
			Title:      product.Name,
			Price:      product.SalesPrice,
			Seller:     product.SellerName,
			Categories: splitCategories(product.CategoryName),
		})
	}

	return normalized, response.TotalCount, nil
}

func (c *Client) pace(ctx context.Context) {
	if c.pacingMax == 0 {
		return
	}

	delay := c.pacingMin
	if c.pacingMax > c.pacingMin {
		delay += time.Duration(rand.Int63n(int64(c.pacingMax - c.pacingMin)))
	}

	select {
	case <-ctx.Done():
	case <-time.After(delay):
	}
}

func isBlockedTransportError(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	msg := err.Error()
	return strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "tls handshake")
}

func isJSONBody(resp *resty.Response) bool {
	return strings.Contains(resp.Header().Get("Content-Type"), "application/json")
}

func splitCategories(category string) []string {
	if category == "" {
		return nil
	}

	var categories []string
	for _, c := range strings.Split(category, ">") {
		if trimmed := strings.TrimSpace(c); trimmed != "" {
			categories = append(categories, trimmed)
		}
	}
	return categories
}
