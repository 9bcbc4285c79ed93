// Package blapi talks to the BrickLink catalog API. All calls go through a
// single client that enforces the minimum inter-request spacing and counts
// calls against a per-run budget.
package blapi

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"
)

const minRequestGap = 500 * time.Millisecond

// APIError is a non-success response from the catalog API: either a bad HTTP
// status or a non-200 meta.code inside an HTTP 200 envelope. Callers skip the
// item, log, and continue; it never aborts a run.
type APIError struct {
	Path       string
	StatusCode int
	MetaCode   int
}

func (e *APIError) Error() string {
	if e.MetaCode != 0 {
		return fmt.Sprintf("bricklink api %s: meta code %d", e.Path, e.MetaCode)
	}
	return fmt.Sprintf("bricklink api %s: HTTP %d", e.Path, e.StatusCode)
}

type Client struct {
	http    *retryablehttp.Client
	limiter *rate.Limiter
	baseURL string
	token   string
	budget  int
	calls   int
}

// New builds a client. budget bounds the number of calls this run may issue;
// 0 means unlimited.
func New(baseURL, token string, budget int) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 2
	rc.Logger = nil
	return &Client{
		http:    rc,
		limiter: rate.NewLimiter(rate.Every(minRequestGap), 1),
		baseURL: strings.TrimSuffix(baseURL, "/"),
		token:   token,
		budget:  budget,
	}
}

// Calls reports how many requests have been issued so far.
func (c *Client) Calls() int { return c.calls }

// BudgetExhausted reports whether the run may issue further calls. Not an
// error: the crawler simply stops asking for more.
func (c *Client) BudgetExhausted() bool {
	return c.budget > 0 && c.calls >= c.budget
}

// Fetch GETs a catalog path and returns the raw response body. The envelope's
// meta.code is checked even on HTTP 200.
func (c *Client) Fetch(ctx context.Context, path string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}
	c.calls++

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", &APIError{Path: path, StatusCode: resp.StatusCode}
	}
	if code := gjson.GetBytes(body, "meta.code"); code.Exists() && code.Int() != 200 {
		return "", &APIError{Path: path, StatusCode: resp.StatusCode, MetaCode: int(code.Int())}
	}
	return string(body), nil
}

// FetchSetSubsets returns the minifigs BrickLink lists for a set.
func (c *Client) FetchSetSubsets(ctx context.Context, setNum string) ([]SubsetEntry, error) {
	body, err := c.Fetch(ctx, "/items/SET/"+setNum+"/subsets")
	if err != nil {
		return nil, err
	}
	return ParseSubsets(body, ItemTypeMinifig), nil
}

// FetchMinifigSubsets returns the parts BrickLink lists for a minifig.
func (c *Client) FetchMinifigSubsets(ctx context.Context, minifigNo string) ([]SubsetEntry, error) {
	body, err := c.Fetch(ctx, "/items/MINIFIG/"+minifigNo+"/subsets")
	if err != nil {
		return nil, err
	}
	return ParseSubsets(body, ItemTypePart), nil
}
