package eligibility

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/pkg/errors"

	"github.com/openballot/voting-core/common"
	"github.com/openballot/voting-core/config"
	"github.com/openballot/voting-core/db/model"
	"github.com/openballot/voting-core/logging"
)

// Membership is the pre-resolved eligibility view of one subject. The core
// never sees names or national identifiers, only the opaque subject and the
// flags the membership collaborator resolved.
type Membership struct {
	Subject  string `json:"subject"`
	IsMember bool   `json:"is_member"`
	IsAdmin  bool   `json:"is_admin"`
}

// Provider answers the two questions the core delegates to the membership
// system: who is this subject, and how many subjects are eligible.
type Provider interface {
	Resolve(ctx context.Context, subject string) (*Membership, error)
	EligibleCount(ctx context.Context, policy string) (int64, error)
}

// Client talks to the external membership service. Member counts are cached
// and refreshed by a background loop; per-subject resolution is always live.
type Client struct {
	config     *config.EligibilityConfig
	httpClient *http.Client

	mtx         sync.RWMutex
	memberCount int64 // cached eligible-member count
	adminCount  int64
}

func NewClient(cfg *config.EligibilityConfig) *Client {
	return &Client{
		config: cfg,
		httpClient: &http.Client{
			Timeout: common.RequestTimeout,
		},
	}
}

// Resolve fetches the membership flags for a subject, retrying transient
// failures with backoff before giving up.
func (c *Client) Resolve(ctx context.Context, subject string) (*Membership, error) {
	var membership Membership
	err := retry.Do(func() error {
		return c.getJSON(ctx, fmt.Sprintf("%s/members/%s/status", c.config.BaseURL, subject), &membership)
	}, retry.Context(ctx), common.RetryAttempts, common.RetryDelay, common.RetryErr)
	if err != nil {
		return nil, errors.Wrap(err, "failed to resolve membership")
	}
	membership.Subject = subject
	return &membership, nil
}

// EligibleCount returns the cached population size for a policy. Zero means
// the cache has not been primed yet; callers treat it as unknown.
func (c *Client) EligibleCount(ctx context.Context, policy string) (int64, error) {
	c.mtx.RLock()
	defer c.mtx.RUnlock()
	switch policy {
	case model.PolicyMembers, model.PolicyAll:
		return c.memberCount, nil
	case model.PolicyAdmins:
		return c.adminCount, nil
	}
	return 0, nil
}

// CacheMemberCountLoop refreshes the cached population counts periodically.
func (c *Client) CacheMemberCountLoop() {
	interval := time.Duration(c.config.CacheIntervalSeconds) * time.Second
	if interval <= 0 {
		interval = time.Minute
	}
	for {
		err := c.refreshCounts(context.Background())
		if err != nil {
			logging.Logger.Errorf("failed to refresh member counts, err=%+v", err)
		}
		time.Sleep(interval)
	}
}

func (c *Client) refreshCounts(ctx context.Context) error {
	var payload struct {
		MemberCount int64 `json:"member_count"`
		AdminCount  int64 `json:"admin_count"`
	}
	err := c.getJSON(ctx, c.config.BaseURL+"/members/count", &payload)
	if err != nil {
		return err
	}
	c.mtx.Lock()
	c.memberCount = payload.MemberCount
	c.adminCount = payload.AdminCount
	c.mtx.Unlock()
	return nil
}

func (c *Client) getJSON(ctx context.Context, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	if c.config.APIKey != "" {
		req.Header.Set("X-Api-Key", c.config.APIKey)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("membership service returned status=%d, body=%s", resp.StatusCode, string(body))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
