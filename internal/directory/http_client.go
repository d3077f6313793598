package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/maypok86/otter"

	"github.com/loopgate/loopgate/internal/netutil"
)

func init() {
	Register("http", newHTTPClient)
}

const rosterCacheCapacity = 16

// httpClient fetches rosters over HTTP from the locator's candidate URLs,
// trying each in order until one succeeds. Fetched rosters are cached per
// URL with a TTL so scheduled refreshes do not hammer the discovery service.
type httpClient struct {
	urls       []string
	downloader netutil.Downloader
	overrides  *OverrideTable
	cache      otter.Cache[string, Roster]
	hasCache   bool
}

func newHTTPClient(cfg Config) (Client, error) {
	urls := cfg.Locator.URLs()
	if len(urls) == 0 {
		return nil, fmt.Errorf("directory: http client requires a locator")
	}
	downloader := cfg.Downloader
	if downloader == nil {
		downloader = netutil.NewDirectDownloader(0, "")
	}

	c := &httpClient{
		urls:       urls,
		downloader: downloader,
		overrides:  NewOverrideTable(),
	}
	if cfg.CacheTTL > 0 {
		cache, err := otter.MustBuilder[string, Roster](rosterCacheCapacity).
			Cost(func(_ string, _ Roster) uint32 { return 1 }).
			WithTTL(cfg.CacheTTL).
			Build()
		if err != nil {
			return nil, fmt.Errorf("directory: roster cache: %w", err)
		}
		c.cache = cache
		c.hasCache = true
	}
	return c, nil
}

func (c *httpClient) Fetch(ctx context.Context) (Roster, error) {
	var lastErr error
	for _, url := range c.urls {
		if c.hasCache {
			if roster, ok := c.cache.Get(url); ok {
				return roster, nil
			}
		}

		body, err := c.downloader.Download(ctx, url)
		if err != nil {
			lastErr = &FetchError{URL: url, Err: err}
			continue
		}
		roster, err := ParseRoster(body)
		if err != nil {
			lastErr = &FetchError{URL: url, Err: err}
			continue
		}
		if c.hasCache {
			c.cache.Set(url, roster)
		}
		return roster, nil
	}
	return nil, lastErr
}

func (c *httpClient) Overrides() *OverrideTable { return c.overrides }

func (c *httpClient) Close() error {
	if c.hasCache {
		c.cache.Close()
	}
	return nil
}

// ParseRoster decodes a roster document: either a bare id-to-endpoint object
// or the same object under a "servers" wrapper. Ids are decimal strings.
func ParseRoster(body []byte) (Roster, error) {
	var wrapped struct {
		Servers map[string]Endpoint `json:"servers"`
	}
	if err := json.Unmarshal(body, &wrapped); err == nil && wrapped.Servers != nil {
		return rosterFromStringKeys(wrapped.Servers)
	}

	var bare map[string]Endpoint
	if err := json.Unmarshal(body, &bare); err != nil {
		return nil, fmt.Errorf("parse roster: %w", err)
	}
	return rosterFromStringKeys(bare)
}

func rosterFromStringKeys(m map[string]Endpoint) (Roster, error) {
	roster := make(Roster, len(m))
	for key, ep := range m {
		id, err := strconv.Atoi(key)
		if err != nil {
			return nil, fmt.Errorf("parse roster: invalid server id %q", key)
		}
		roster[id] = ep
	}
	return roster, nil
}
