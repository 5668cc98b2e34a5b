package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/checker-network/arweave/pkg/types"
)

// ErrUnavailable wraps every failure to obtain a complete node listing.
var ErrUnavailable = errors.New("node directory unavailable")

const (
	defaultNetwork        = "mainnet"
	defaultMaxPages       = 100
	defaultRequestTimeout = 30 * time.Second
	maxPageBytes          = 8 << 20
)

// Config holds the static configuration of a directory Client.
type Config struct {
	URL            string
	Origin         string
	Network        string
	PagesPerSecond float64
	MaxPages       int
	RequestTimeout time.Duration
}

// Dependencies allow test overrides for HTTP client and logging.
type Dependencies struct {
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Client lists gateway nodes from the directory service.
type Client struct {
	httpClient *http.Client
	baseURL    *url.URL
	origin     string
	network    string
	maxPages   int
	timeout    time.Duration
	limiter    *rate.Limiter
	logger     *zap.Logger

	mu sync.Mutex
}

// NewClient builds a directory Client from configuration and dependencies.
func NewClient(cfg Config, deps Dependencies) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("directory URL is required")
	}
	base, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse directory URL: %w", err)
	}
	httpClient := deps.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	network := cfg.Network
	if network == "" {
		network = defaultNetwork
	}
	maxPages := cfg.MaxPages
	if maxPages <= 0 {
		maxPages = defaultMaxPages
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	limit := rate.Inf
	if cfg.PagesPerSecond > 0 {
		limit = rate.Limit(cfg.PagesPerSecond)
	}

	return &Client{
		httpClient: httpClient,
		baseURL:    base,
		origin:     cfg.Origin,
		network:    network,
		maxPages:   maxPages,
		timeout:    timeout,
		limiter:    rate.NewLimiter(limit, 1),
		logger:     logger.Named("directory"),
	}, nil
}

// FetchNodes pages through the whole directory and returns the resulting
// NodeSet with the bootstrap node first. Any page failure aborts the fetch.
func (c *Client) FetchNodes(ctx context.Context) (types.NodeSet, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var addrs []string
	pages := 1
	for page := 1; page <= pages; page++ {
		body, err := c.fetchPage(ctx, page)
		if err != nil {
			return nil, fmt.Errorf("%w: page %d: %w", ErrUnavailable, page, err)
		}
		if page == 1 {
			pages = body.Pages
			if pages < 1 {
				pages = 1
			}
			if pages > c.maxPages {
				c.logger.Warn("directory page count capped", zap.Int("pages", pages), zap.Int("max_pages", c.maxPages))
				pages = c.maxPages
			}
		}
		for _, doc := range body.Docs {
			if doc.ID != "" {
				addrs = append(addrs, doc.ID)
			}
		}
	}

	nodes := BuildNodeSet(addrs, c.logger)
	c.logger.Info("found nodes", zap.Int("nodes", len(nodes)), zap.Int("pages", pages))
	return nodes, nil
}

func (c *Client) fetchPage(ctx context.Context, page int) (types.DirectoryPage, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return types.DirectoryPage{}, err
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, c.pageURL(page), nil)
	if err != nil {
		return types.DirectoryPage{}, fmt.Errorf("build directory request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.origin != "" {
		req.Header.Set("Origin", c.origin)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return types.DirectoryPage{}, fmt.Errorf("fetch directory: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return types.DirectoryPage{}, fmt.Errorf("read directory response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return types.DirectoryPage{}, fmt.Errorf("directory fetch failed: status %s", resp.Status)
	}

	var body types.DirectoryPage
	if err := json.Unmarshal(data, &body); err != nil {
		return types.DirectoryPage{}, fmt.Errorf("decode directory page: %w", err)
	}
	return body, nil
}

func (c *Client) pageURL(page int) string {
	u := *c.baseURL
	q := u.Query()
	q.Set("page", strconv.Itoa(page))
	q.Set("network", c.network)
	u.RawQuery = q.Encode()
	return u.String()
}

// BuildNodeSet sorts raw directory addresses, drops duplicates and entries
// that do not parse, and prepends the bootstrap node.
func BuildNodeSet(addrs []string, logger *zap.Logger) types.NodeSet {
	if logger == nil {
		logger = zap.NewNop()
	}
	sorted := append([]string(nil), addrs...)
	sort.Strings(sorted)

	nodes := make(types.NodeSet, 0, len(sorted)+1)
	nodes = append(nodes, types.BootstrapNode)
	var prev string
	for i, addr := range sorted {
		if i > 0 && addr == prev {
			continue
		}
		prev = addr
		node, err := types.ParseNode(addr)
		if err != nil {
			logger.Debug("skipping directory entry", zap.String("addr", addr), zap.Error(err))
			continue
		}
		nodes = append(nodes, node)
	}
	return nodes
}
