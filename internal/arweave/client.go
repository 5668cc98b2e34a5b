// Package arweave downloads transaction data from a gateway node through the
// chunk API: the transaction offset is resolved first, then chunks are
// fetched in order until the data is reassembled.
package arweave

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/checker-network/arweave/internal/probe"
	"github.com/checker-network/arweave/pkg/types"
)

const (
	maxMetaBytes = 1 << 20
	// Chunks are at most 256 KiB; base64 and JSON framing add about a third.
	maxChunkBytes = 1 << 20
	userAgent     = "arweave-checker"
)

var errEmptyChunk = errors.New("gateway returned an empty chunk")

// Client is a probe.Downloader speaking the gateway HTTP API.
type Client struct {
	httpClient *http.Client
	// MaxSize bounds the size of transactions the client agrees to download.
	MaxSize int64
}

// NewHTTPClient returns a client suited to chunk downloads: connections are
// kept alive so every chunk of one transaction reuses the same connection.
func NewHTTPClient() *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConnsPerHost = 4
	return &http.Client{Transport: transport}
}

func NewClient(httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = NewHTTPClient()
	}
	return &Client{httpClient: httpClient, MaxSize: 64 << 20}
}

type offsetResponse struct {
	Size   string `json:"size"`
	Offset string `json:"offset"`
}

type chunkResponse struct {
	Chunk string `json:"chunk"`
}

// TxOffset returns the size of the transaction data and the absolute offset
// of its last byte in the weave.
func (c *Client) TxOffset(ctx context.Context, node types.Node, txID string) (size, end int64, err error) {
	var resp offsetResponse
	if err := c.getJSON(ctx, node, "/tx/"+txID+"/offset", maxMetaBytes, &resp); err != nil {
		return 0, 0, fmt.Errorf("fetch offset of %s: %w", txID, err)
	}
	size, err = strconv.ParseInt(resp.Size, 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("parse size %q: %w", resp.Size, err)
	}
	end, err = strconv.ParseInt(resp.Offset, 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("parse offset %q: %w", resp.Offset, err)
	}
	if size < 0 || end < size-1 {
		return 0, 0, fmt.Errorf("inconsistent offset response size=%d offset=%d", size, end)
	}
	return size, end, nil
}

// Chunk fetches and decodes the chunk containing the absolute weave offset.
func (c *Client) Chunk(ctx context.Context, node types.Node, offset int64) ([]byte, error) {
	var resp chunkResponse
	if err := c.getJSON(ctx, node, "/chunk/"+strconv.FormatInt(offset, 10), maxChunkBytes, &resp); err != nil {
		return nil, fmt.Errorf("fetch chunk at %d: %w", offset, err)
	}
	data, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(resp.Chunk, "="))
	if err != nil {
		return nil, fmt.Errorf("decode chunk at %d: %w", offset, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("chunk at %d: %w", offset, errEmptyChunk)
	}
	return data, nil
}

// Download reassembles the full data of txID from node.
func (c *Client) Download(ctx context.Context, node types.Node, txID string) ([]byte, error) {
	size, end, err := c.TxOffset(ctx, node, txID)
	if err != nil {
		return nil, err
	}
	if c.MaxSize > 0 && size > c.MaxSize {
		return nil, fmt.Errorf("transaction %s is %d bytes, above limit %d", txID, size, c.MaxSize)
	}

	start := end - size + 1
	var buf bytes.Buffer
	buf.Grow(int(size))
	for int64(buf.Len()) < size {
		chunk, err := c.Chunk(ctx, node, start+int64(buf.Len()))
		if err != nil {
			return nil, err
		}
		if int64(buf.Len()+len(chunk)) > size {
			return nil, fmt.Errorf("chunk data overruns transaction size %d", size)
		}
		buf.Write(chunk)
	}
	return buf.Bytes(), nil
}

func (c *Client) getJSON(ctx context.Context, node types.Node, path string, limit int64, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, node.URL()+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("status %s", resp.Status)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

var _ probe.Downloader = (*Client)(nil)
