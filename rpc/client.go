package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/sagar-a16z/hub/model"
	"github.com/sagar-a16z/hub/storage"
	"github.com/sagar-a16z/hub/trie"
)

// Client implements syncengine.Peer against another replica's HTTP surface.
// It is the only piece of this package that initiates outbound network
// calls; Server only ever answers them.
type Client struct {
	baseURL string
	hc      *http.Client
}

func NewClient(baseURL string, hc *http.Client) *Client {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Client{baseURL: baseURL, hc: hc}
}

func (c *Client) GetTrieNodeMetadata(ctx context.Context, prefix string) (*trie.NodeMetadata, error) {
	var md trie.NodeMetadata
	if err := c.getJSON(ctx, fmt.Sprintf("/v1/sync/trieNodeMetadata/%s", prefix), &md); err != nil {
		if he, ok := err.(*model.HubError); ok && he.Code == model.CodeNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &md, nil
}

func (c *Client) GetAllSyncIdsByPrefix(ctx context.Context, prefix string) ([]string, error) {
	var ids []string
	if err := c.getJSON(ctx, fmt.Sprintf("/v1/sync/syncIdsByPrefix/%s", prefix), &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

func (c *Client) GetAllMessagesBySyncIds(ctx context.Context, ids []string) ([]*model.Message, error) {
	body, err := json.Marshal(struct {
		SyncIds []string `json:"syncIds"`
	}{SyncIds: ids})
	if err != nil {
		return nil, err
	}
	var dtos []messageDTO
	if err := c.postJSON(ctx, "/v1/sync/messagesBySyncIds", body, &dtos); err != nil {
		return nil, err
	}
	out := make([]*model.Message, 0, len(dtos))
	for _, dto := range dtos {
		msg, err := storage.DecodeMessage(dto.Encoded)
		if err != nil {
			return nil, fmt.Errorf("could not decode pulled message: %w", err)
		}
		out = append(out, msg)
	}
	return out, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) postJSON(ctx context.Context, path string, body []byte, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.hc.Do(req)
	if err != nil {
		return model.ErrUnavailable("peer request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		var body struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&body)
		return model.ErrNotFound("%s", body.Message)
	}
	if resp.StatusCode >= 400 {
		return model.ErrUnavailable("peer returned status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
