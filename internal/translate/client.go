// Package translate renders question and option text in the session language.
package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pavelanni/able/internal/model"
)

// Translator translates a batch of sentences, preserving order.
type Translator interface {
	TranslateBatch(ctx context.Context, sentences []string, lang model.Language) ([]string, error)
}

// Client calls a batch translation endpoint.
type Client struct {
	URL    string
	Client *http.Client
}

// NewClient returns a client for the translate-batch endpoint at url.
func NewClient(url string) *Client {
	return &Client{URL: url, Client: &http.Client{Timeout: 30 * time.Second}}
}

type batchRequest struct {
	Sentences []string `json:"sentences"`
	Lang      string   `json:"lang"`
}

type batchResponse struct {
	Translations []string `json:"translations"`
	Error        string   `json:"error,omitempty"`
}

func (c *Client) TranslateBatch(ctx context.Context, sentences []string, lang model.Language) ([]string, error) {
	if len(sentences) == 0 {
		return nil, nil
	}
	body, err := json.Marshal(batchRequest{Sentences: sentences, Lang: string(lang)})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out batchResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4<<20)).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode translations (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("translation status %d: %s", resp.StatusCode, out.Error)
	}
	return out.Translations, nil
}
