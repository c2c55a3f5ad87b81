package speech

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pavelanni/able/internal/model"
)

// maxAudioBytes caps a synthesized clip.
const maxAudioBytes = 10 << 20

// HTTPSynthesizer posts text to a speech synthesis service and returns the audio body.
type HTTPSynthesizer struct {
	URL    string
	APIKey string
	Client *http.Client
}

// NewHTTPSynthesizer returns a synthesizer for the service at endpoint.
func NewHTTPSynthesizer(endpoint, apiKey string) *HTTPSynthesizer {
	return &HTTPSynthesizer{
		URL:    endpoint,
		APIKey: apiKey,
		Client: &http.Client{Timeout: 30 * time.Second},
	}
}

func (s *HTTPSynthesizer) Synthesize(ctx context.Context, text string, lang model.Language) ([]byte, error) {
	form := url.Values{}
	form.Set("text", text)
	form.Set("lang", lang.Tag())

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.URL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "audio/*")
	if s.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.APIKey)
	}

	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("synthesis status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	audio, err := io.ReadAll(io.LimitReader(resp.Body, maxAudioBytes))
	if err != nil {
		return nil, fmt.Errorf("read audio: %w", err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("synthesis returned no audio")
	}
	return audio, nil
}
