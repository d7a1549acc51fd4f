package voice

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPSource pulls one recorded utterance per call from the hosting
// application's capture endpoint. The endpoint blocks until the user has
// finished speaking and answers with the encoded audio; 204 means the capture
// window elapsed with nothing said.
type HTTPSource struct {
	endpoint string
	client   *http.Client
}

func NewHTTPSource(endpoint string) *HTTPSource {
	return &HTTPSource{
		endpoint: endpoint,
		// Recording an utterance takes as long as the user talks; the
		// deadline only guards a dead collaborator.
		client: &http.Client{Timeout: 2 * time.Minute},
	}
}

func (s *HTTPSource) Record(ctx context.Context) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build capture request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch utterance: %w", err)
	}
	if resp.StatusCode == http.StatusNoContent {
		resp.Body.Close()
		return nil, ErrNoSpeech
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("capture endpoint returned %s", resp.Status)
	}
	return resp.Body, nil
}
