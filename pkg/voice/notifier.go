package voice

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// HTTPNotifier posts session start/stop triggers to the hosting application.
type HTTPNotifier struct {
	startURL string
	stopURL  string
	client   *http.Client
}

func NewHTTPNotifier(startURL, stopURL string) *HTTPNotifier {
	return &HTTPNotifier{
		startURL: startURL,
		stopURL:  stopURL,
		client:   &http.Client{Timeout: 5 * time.Second},
	}
}

func (n *HTTPNotifier) SessionStarted(ctx context.Context) error {
	return n.trigger(ctx, n.startURL)
}

func (n *HTTPNotifier) SessionStopped(ctx context.Context) error {
	return n.trigger(ctx, n.stopURL)
}

func (n *HTTPNotifier) trigger(ctx context.Context, url string) error {
	if url == "" {
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return fmt.Errorf("build session trigger: %w", err)
	}
	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send session trigger: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("session trigger returned %s", resp.Status)
	}
	return nil
}
