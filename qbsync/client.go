package qbsync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

// qbClient talks to the qbXML bridge: a small Windows-side service that
// forwards qbXML payloads to the QuickBooks company file and relays the
// responses. One POST per qbXML request envelope.
type qbClient struct {
	baseURL     string
	companyFile string
	http        *http.Client
	limiter     <-chan time.Time
}

func newQBClient() (*qbClient, error) {
	baseURL := strings.TrimSpace(os.Getenv("QB_BRIDGE_BASE_URL"))
	if baseURL == "" {
		return nil, errors.New("QB_BRIDGE_BASE_URL is required")
	}
	// Empty means "whatever company file is currently open on the bridge host".
	companyFile := strings.TrimSpace(os.Getenv("QB_COMPANY_FILE"))

	timeoutSeconds := int64(60)
	if v := strings.TrimSpace(os.Getenv("QB_BRIDGE_TIMEOUT_SECONDS")); v != "" {
		if n, err := parseInt64(v); err == nil && n > 0 {
			timeoutSeconds = n
		}
	}
	// The bridge serializes access to the desktop application, so stay gentle.
	rateLimitPerMin := int64(30)
	if v := strings.TrimSpace(os.Getenv("QB_RATE_LIMIT_PER_MIN")); v != "" {
		if n, err := parseInt64(v); err == nil && n > 0 {
			rateLimitPerMin = n
		}
	}
	interval := time.Minute / time.Duration(rateLimitPerMin)

	return &qbClient{
		baseURL:     strings.TrimRight(baseURL, "/"),
		companyFile: companyFile,
		http:        &http.Client{Timeout: time.Duration(timeoutSeconds) * time.Second},
		limiter:     time.Tick(interval),
	}, nil
}

func (c *qbClient) sendQBXML(ctx context.Context, payload string) ([]byte, error) {
	<-c.limiter
	endpoint := c.baseURL + "/qbxml"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")
	if c.companyFile != "" {
		req.Header.Set("X-Company-File", c.companyFile)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("qb bridge error %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}

func parseInt64(v string) (int64, error) {
	return strconv.ParseInt(v, 10, 64)
}
