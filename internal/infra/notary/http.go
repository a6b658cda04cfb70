package notary

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"truthcert/internal/domain"
)

// Client resolves notarizations from the upstream notarization API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *Client) Lookup(ctx context.Context, notarizationID string) (domain.NotarizationRecord, error) {
	if c == nil || c.baseURL == "" {
		return domain.NotarizationRecord{}, fmt.Errorf("%w: notary client not configured", domain.ErrLookupFailure)
	}
	if notarizationID == "" {
		return domain.NotarizationRecord{}, fmt.Errorf("%w: notarization id is required", domain.ErrValidation)
	}
	endpoint := c.baseURL + "/v1/notarizations/" + url.PathEscape(notarizationID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return domain.NotarizationRecord{}, fmt.Errorf("%w: %v", domain.ErrLookupFailure, err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.NotarizationRecord{}, classify(ctx, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return domain.NotarizationRecord{}, classify(ctx, err)
	}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return domain.NotarizationRecord{}, fmt.Errorf("%w: notarization %s", domain.ErrNotFound, notarizationID)
	case resp.StatusCode == http.StatusGatewayTimeout:
		return domain.NotarizationRecord{}, fmt.Errorf("%w: upstream status %d", domain.ErrLookupTimeout, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return domain.NotarizationRecord{}, fmt.Errorf("%w: upstream status %d", domain.ErrLookupFailure, resp.StatusCode)
	}

	var envelope struct {
		Data domain.NotarizationRecord `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return domain.NotarizationRecord{}, fmt.Errorf("%w: decode notarization: %v", domain.ErrLookupFailure, err)
	}
	rec := envelope.Data
	if rec.NotarizationID == "" {
		rec.NotarizationID = notarizationID
	}
	return rec, nil
}

// classify maps transport errors onto lookup sentinels.
func classify(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", domain.ErrLookupTimeout, err)
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", domain.ErrLookupTimeout, err)
	}
	return fmt.Errorf("%w: %v", domain.ErrLookupFailure, err)
}
