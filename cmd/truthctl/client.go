package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

type client struct {
	BaseURL  string
	AdminKey string
	HTTP     *http.Client
}

func newClient(baseURL, adminKey string, timeout time.Duration) *client {
	return &client{
		BaseURL:  strings.TrimRight(baseURL, "/"),
		AdminKey: adminKey,
		HTTP:     &http.Client{Timeout: timeout},
	}
}

type response struct {
	Status int
	Header http.Header
	Body   []byte
}

func (r response) ok() bool { return r.Status/100 == 2 }

// apiError renders the server's {"error","code"} body when present.
func (r response) apiError(op string) error {
	var body struct {
		Error string `json:"error"`
		Code  string `json:"code"`
	}
	if json.Unmarshal(r.Body, &body) == nil && body.Code != "" {
		return fmt.Errorf("%s failed: status=%d code=%s: %s", op, r.Status, body.Code, body.Error)
	}
	return fmt.Errorf("%s failed: status=%d body=%s", op, r.Status, strings.TrimSpace(string(r.Body)))
}

func (c *client) do(ctx context.Context, method, path string, payload any, admin bool) (response, error) {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return response{}, err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return response{}, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if admin {
		if c.AdminKey == "" {
			return response{}, fmt.Errorf("admin key required (flag --admin-key or env TRUTHCTL_ADMIN_KEY)")
		}
		req.Header.Set("X-Admin-Key", c.AdminKey)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return response{}, err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return response{}, err
	}
	return response{Status: resp.StatusCode, Header: resp.Header, Body: raw}, nil
}

func printJSON(w io.Writer, raw []byte) error {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		_, err = fmt.Fprintln(w, string(raw))
		return err
	}
	return writeJSON(w, v)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
