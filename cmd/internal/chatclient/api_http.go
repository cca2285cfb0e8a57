package chatclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"pinggo/cmd/internal/chat"
)

// HTTPMessageAPI is the MessageAPI over the server's REST surface.
type HTTPMessageAPI struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewHTTPMessageAPI constructs a MessageAPI client. httpClient may be nil.
func NewHTTPMessageAPI(baseURL, token string, httpClient *http.Client) (*HTTPMessageAPI, error) {
	if baseURL == "" {
		return nil, errors.New("chatclient: missing base url")
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &HTTPMessageAPI{baseURL: baseURL, token: token, client: httpClient}, nil
}

type historyPage struct {
	Messages []chat.Message `json:"messages"`
	HasMore  bool           `json:"hasMore"`
}

// History fetches the full conversation with partnerID, following paging
// until the server reports no more.
func (a *HTTPMessageAPI) History(ctx context.Context, partnerID string) ([]chat.Message, error) {
	var (
		all   []chat.Message
		after string
	)
	for {
		target := a.baseURL + "/api/messages/" + url.PathEscape(partnerID)
		if after != "" {
			target += "?after=" + url.QueryEscape(after)
		}

		var page historyPage
		if err := a.do(ctx, http.MethodGet, target, nil, &page); err != nil {
			return nil, err
		}
		all = append(all, page.Messages...)

		if !page.HasMore || len(page.Messages) == 0 {
			return all, nil
		}
		after = page.Messages[len(page.Messages)-1].ID
	}
}

// Send persists one message to partnerID and returns the stored row.
func (a *HTTPMessageAPI) Send(ctx context.Context, partnerID, body, kind string) (chat.Message, error) {
	payload, err := json.Marshal(map[string]string{"body": body, "type": kind})
	if err != nil {
		return chat.Message{}, err
	}

	target := a.baseURL + "/api/messages/send/" + url.PathEscape(partnerID)

	var m chat.Message
	if err := a.do(ctx, http.MethodPost, target, payload, &m); err != nil {
		return chat.Message{}, err
	}
	return m, nil
}

func (a *HTTPMessageAPI) do(ctx context.Context, method, target string, body []byte, dst any) error {
	var rd *bytes.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	} else {
		rd = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("chatclient: %s %s: unexpected status %d", method, target, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(dst)
}

var _ MessageAPI = (*HTTPMessageAPI)(nil)
