package remote

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"golang.org/x/time/rate"
)

// RestMirror writes documents to a realtime-database style REST endpoint:
// {base}/users/{uid}.json with PUT, PATCH and GET.
type RestMirror struct {
	base    string
	token   string
	client  *http.Client
	limiter *rate.Limiter
}

func NewRestMirror(base, token string, perSecond float64, client *http.Client) *RestMirror {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	limit := rate.Inf
	burst := 1
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
		burst = max(int(perSecond), 1)
	}
	return &RestMirror{
		base:    strings.TrimRight(base, "/"),
		token:   token,
		client:  client,
		limiter: rate.NewLimiter(limit, burst),
	}
}

func (r *RestMirror) Name() string { return "mirror" }

func (r *RestMirror) Init(ctx context.Context) error {
	resp, err := r.do(ctx, http.MethodGet, r.endpoint(".json", url.Values{"shallow": {"true"}}), nil)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

func (r *RestMirror) Get(ctx context.Context, userID string) ([]byte, bool, error) {
	resp, err := r.do(ctx, http.MethodGet, r.userURL(userID), nil)
	if err != nil {
		return nil, false, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, false, err
	}
	if len(bytes.TrimSpace(data)) == 0 || bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil, false, nil
	}
	return data, true, nil
}

func (r *RestMirror) Set(ctx context.Context, userID string, doc Document) error {
	return r.send(ctx, http.MethodPut, userID, doc)
}

// Update and Merge are both PATCH: the endpoint creates missing paths.
func (r *RestMirror) Update(ctx context.Context, userID string, fields Document) error {
	return r.send(ctx, http.MethodPatch, userID, fields)
}

func (r *RestMirror) Merge(ctx context.Context, userID string, fields Document) error {
	return r.send(ctx, http.MethodPatch, userID, fields)
}

func (r *RestMirror) send(ctx context.Context, method, userID string, doc Document) error {
	body, err := json.Marshal(resolveServerTimestamps(doc, func() any {
		return map[string]string{".sv": "timestamp"}
	}))
	if err != nil {
		return err
	}
	resp, err := r.do(ctx, method, r.userURL(userID), body)
	if err != nil {
		return err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.Body.Close()
}

func (r *RestMirror) do(ctx context.Context, method, target string, body []byte) (*http.Response, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		return nil, fmt.Errorf("%s %s: %s: %s", method, req.URL.Path, resp.Status, strings.TrimSpace(string(msg)))
	}
	return resp, nil
}

func (r *RestMirror) userURL(userID string) string {
	return r.endpoint("users/"+url.PathEscape(userID)+".json", nil)
}

func (r *RestMirror) endpoint(path string, q url.Values) string {
	if r.token != "" {
		if q == nil {
			q = url.Values{}
		}
		q.Set("auth", r.token)
	}
	u := r.base + "/" + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return u
}
