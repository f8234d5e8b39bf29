package profile

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/valyala/fasthttp"
)

// Profile is the display identity attached to a wallet address in room chat.
type Profile struct {
	Username string `json:"username"`
	Avatar   string `json:"avatar"`
}

// Resolver looks up the display profile for an address. Implementations must
// be safe for concurrent use.
type Resolver interface {
	Resolve(ctx context.Context, address string) (Profile, error)
}

// Generated returns a fallback identity for addresses with no registered
// profile. The suffix keeps guest names distinct within a roster.
func Generated(address string) Profile {
	suffix := strings.TrimPrefix(address, "0x")
	if len(suffix) > 6 {
		suffix = suffix[:6]
	}
	if suffix == "" {
		suffix = uuid.NewString()[:6]
	}
	return Profile{Username: "guest-" + suffix}
}

// HTTPResolver fetches profiles from an external identity service.
type HTTPResolver struct {
	baseURL string
	http    *fasthttp.Client
	timeout time.Duration
}

func NewHTTPResolver(baseURL string) *HTTPResolver {
	return &HTTPResolver{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &fasthttp.Client{ReadTimeout: 5 * time.Second, WriteTimeout: 5 * time.Second, MaxConnsPerHost: 32},
		timeout: 5 * time.Second,
	}
}

func (r *HTTPResolver) Resolve(ctx context.Context, address string) (Profile, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	req.Header.SetMethod(fasthttp.MethodGet)
	req.SetRequestURI(r.baseURL + "/profiles/" + address)
	req.Header.SetContentType("application/json")

	deadline := time.Now().Add(r.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := r.http.DoDeadline(req, resp, deadline); err != nil {
		return Profile{}, fmt.Errorf("profile request failed: %w", err)
	}

	status := resp.StatusCode()
	if status == fasthttp.StatusNotFound {
		return Generated(address), nil
	}
	if status < 200 || status >= 300 {
		return Profile{}, fmt.Errorf("profile api error: status=%d", status)
	}

	var p Profile
	if err := json.Unmarshal(resp.Body(), &p); err != nil {
		return Profile{}, fmt.Errorf("decode profile: %w", err)
	}
	if strings.TrimSpace(p.Username) == "" {
		return Generated(address), nil
	}
	return p, nil
}
