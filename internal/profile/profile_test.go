package profile

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestGenerated(t *testing.T) {
	p := Generated("0xdeadbeefcafe")
	if p.Username != "guest-deadbe" {
		t.Fatalf("got %q", p.Username)
	}
	p = Generated("")
	if !strings.HasPrefix(p.Username, "guest-") || len(p.Username) != len("guest-")+6 {
		t.Fatalf("empty address should still get a guest name, got %q", p.Username)
	}
}

func TestHTTPResolver(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/0xknown"):
			_ = json.NewEncoder(w).Encode(Profile{Username: "alice", Avatar: "a.png"})
		case strings.HasSuffix(r.URL.Path, "/0xblank"):
			_ = json.NewEncoder(w).Encode(Profile{})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)

	r := NewHTTPResolver(srv.URL)
	ctx := context.Background()

	p, err := r.Resolve(ctx, "0xknown")
	if err != nil || p.Username != "alice" || p.Avatar != "a.png" {
		t.Fatalf("got %+v %v", p, err)
	}

	// 404 and blank usernames degrade to a generated identity
	p, err = r.Resolve(ctx, "0xmissing")
	if err != nil || !strings.HasPrefix(p.Username, "guest-") {
		t.Fatalf("got %+v %v", p, err)
	}
	p, err = r.Resolve(ctx, "0xblank")
	if err != nil || !strings.HasPrefix(p.Username, "guest-") {
		t.Fatalf("got %+v %v", p, err)
	}
}
