package pages

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewClient(context.Background(), "")
	if err := client.SetBaseURL(server.URL + "/"); err != nil {
		t.Fatalf("SetBaseURL: %v", err)
	}
	return client
}

func TestLatestBuild(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/someone/someone.github.io/pages/builds/latest", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"status": "built",
			"commit": "abc123",
			"updated_at": "2016-05-01T12:00:00Z"
		}`)
	})

	client := newTestClient(t, mux)
	build, err := client.LatestBuild(context.Background(), "someone", "someone.github.io")
	if err != nil {
		t.Fatalf("LatestBuild() error: %v", err)
	}

	if build.Status != "built" {
		t.Errorf("Status = %q, want built", build.Status)
	}
	if build.Commit != "abc123" {
		t.Errorf("Commit = %q, want abc123", build.Commit)
	}
	if build.UpdatedAt.IsZero() {
		t.Error("UpdatedAt is zero")
	}
	if build.ErrorMessage != "" {
		t.Errorf("ErrorMessage = %q, want empty", build.ErrorMessage)
	}
}

func TestLatestBuildErrored(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/o/r/pages/builds/latest", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"status": "errored", "error": {"message": "Liquid syntax error"}}`)
	})

	client := newTestClient(t, mux)
	build, err := client.LatestBuild(context.Background(), "o", "r")
	if err != nil {
		t.Fatalf("LatestBuild() error: %v", err)
	}

	if build.Status != "errored" {
		t.Errorf("Status = %q, want errored", build.Status)
	}
	if build.ErrorMessage != "Liquid syntax error" {
		t.Errorf("ErrorMessage = %q", build.ErrorMessage)
	}
}

func TestLatestBuildAPIError(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message": "Not Found"}`, http.StatusNotFound)
	}))

	if _, err := client.LatestBuild(context.Background(), "o", "missing"); err == nil {
		t.Fatal("LatestBuild() against 404 should fail")
	}
}

func TestWaitForBuildIgnoresPreviousDeploy(t *testing.T) {
	// The first poll still reports the build of the previous deploy.
	var calls int
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/o/r/pages/builds/latest", func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		if calls == 1 {
			fmt.Fprint(w, `{"status": "built", "commit": "old0000"}`)
			return
		}
		fmt.Fprint(w, `{"status": "built", "commit": "new1111"}`)
	})

	client := newTestClient(t, mux)
	build, err := client.WaitForBuild(context.Background(), "o", "r", "new1111", 2*time.Second, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("WaitForBuild() error: %v", err)
	}
	if build.Commit != "new1111" {
		t.Errorf("Commit = %q, want new1111", build.Commit)
	}
	if calls < 2 {
		t.Errorf("API polled %d times, want at least 2 (first poll was the stale build)", calls)
	}
}

func TestWaitForBuildErrored(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/o/r/pages/builds/latest", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"status": "errored", "commit": "new1111", "error": {"message": "Liquid syntax error"}}`)
	})

	client := newTestClient(t, mux)
	_, err := client.WaitForBuild(context.Background(), "o", "r", "new1111", time.Second, 10*time.Millisecond)
	if err == nil {
		t.Fatal("WaitForBuild() for an errored build should fail")
	}
	if !strings.Contains(err.Error(), "Liquid syntax error") {
		t.Errorf("error = %v, want the build error message surfaced", err)
	}
}

func TestWaitForBuildTimesOutOnStaleCommit(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/o/r/pages/builds/latest", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"status": "built", "commit": "old0000"}`)
	})

	client := newTestClient(t, mux)
	_, err := client.WaitForBuild(context.Background(), "o", "r", "new1111", 50*time.Millisecond, 10*time.Millisecond)
	if err == nil {
		t.Fatal("WaitForBuild() should fail when only a stale build ever appears")
	}
}

func TestSite(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/o/r/pages", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"html_url": "https://o.github.io/", "status": "built", "cname": "blog.example.com"}`)
	})

	client := newTestClient(t, mux)
	site, err := client.Site(context.Background(), "o", "r")
	if err != nil {
		t.Fatalf("Site() error: %v", err)
	}

	if site.HTMLURL != "https://o.github.io/" {
		t.Errorf("HTMLURL = %q", site.HTMLURL)
	}
	if site.Status != "built" {
		t.Errorf("Status = %q", site.Status)
	}
	if site.CNAME != "blog.example.com" {
		t.Errorf("CNAME = %q", site.CNAME)
	}
}

func TestParseRemote(t *testing.T) {
	tests := []struct {
		remote  string
		owner   string
		repo    string
		wantErr bool
	}{
		{"https://github.com/someone/someone.github.io.git", "someone", "someone.github.io", false},
		{"https://github.com/someone/blog", "someone", "blog", false},
		{"git@github.com:someone/blog.git", "someone", "blog", false},
		{"ssh://git@github.com/someone/blog.git", "someone", "blog", false},
		{"https://gitlab.com/someone/blog.git", "", "", true},
		{"/var/repos/blog.git", "", "", true},
		{"", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.remote, func(t *testing.T) {
			owner, repo, err := ParseRemote(tt.remote)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseRemote(%q) error = %v, wantErr %v", tt.remote, err, tt.wantErr)
			}
			if owner != tt.owner || repo != tt.repo {
				t.Errorf("ParseRemote(%q) = %q/%q, want %q/%q", tt.remote, owner, repo, tt.owner, tt.repo)
			}
		})
	}
}
