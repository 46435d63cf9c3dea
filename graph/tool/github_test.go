package tool

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newGitHubServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/widgets/readme", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			t.Errorf("expected bearer token, got %q", r.Header.Get("Authorization"))
		}
		if r.URL.Query().Get("ref") != "dev" {
			t.Errorf("expected ref=dev, got %q", r.URL.RawQuery)
		}
		_, _ = w.Write([]byte("# Widgets"))
	})
	mux.HandleFunc("/repos/acme/widgets", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"default_branch":"main"}`))
	})
	mux.HandleFunc("/repos/acme/widgets/git/trees/main", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("recursive") != "1" {
			t.Errorf("expected recursive=1")
		}
		_, _ = w.Write([]byte(`{"tree":[
			{"path":"cmd","type":"tree"},
			{"path":"cmd/main.go","type":"blob"},
			{"path":"go.mod","type":"blob"}
		],"truncated":false}`))
	})
	mux.HandleFunc("/repos/acme/widgets/contents/go.mod", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("module acme/widgets\n"))
	})
	mux.HandleFunc("/repos/acme/widgets/contents/Makefile", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("all:\n\tgo build ./..."))
	})
	mux.HandleFunc("/repos/acme/private/readme", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"Not Found"}`))
	})
	return httptest.NewServer(mux)
}

func TestGitHubFetcher_Readme(t *testing.T) {
	server := newGitHubServer(t)
	defer server.Close()

	f := NewGitHubFetcher(server.URL, "tok")
	got, err := f.Fetch(context.Background(), FetchRequest{
		RepoURL: "https://github.com/acme/widgets",
		Branch:  "dev",
		Readme:  true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got[ArtifactReadme] != "# Widgets" {
		t.Errorf("expected readme, got %q", got[ArtifactReadme])
	}
}

func TestGitHubFetcher_StructureAndKeyFiles(t *testing.T) {
	server := newGitHubServer(t)
	defer server.Close()

	f := NewGitHubFetcher(server.URL, "")
	got, err := f.Fetch(context.Background(), FetchRequest{
		RepoURL:   "acme/widgets",
		Structure: true,
		KeyFiles:  true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got[ArtifactStructure] != "cmd/main.go\ngo.mod" {
		t.Errorf("unexpected structure %q", got[ArtifactStructure])
	}
	keyFiles := got[ArtifactKeyFiles]
	if !strings.HasPrefix(keyFiles, "### go.mod\n\nmodule acme/widgets") {
		t.Errorf("expected go.mod section first, got %q", keyFiles)
	}
	if !strings.Contains(keyFiles, "### Makefile") {
		t.Errorf("expected Makefile section, got %q", keyFiles)
	}
	if strings.Contains(keyFiles, "package.json") {
		t.Errorf("missing files must be skipped, got %q", keyFiles)
	}
}

func TestGitHubFetcher_StatusError(t *testing.T) {
	server := newGitHubServer(t)
	defer server.Close()

	f := NewGitHubFetcher(server.URL, "")
	_, err := f.Fetch(context.Background(), FetchRequest{RepoURL: "acme/private", Readme: true})

	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected *StatusError, got %v", err)
	}
	if se.StatusCode != 404 || se.Message != "Not Found" {
		t.Errorf("unexpected status error %+v", se)
	}
	if se.Retryable() {
		t.Error("404 must not be retryable")
	}
}

func TestGitHubFetcher_InvalidURL(t *testing.T) {
	f := &GitHubFetcher{HTTP: &MockTool{}}
	_, err := f.Fetch(context.Background(), FetchRequest{RepoURL: "not a repo"})
	if !errors.Is(err, ErrInvalidRepoURL) {
		t.Errorf("expected ErrInvalidRepoURL, got %v", err)
	}
}

func TestGitHubFetcher_TransportError(t *testing.T) {
	boom := errors.New("connection refused")
	f := &GitHubFetcher{HTTP: &MockTool{Err: boom}}
	_, err := f.Fetch(context.Background(), FetchRequest{RepoURL: "acme/widgets"})
	if !errors.Is(err, boom) {
		t.Errorf("expected transport error, got %v", err)
	}
}

func TestGitHubFetcher_OversizedReadme(t *testing.T) {
	server := newGitHubServer(t)
	defer server.Close()

	h := NewHTTPTool(nil)
	h.maxBodyBytes = 4
	f := &GitHubFetcher{HTTP: h, APIBase: server.URL, Token: "tok"}
	_, err := f.Fetch(context.Background(), FetchRequest{RepoURL: "acme/widgets", Branch: "dev", Readme: true})
	if !errors.Is(err, ErrBodyTooLarge) {
		t.Fatalf("expected ErrBodyTooLarge, got %v", err)
	}
}
