package tool

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"
)

// DefaultGitHubAPI is the public GitHub REST endpoint.
const DefaultGitHubAPI = "https://api.github.com"

// DefaultKeyFiles are the manifest and build files fetched for the keyFiles
// artifact, in the order they are reported.
var DefaultKeyFiles = []string{
	"go.mod",
	"package.json",
	"Cargo.toml",
	"pyproject.toml",
	"requirements.txt",
	"Dockerfile",
	"Makefile",
}

// maxTreeEntries caps the structure listing for very large repositories.
const maxTreeEntries = 500

// StatusError is a non-2xx response from the GitHub API.
type StatusError struct {
	URL        string
	StatusCode int
	Message    string
}

// Error includes the GitHub message when the response carried one.
func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("github: GET %s: status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("github: GET %s: status %d: %s", e.URL, e.StatusCode, e.Message)
}

// Retryable reports whether the request may succeed if repeated.
func (e *StatusError) Retryable() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}

// GitHubFetcher retrieves repository artifacts over the GitHub REST API.
type GitHubFetcher struct {
	// HTTP performs the requests. It is usually an *HTTPTool.
	HTTP Tool

	// APIBase defaults to DefaultGitHubAPI.
	APIBase string

	// Token is sent as a bearer token when set.
	Token string

	// KeyFiles defaults to DefaultKeyFiles.
	KeyFiles []string
}

// NewGitHubFetcher returns a fetcher over a default HTTPTool.
func NewGitHubFetcher(apiBase, token string) *GitHubFetcher {
	return &GitHubFetcher{HTTP: NewHTTPTool(nil), APIBase: apiBase, Token: token}
}

// Fetch retrieves the artifacts selected by req. It fails on the first
// artifact that cannot be retrieved, except for key files, where absent files
// are simply left out.
func (f *GitHubFetcher) Fetch(ctx context.Context, req FetchRequest) (Artifacts, error) {
	owner, repo, err := ParseRepoURL(req.RepoURL)
	if err != nil {
		return nil, err
	}

	out := make(Artifacts)
	for _, kind := range req.Kinds() {
		var text string
		switch kind {
		case ArtifactReadme:
			text, err = f.readme(ctx, owner, repo, req.Branch)
		case ArtifactStructure:
			text, err = f.structure(ctx, owner, repo, req.Branch)
		case ArtifactKeyFiles:
			text, err = f.keyFiles(ctx, owner, repo, req.Branch)
		}
		if err != nil {
			return nil, fmt.Errorf("fetch %s for %s/%s: %w", kind, owner, repo, err)
		}
		out[kind] = text
	}
	return out, nil
}

func (f *GitHubFetcher) readme(ctx context.Context, owner, repo, branch string) (string, error) {
	return f.getRaw(ctx, f.repoURL(owner, repo, "readme", branch))
}

func (f *GitHubFetcher) structure(ctx context.Context, owner, repo, branch string) (string, error) {
	if branch == "" {
		body, err := f.get(ctx, f.repoURL(owner, repo, "", ""), "application/vnd.github+json")
		if err != nil {
			return "", err
		}
		branch = gjson.Get(body, "default_branch").String()
		if branch == "" {
			branch = "HEAD"
		}
	}

	u := f.repoURL(owner, repo, "git/trees/"+url.PathEscape(branch), "") + "?recursive=1"
	body, err := f.get(ctx, u, "application/vnd.github+json")
	if err != nil {
		return "", err
	}

	paths := gjson.Get(body, `tree.#(type=="blob")#.path`).Array()
	var sb strings.Builder
	for i, p := range paths {
		if i == maxTreeEntries {
			fmt.Fprintf(&sb, "... (%d more files)\n", len(paths)-maxTreeEntries)
			break
		}
		sb.WriteString(p.String())
		sb.WriteByte('\n')
	}
	if gjson.Get(body, "truncated").Bool() {
		sb.WriteString("... (listing truncated)\n")
	}
	return strings.TrimSuffix(sb.String(), "\n"), nil
}

func (f *GitHubFetcher) keyFiles(ctx context.Context, owner, repo, branch string) (string, error) {
	files := f.KeyFiles
	if len(files) == 0 {
		files = DefaultKeyFiles
	}

	var sections []string
	for _, name := range files {
		content, err := f.getRaw(ctx, f.repoURL(owner, repo, "contents/"+name, branch))
		if err != nil {
			if se, ok := err.(*StatusError); ok && se.StatusCode == 404 {
				continue
			}
			return "", err
		}
		sections = append(sections, fmt.Sprintf("### %s\n\n%s", name, strings.TrimRight(content, "\n")))
	}
	return strings.Join(sections, "\n\n"), nil
}

func (f *GitHubFetcher) repoURL(owner, repo, suffix, ref string) string {
	base := f.APIBase
	if base == "" {
		base = DefaultGitHubAPI
	}
	u := fmt.Sprintf("%s/repos/%s/%s", strings.TrimRight(base, "/"), url.PathEscape(owner), url.PathEscape(repo))
	if suffix != "" {
		u += "/" + suffix
	}
	if ref != "" {
		u += "?ref=" + url.QueryEscape(ref)
	}
	return u
}

func (f *GitHubFetcher) getRaw(ctx context.Context, u string) (string, error) {
	return f.get(ctx, u, "application/vnd.github.raw")
}

func (f *GitHubFetcher) get(ctx context.Context, u, accept string) (string, error) {
	headers := map[string]string{
		"Accept":               accept,
		"X-GitHub-Api-Version": "2022-11-28",
	}
	if f.Token != "" {
		headers["Authorization"] = "Bearer " + f.Token
	}

	resp, err := f.HTTP.Call(ctx, map[string]interface{}{
		"url":     u,
		"method":  "GET",
		"headers": headers,
	})
	if err != nil {
		return "", err
	}

	status, _ := resp["status_code"].(int)
	body, _ := resp["body"].(string)
	if status < 200 || status > 299 {
		msg := ""
		if gjson.Valid(body) {
			msg = gjson.Get(body, "message").String()
		}
		return "", &StatusError{URL: u, StatusCode: status, Message: msg}
	}
	return body, nil
}
