// Package tool provides the external calls made by source-fetch nodes: a
// generic Tool contract, an HTTP implementation, and a GitHub repository
// fetcher built on top of it.
package tool

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Tool is a named side-effecting call with loosely typed input and output.
//
// Implementations must respect context cancellation and must be safe for
// concurrent use; nodes in the same wave may call one tool in parallel.
type Tool interface {
	Name() string
	Call(ctx context.Context, input map[string]interface{}) (map[string]interface{}, error)
}

// Artifact kinds produced by a repository fetch.
const (
	ArtifactReadme    = "readme"
	ArtifactStructure = "structure"
	ArtifactKeyFiles  = "keyFiles"
)

var artifactOrder = []string{ArtifactReadme, ArtifactStructure, ArtifactKeyFiles}

// FetchRequest selects a repository, a branch and the artifacts to retrieve.
// An empty Branch means the repository's default branch.
type FetchRequest struct {
	RepoURL   string
	Branch    string
	Readme    bool
	Structure bool
	KeyFiles  bool
}

// Kinds returns the requested artifact kinds in canonical order. When nothing
// is selected the readme is fetched.
func (r FetchRequest) Kinds() []string {
	var kinds []string
	if r.Readme {
		kinds = append(kinds, ArtifactReadme)
	}
	if r.Structure {
		kinds = append(kinds, ArtifactStructure)
	}
	if r.KeyFiles {
		kinds = append(kinds, ArtifactKeyFiles)
	}
	if len(kinds) == 0 {
		kinds = []string{ArtifactReadme}
	}
	return kinds
}

// Artifacts maps an artifact kind to its retrieved text.
type Artifacts map[string]string

// String renders the artifacts as titled sections in canonical order, which
// is the form downstream prompts receive. A single artifact renders bare.
func (a Artifacts) String() string {
	var present []string
	for _, k := range artifactOrder {
		if _, ok := a[k]; ok {
			present = append(present, k)
		}
	}
	if len(present) == 1 {
		return a[present[0]]
	}
	var sb strings.Builder
	for i, k := range present {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "## %s\n\n%s", k, a[k])
	}
	return sb.String()
}

// ErrInvalidRepoURL is returned for repository references that are not
// "owner/repo" or a github.com URL.
var ErrInvalidRepoURL = errors.New("invalid repository url")

// ParseRepoURL extracts owner and repository name from
// "https://github.com/owner/repo[.git][/...]" or the short form "owner/repo".
func ParseRepoURL(raw string) (owner, repo string, err error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", "", fmt.Errorf("%w: empty", ErrInvalidRepoURL)
	}

	path := s
	if strings.Contains(s, "://") {
		u, perr := url.Parse(s)
		if perr != nil {
			return "", "", fmt.Errorf("%w: %v", ErrInvalidRepoURL, perr)
		}
		if u.Host != "github.com" && u.Host != "www.github.com" {
			return "", "", fmt.Errorf("%w: unsupported host %q", ErrInvalidRepoURL, u.Host)
		}
		path = u.Path
	} else if strings.HasPrefix(s, "github.com/") {
		path = strings.TrimPrefix(s, "github.com/")
	}

	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidRepoURL, raw)
	}
	return parts[0], strings.TrimSuffix(parts[1], ".git"), nil
}
