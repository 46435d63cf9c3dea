package tool

import (
	"errors"
	"testing"
)

func TestParseRepoURL(t *testing.T) {
	tests := []struct {
		in          string
		owner, repo string
		wantErr     bool
	}{
		{in: "https://github.com/acme/widgets", owner: "acme", repo: "widgets"},
		{in: "https://github.com/acme/widgets.git", owner: "acme", repo: "widgets"},
		{in: "https://github.com/acme/widgets/tree/main/docs", owner: "acme", repo: "widgets"},
		{in: "github.com/acme/widgets", owner: "acme", repo: "widgets"},
		{in: "acme/widgets", owner: "acme", repo: "widgets"},
		{in: "  acme/widgets/ ", owner: "acme", repo: "widgets"},
		{in: "", wantErr: true},
		{in: "acme", wantErr: true},
		{in: "https://gitlab.com/acme/widgets", wantErr: true},
		{in: "https://github.com/acme", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			owner, repo, err := ParseRepoURL(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidRepoURL) {
					t.Errorf("expected ErrInvalidRepoURL, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if owner != tt.owner || repo != tt.repo {
				t.Errorf("expected %s/%s, got %s/%s", tt.owner, tt.repo, owner, repo)
			}
		})
	}
}

func TestFetchRequest_Kinds(t *testing.T) {
	if got := (FetchRequest{}).Kinds(); len(got) != 1 || got[0] != ArtifactReadme {
		t.Errorf("expected readme by default, got %v", got)
	}
	got := FetchRequest{KeyFiles: true, Readme: true}.Kinds()
	if len(got) != 2 || got[0] != ArtifactReadme || got[1] != ArtifactKeyFiles {
		t.Errorf("expected [readme keyFiles], got %v", got)
	}
}

func TestArtifacts_String(t *testing.T) {
	single := Artifacts{ArtifactReadme: "hello"}
	if single.String() != "hello" {
		t.Errorf("expected bare readme, got %q", single.String())
	}

	multi := Artifacts{ArtifactKeyFiles: "k", ArtifactReadme: "r"}
	want := "## readme\n\nr\n\n## keyFiles\n\nk"
	if multi.String() != want {
		t.Errorf("expected %q, got %q", want, multi.String())
	}
}
