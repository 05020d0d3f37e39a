package gitref

import (
	"strings"
	"testing"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		name       string
		branchRef  string
		headRef    string
		wantBranch string
		wantLabel  string
		wantPR     bool
		wantErr    bool
	}{
		{
			name:       "branch ref",
			branchRef:  "refs/heads/main",
			wantBranch: "main",
			wantLabel:  "main",
		},
		{
			name:       "tag ref",
			branchRef:  "refs/tags/v0.0.1",
			wantBranch: "v0.0.1",
			wantLabel:  "v0.0.1",
		},
		{
			name:       "pull request uses head ref branch",
			branchRef:  "refs/pull/6/merge",
			headRef:    "refs/heads/fix-loading",
			wantBranch: "fix-loading",
			wantLabel:  "pull request 6/merge",
			wantPR:     true,
		},
		{
			name:       "pull request with bare head ref",
			branchRef:  "refs/pull/12/merge",
			headRef:    "feature/new-menu",
			wantBranch: "feature/new-menu",
			wantLabel:  "pull request 12/merge",
			wantPR:     true,
		},
		{
			name:      "pull request without head ref",
			branchRef: "refs/pull/6/merge",
			wantErr:   true,
		},
		{
			name:       "bare branch name",
			branchRef:  "develop",
			wantBranch: "develop",
			wantLabel:  "develop",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ref, err := Resolve(tt.branchRef, tt.headRef)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Resolve() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if ref.Branch != tt.wantBranch {
				t.Errorf("Branch = %q, want %q", ref.Branch, tt.wantBranch)
			}
			if ref.Label != tt.wantLabel {
				t.Errorf("Label = %q, want %q", ref.Label, tt.wantLabel)
			}
			if ref.IsPullRequest != tt.wantPR {
				t.Errorf("IsPullRequest = %v, want %v", ref.IsPullRequest, tt.wantPR)
			}
		})
	}
}

func TestTargetName(t *testing.T) {
	tests := []struct {
		name    string
		primary string
		label   string
		want    string
	}{
		{
			name:    "simple branch",
			primary: "mac",
			label:   "develop",
			want:    "mac-develop",
		},
		{
			name:    "pull request label",
			primary: "ios",
			label:   "pull request 6/merge",
			want:    "ios-pull-request-6-merge",
		},
		{
			name:    "uppercase collapses to lowercase",
			primary: "Android",
			label:   "Feature/NewMenu",
			want:    "android-feature-newmenu",
		},
		{
			name:    "spaces and symbols collapse to single hyphen",
			primary: "webgl",
			label:   "fix   loading!!bug",
			want:    "webgl-fix-loading-bug",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TargetName(tt.primary, Ref{Label: tt.label})
			if got != tt.want {
				t.Errorf("TargetName() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTargetNameLength(t *testing.T) {
	long := strings.Repeat("very-long-branch-name", 5)
	got := TargetName("ios", Ref{Label: long})
	if len(got) > 63 {
		t.Errorf("TargetName() length = %d, want <= 63", len(got))
	}
}

func TestTargetNameDeterministic(t *testing.T) {
	ref := Ref{Label: "pull request 42/merge"}
	first := TargetName("ios", ref)
	second := TargetName("ios", ref)
	if first != second {
		t.Errorf("TargetName() not deterministic: %q vs %q", first, second)
	}
}

func TestSanitizeID(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"My Org", "my-org"},
		{"acme", "acme"},
		{"  Spaced Out Studio ", "spaced-out-studio"},
	}

	for _, tt := range tests {
		if got := SanitizeID(tt.in); got != tt.want {
			t.Errorf("SanitizeID(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
