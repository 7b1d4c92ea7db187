package gitupdater

import (
	"errors"
	"testing"

	"github.com/kde-builder/kde-builder/internal/gitutil"
	"github.com/kde-builder/kde-builder/internal/kerrors"
	"github.com/kde-builder/kde-builder/internal/options"
	"github.com/kde-builder/kde-builder/internal/project"
)

func newTestProject(t *testing.T, overrides map[string]string) *project.Project {
	t.Helper()
	table := options.New()
	p := &project.Project{Name: "kcalc", Options: table}
	for k, v := range overrides {
		if err := table.Set(options.ScopeProject, p.Name, k, v); err != nil {
			t.Fatal(err)
		}
	}
	return p
}

type fakeBranchResolver struct {
	branch string
	err    error
}

func (f fakeBranchResolver) ResolveBranch(name, branchGroup string) (string, error) {
	return f.branch, f.err
}

func TestTargetRefPrecedence(t *testing.T) {
	tests := []struct {
		name      string
		overrides map[string]string
		path      string
		resolver  BranchResolver
		want      string
	}{
		{
			name:      "revision wins over everything",
			overrides: map[string]string{"revision": "deadbeef", "tag": "v1.0", "branch": "release"},
			want:      "deadbeef",
		},
		{
			name:      "tag wins over branch",
			overrides: map[string]string{"tag": "v1.0", "branch": "release"},
			want:      "tags/v1.0",
		},
		{
			name:      "branch wins over database resolution",
			overrides: map[string]string{"branch": "release/24.08"},
			path:      "kde/kdeutils/kcalc",
			resolver:  fakeBranchResolver{branch: "master"},
			want:      "release/24.08",
		},
		{
			name:     "falls back to the project database",
			path:     "kde/kdeutils/kcalc",
			resolver: fakeBranchResolver{branch: "master"},
			want:     "master",
		},
		{
			name: "no ref at all when nothing resolves",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestProject(t, tt.overrides)
			p.ProjectPath = tt.path
			u := &Updater{DB: tt.resolver}
			got, err := u.targetRef(p)
			if err != nil {
				t.Fatalf("targetRef: %v", err)
			}
			if got != tt.want {
				t.Errorf("targetRef() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestClassifyMapsGitStderrToTaxonomy(t *testing.T) {
	tests := []struct {
		name    string
		stderr  string
		wantPtr error
	}{
		{"auth", "fatal: Authentication failed for ...", &kerrors.AuthError{}},
		{"network", "fatal: unable to access: Could not resolve host", &kerrors.NetworkError{}},
		{"unknown ref", "fatal: couldn't find remote ref refs/heads/nope", &kerrors.UnknownRefError{}},
		{"conflict", "error: Your local changes would be overwritten by merge", &kerrors.ConflictError{}},
		{"unrecognized falls back to network", "fatal: something else entirely", &kerrors.NetworkError{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gitErr := &gitutil.Error{Args: []string{"fetch"}, Stderr: tt.stderr, Err: errors.New("exit status 1")}
			got := classify("kcalc", "master", gitErr)
			if gotType, wantType := typeName(got), typeName(tt.wantPtr); gotType != wantType {
				t.Errorf("classify() = %T, want %T", got, tt.wantPtr)
			}
		})
	}
}

func typeName(err error) string {
	switch err.(type) {
	case *kerrors.AuthError:
		return "auth"
	case *kerrors.NetworkError:
		return "network"
	case *kerrors.UnknownRefError:
		return "unknownref"
	case *kerrors.ConflictError:
		return "conflict"
	default:
		return "other"
	}
}
