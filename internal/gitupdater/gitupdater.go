// Package gitupdater implements the git update plug-in (spec.md §4.4):
// clone a project on first sight, otherwise fetch and fast-forward (or
// reset, if the project opted into it) its checkout to the ref computed
// from revision > tag > branch > project-database resolve_branch
// precedence. Built on internal/gitutil, the same git-plumbing runner the
// project database's fetcher uses.
package gitupdater

import (
	"context"
	"os"
	"strings"

	"github.com/kde-builder/kde-builder/internal/gitutil"
	"github.com/kde-builder/kde-builder/internal/kerrors"
	"github.com/kde-builder/kde-builder/internal/project"
	"github.com/kde-builder/kde-builder/internal/projectdb"
)

// BranchResolver resolves a project database entry's branch for a branch
// group; satisfied by *projectdb.Database.
type BranchResolver interface {
	ResolveBranch(name, branchGroup string) (string, error)
}

// Updater runs the git update phase for one project and satisfies
// internal/scheduler.Updater.
type Updater struct {
	DB BranchResolver // may be nil when no project uses database-resolved branches
}

// Update clones or fast-forwards p's checkout, per spec.md §4.4's ref
// precedence (revision > tag > branch > project-database resolve_branch).
// ok is false when the checkout was already at the target ref (no-op).
// When ok is true, revision is the resulting HEAD commit and fromCommit is
// the commit the checkout was at before updating ("" on a fresh clone);
// both are "" when ok is false.
func (u *Updater) Update(ctx context.Context, p *project.Project) (ok bool, revision string, fromCommit string, err error) {
	repo := gitutil.New(p.SourceDir)

	ref, err := u.targetRef(p)
	if err != nil {
		return false, "", "", err
	}

	if _, statErr := os.Stat(p.SourceDir); os.IsNotExist(statErr) {
		url := p.Repository
		if db, ok := u.DB.(*projectdb.Database); ok && db != nil && url == project.KDEProjectsToken && p.ProjectPath != "" {
			if resolved, err := db.URL(p.ProjectPath); err == nil {
				url = resolved
			}
		}
		if url == "" || url == project.KDEProjectsToken {
			return false, "", "", &kerrors.ConfigError{Msg: "project " + p.Name + " has no repository URL"}
		}
		if err := repo.RunSilent(ctx, "clone", url, p.SourceDir); err != nil {
			return false, "", "", classify(p.Name, ref, err)
		}
		if ref != "" {
			if err := repo.RunSilent(ctx, "checkout", ref); err != nil {
				return false, "", "", classify(p.Name, ref, err)
			}
		}
		head, _ := repo.Run(ctx, "rev-parse", "HEAD")
		return true, head, "", nil
	}

	before, _ := repo.Run(ctx, "rev-parse", "HEAD")

	if err := repo.RunSilent(ctx, "fetch", "--prune", "origin"); err != nil {
		return false, "", "", classify(p.Name, ref, err)
	}

	target := ref
	if target == "" {
		target = "origin/HEAD"
	} else if !strings.Contains(target, "/") {
		// A bare branch name: prefer the remote-tracking ref so a
		// fast-forward check has something to compare against.
		if out, err := repo.Run(ctx, "rev-parse", "--verify", "-q", "origin/"+target); err == nil && out != "" {
			target = "origin/" + target
		}
	}

	if p.Get("use-clean-install") == "true" {
		if err := repo.RunSilent(ctx, "reset", "--hard", target); err != nil {
			return false, "", "", classify(p.Name, ref, err)
		}
	} else {
		if err := repo.RunSilent(ctx, "merge", "--ff-only", target); err != nil {
			return false, "", "", &kerrors.NonFastForwardError{Project: p.Name, Ref: target}
		}
	}

	after, _ := repo.Run(ctx, "rev-parse", "HEAD")
	if after == before {
		return false, "", "", nil
	}
	return true, after, before, nil
}

// targetRef computes the ref to update to, per spec.md §4.4's precedence:
// an explicit revision pins exactly; else a tag; else an explicit branch;
// else the project database's resolve_branch for this project's
// branch-group.
func (u *Updater) targetRef(p *project.Project) (string, error) {
	if rev := p.Get("revision"); rev != "" {
		return rev, nil
	}
	if tag := p.Get("tag"); tag != "" {
		return "tags/" + tag, nil
	}
	if branch := p.Get("branch"); branch != "" {
		return branch, nil
	}
	if u.DB == nil || p.ProjectPath == "" {
		return "", nil
	}
	bg := p.Get("branch-group")
	branch, err := u.DB.ResolveBranch(p.ProjectPath, bg)
	if err != nil {
		return "", nil
	}
	return branch, nil
}

// classify maps a raw git failure to the taxonomy of spec.md §7.
func classify(projectName, ref string, err error) error {
	var gitErr *gitutil.Error
	if e, ok := err.(*gitutil.Error); ok {
		gitErr = e
	}
	if gitErr == nil {
		return &kerrors.NetworkError{Project: projectName, Err: err}
	}
	stderr := strings.ToLower(gitErr.Stderr)
	switch {
	case strings.Contains(stderr, "authentication") || strings.Contains(stderr, "permission denied") || strings.Contains(stderr, "could not read username"):
		return &kerrors.AuthError{Project: projectName, Err: err}
	case strings.Contains(stderr, "could not resolve host") || strings.Contains(stderr, "connection refused") || strings.Contains(stderr, "unable to access"):
		return &kerrors.NetworkError{Project: projectName, Err: err}
	case strings.Contains(stderr, "couldn't find remote ref") || strings.Contains(stderr, "unknown revision"):
		return &kerrors.UnknownRefError{Project: projectName, Ref: ref}
	case strings.Contains(stderr, "conflict") || strings.Contains(stderr, "overwritten by merge"):
		return &kerrors.ConflictError{Project: projectName, Err: err}
	default:
		return &kerrors.NetworkError{Project: projectName, Err: err}
	}
}

var _ BranchResolver = (*projectdb.Database)(nil)
