// Package gitinfo resolves identity and repository facts by shelling out to
// git, caching results per working directory so repeated hook invocations do
// not pay for repeated subprocess calls.
package gitinfo

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path"
	"strings"
	"time"
)

// Unknown is the sentinel substituted whenever git is unavailable or a query
// fails. Collaborator failures never fail the event being processed.
const Unknown = "unknown"

// Context holds the repository facts attached to session records.
type Context struct {
	UserName   string `json:"user_name"`
	UserEmail  string `json:"user_email"`
	RemoteURL  string `json:"remote_url"`
	RepoName   string `json:"repo_name"`
	Branch     string `json:"branch"`
	HeadCommit string `json:"head_commit"`
}

// CommitStats describes the most recent commit in a repository.
type CommitStats struct {
	Hash              string
	Author            string
	FilesChanged      int
	Insertions        int
	Deletions         int
	TotalLinesChanged int
}

type cacheEntry struct {
	Context   Context   `json:"context"`
	FetchedAt time.Time `json:"fetched_at"`
}

// Resolver caches per-directory repository context in a single JSON file
// under the state directory.
type Resolver struct {
	cachePath string
	ttl       time.Duration
}

func NewResolver(cachePath string, ttl time.Duration) *Resolver {
	return &Resolver{cachePath: cachePath, ttl: ttl}
}

// Resolve returns the repository context for cwd, from cache when fresh.
// Every field degrades to "unknown" on failure; Resolve never errors.
func (r *Resolver) Resolve(cwd string) Context {
	cache := r.readCache()
	if entry, ok := cache[cwd]; ok && time.Since(entry.FetchedAt) < r.ttl {
		return entry.Context
	}

	ctx := query(cwd)

	cache[cwd] = cacheEntry{Context: ctx, FetchedAt: time.Now().UTC()}
	r.writeCache(cache)

	return ctx
}

// CommitStats reports hash, author, and diff-stat totals for the head commit.
func (r *Resolver) CommitStats(cwd string) (*CommitStats, error) {
	out, err := runGit(cwd, "log", "-1", "--shortstat", "--pretty=format:%H%n%an")
	if err != nil {
		return nil, fmt.Errorf("failed to query head commit: %w", err)
	}

	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) < 2 {
		return nil, fmt.Errorf("unexpected git log output: %q", out)
	}

	stats := &CommitStats{
		Hash:   strings.TrimSpace(lines[0]),
		Author: strings.TrimSpace(lines[1]),
	}
	if len(lines) >= 3 {
		stats.FilesChanged, stats.Insertions, stats.Deletions = parseShortStat(lines[len(lines)-1])
		stats.TotalLinesChanged = stats.Insertions + stats.Deletions
	}
	return stats, nil
}

func (r *Resolver) readCache() map[string]cacheEntry {
	cache := make(map[string]cacheEntry)
	data, err := os.ReadFile(r.cachePath)
	if err != nil {
		return cache
	}
	if err := json.Unmarshal(data, &cache); err != nil {
		return make(map[string]cacheEntry)
	}
	return cache
}

func (r *Resolver) writeCache(cache map[string]cacheEntry) {
	data, err := json.Marshal(cache)
	if err != nil {
		return
	}
	tmp := r.cachePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return
	}
	_ = os.Rename(tmp, r.cachePath)
}

func query(cwd string) Context {
	ctx := Context{
		UserName:   gitValue(cwd, "config", "user.name"),
		UserEmail:  gitValue(cwd, "config", "user.email"),
		RemoteURL:  gitValue(cwd, "remote", "get-url", "origin"),
		Branch:     gitValue(cwd, "rev-parse", "--abbrev-ref", "HEAD"),
		HeadCommit: gitValue(cwd, "rev-parse", "HEAD"),
	}
	ctx.RepoName = RepoNameFromURL(ctx.RemoteURL)
	return ctx
}

func gitValue(cwd string, args ...string) string {
	out, err := runGit(cwd, args...)
	if err != nil {
		return Unknown
	}
	value := strings.TrimSpace(out)
	if value == "" {
		return Unknown
	}
	return value
}

func runGit(cwd string, args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = cwd
	out, err := cmd.Output()
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// RepoNameFromURL extracts "repo" from remote URLs in either scheme:
// git@host:org/repo.git or https://host/org/repo.git
func RepoNameFromURL(url string) string {
	if url == "" || url == Unknown {
		return Unknown
	}
	name := url
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	} else if i := strings.LastIndex(name, ":"); i >= 0 {
		name = name[i+1:]
	}
	name = strings.TrimSuffix(name, ".git")
	if name == "" {
		return Unknown
	}
	return path.Base(name)
}

// parseShortStat reads a line like
// " 3 files changed, 42 insertions(+), 7 deletions(-)"
func parseShortStat(line string) (files, insertions, deletions int) {
	for _, part := range strings.Split(line, ",") {
		part = strings.TrimSpace(part)
		var n int
		if _, err := fmt.Sscanf(part, "%d", &n); err != nil {
			continue
		}
		switch {
		case strings.Contains(part, "file"):
			files = n
		case strings.Contains(part, "insertion"):
			insertions = n
		case strings.Contains(part, "deletion"):
			deletions = n
		}
	}
	return files, insertions, deletions
}

// ParseGitCommand classifies a shell command. It returns the git verb and
// whether the command is a commit; ok is false for non-git commands.
func ParseGitCommand(command string) (verb string, isCommit bool, ok bool) {
	fields := strings.Fields(command)
	for i, f := range fields {
		if f != "git" {
			continue
		}
		for _, arg := range fields[i+1:] {
			if strings.HasPrefix(arg, "-") {
				// Skip global flags like -C or --no-pager; their values are
				// indistinguishable from verbs, so a flagged invocation may
				// misclassify. Plain "git <verb>" is the common case.
				continue
			}
			return arg, arg == "commit", true
		}
		return "", false, false
	}
	return "", false, false
}
