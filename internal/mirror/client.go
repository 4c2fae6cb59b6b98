// Package mirror keeps a best-effort copy of ReportHub tables as JSON documents
// in a GitHub repository, one file per table, through the contents API.
//
// Conflict policy: last writer wins. Every push overwrites the whole document
// with the local table; nothing is merged and nothing is retried.
package mirror

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/go-github/v66/github"
)

// ErrRemote wraps non-success responses from the remote API.
var ErrRemote = errors.New("remote snapshot request failed")

// Client reads and writes single JSON documents in one repository.
type Client struct {
	gh     *github.Client
	owner  string
	repo   string
	branch string
}

// NewClient creates a client for a repository URL of the form
// https://api.github.com/repos/<owner>/<repo>. Everything before /repos/ is
// used as the API root, so enterprise hosts and test servers work too. A nil hc
// uses a client with a 15 second timeout.
func NewClient(repoURL, token, branch string, hc *http.Client) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(repoURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid sync base url: %w", err)
	}

	root, rest, ok := strings.Cut(u.Path, "/repos/")
	parts := strings.Split(rest, "/")
	if !ok || len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return nil, fmt.Errorf("sync base url %q must end in /repos/<owner>/<repo>", repoURL)
	}
	u.Path = root + "/"

	if hc == nil {
		hc = &http.Client{Timeout: 15 * time.Second}
	}
	gh := github.NewClient(hc)
	if token != "" {
		gh = gh.WithAuthToken(token)
	}
	gh.BaseURL = u

	return &Client{gh: gh, owner: parts[0], repo: parts[1], branch: branch}, nil
}

// ReadSnapshot fetches the document at path and its revision token.
// A missing document returns (nil, "", nil).
func (c *Client) ReadSnapshot(ctx context.Context, path string) ([]byte, string, error) {
	var opts *github.RepositoryContentGetOptions
	if c.branch != "" {
		opts = &github.RepositoryContentGetOptions{Ref: c.branch}
	}

	file, _, resp, err := c.gh.Repositories.GetContents(ctx, c.owner, c.repo, strings.TrimLeft(path, "/"), opts)
	if resp != nil && resp.StatusCode == http.StatusNotFound {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("%w: GET %s: %w", ErrRemote, path, err)
	}
	if file == nil {
		return nil, "", fmt.Errorf("%w: %s is a directory", ErrRemote, path)
	}

	content, err := file.GetContent()
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode %s content: %w", path, err)
	}
	return []byte(content), file.GetSHA(), nil
}

// WriteSnapshot replaces the document at path. revision is the token returned
// by the last read, or "" when the document is new.
func (c *Client) WriteSnapshot(ctx context.Context, path string, data []byte, revision string) error {
	opts := &github.RepositoryContentFileOptions{
		Message: github.String("reporthub: update " + path),
		Content: data,
	}
	if c.branch != "" {
		opts.Branch = github.String(c.branch)
	}

	path = strings.TrimLeft(path, "/")
	var err error
	if revision == "" {
		_, _, err = c.gh.Repositories.CreateFile(ctx, c.owner, c.repo, path, opts)
	} else {
		opts.SHA = github.String(revision)
		_, _, err = c.gh.Repositories.UpdateFile(ctx, c.owner, c.repo, path, opts)
	}
	if err != nil {
		return fmt.Errorf("%w: PUT %s: %w", ErrRemote, path, err)
	}
	return nil
}
