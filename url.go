package main

import (
	"fmt"
	"net/http"
	"net/url"
	"regexp"
)

// repoPattern matches a GitHub or GitLab repository reference, with or
// without the protocol.
var repoPattern = regexp.MustCompile(`^(?:https?://)?(github|gitlab)\.com/([\w.-]+)/([\w.-]+?)(?:\.git)?/?$`)

var readmeBranches = []string{"main", "master"}

// isURL reports whether s is a fetchable http(s) URL.
func isURL(s string) bool {
	u, err := url.Parse(s)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https")
}

// readmeURL resolves a bare GitHub or GitLab repository reference to its
// raw README. Returns a nil source when arg does not look like a
// repository, so the caller can try the other source kinds.
func readmeURL(arg string) (*source, error) {
	m := repoPattern.FindStringSubmatch(arg)
	if m == nil {
		return nil, nil
	}

	host, owner, repo := m[1], m[2], m[3]
	for _, branch := range readmeBranches {
		var raw string
		switch host {
		case "github":
			raw = fmt.Sprintf("https://raw.githubusercontent.com/%s/%s/%s/README.md", owner, repo, branch)
		case "gitlab":
			raw = fmt.Sprintf("https://gitlab.com/%s/%s/-/raw/%s/README.md", owner, repo, branch)
		}

		resp, err := http.Get(raw) //nolint:noctx,bodyclose
		if err != nil {
			return nil, fmt.Errorf("unable to fetch readme: %w", err)
		}
		if resp.StatusCode == http.StatusOK {
			// consumer of the source is responsible for closing the body.
			return &source{resp.Body, raw}, nil
		}
		_ = resp.Body.Close()
	}

	return nil, fmt.Errorf("no readme found for %s", arg)
}
