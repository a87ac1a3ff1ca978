// Package gitutil parses the ways users refer to GitHub repositories and commits.
package gitutil

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	commitURLRegex = regexp.MustCompile(`github\.com/([^/]+)/([^/]+)/commit/([0-9a-fA-F]{7,40})$`)
	repoURLRegex   = regexp.MustCompile(`github\.com[/:]([^/]+)/([^/]+?)(?:\.git)?$`)
	namePartRegex  = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)
)

// ParseCommitURL parses a GitHub commit URL and extracts the owner, repo, and sha.
// Supported format: https://github.com/{owner}/{repo}/commit/{sha}
func ParseCommitURL(url string) (owner, repo, sha string, err error) {
	url = strings.TrimSuffix(strings.TrimSpace(url), "/")

	matches := commitURLRegex.FindStringSubmatch(url)
	if len(matches) != 4 {
		return "", "", "", fmt.Errorf("invalid commit URL format: %s", url)
	}
	return matches[1], matches[2], strings.ToLower(matches[3]), nil
}

// ParseRepository accepts "owner/name", an https URL or an ssh remote and
// returns the repository full name.
func ParseRepository(ref string) (string, error) {
	ref = strings.TrimSuffix(strings.TrimSpace(ref), "/")
	if ref == "" {
		return "", fmt.Errorf("repository reference is empty")
	}

	var owner, name string
	if m := repoURLRegex.FindStringSubmatch(ref); len(m) == 3 {
		owner, name = m[1], m[2]
	} else {
		parts := strings.Split(ref, "/")
		if len(parts) != 2 {
			return "", fmt.Errorf("invalid repository reference %q: want owner/name", ref)
		}
		owner, name = parts[0], strings.TrimSuffix(parts[1], ".git")
	}

	if !namePartRegex.MatchString(owner) || !namePartRegex.MatchString(name) {
		return "", fmt.Errorf("invalid repository reference %q", ref)
	}
	return owner + "/" + name, nil
}
