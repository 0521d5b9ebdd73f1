package models

import (
	"fmt"
	"strings"
)

type Platform string

const (
	PlatformGitHub    Platform = "github"
	PlatformGitLab    Platform = "gitlab"
	PlatformBitbucket Platform = "bitbucket"
	PlatformAzure     Platform = "azure"
	PlatformForgejo   Platform = "forgejo"
)

// Platforms lists every supported source-control platform in a stable order.
var Platforms = []Platform{
	PlatformGitHub,
	PlatformGitLab,
	PlatformBitbucket,
	PlatformAzure,
	PlatformForgejo,
}

// ParsePlatform maps a URL segment or CLI flag onto a Platform. "gitea" and
// "azure_repos" are accepted as aliases.
func ParsePlatform(s string) (Platform, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "github":
		return PlatformGitHub, nil
	case "gitlab":
		return PlatformGitLab, nil
	case "bitbucket":
		return PlatformBitbucket, nil
	case "azure", "azure_repos", "azuredevops":
		return PlatformAzure, nil
	case "forgejo", "gitea":
		return PlatformForgejo, nil
	}
	return "", fmt.Errorf("unknown platform %q", s)
}

func (p Platform) String() string { return string(p) }
