// Copyright 2022, Pulumi Corporation.  All rights reserved.

package version

import "github.com/blang/semver"

// Version is set at build time with
// -ldflags "-X github.com/pulumi/lsp-dispatch/sdk/version.Version=v1.2.3".
var Version = "v0.0.0-dev"

// Semver parses Version. A leading "v" is accepted.
func Semver() (semver.Version, error) {
	return semver.ParseTolerant(Version)
}

// String is Version normalized to semver, or Version itself if it does not
// parse.
func String() string {
	v, err := Semver()
	if err != nil {
		return Version
	}
	return v.String()
}
