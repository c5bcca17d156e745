// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package main

import "github.com/hashicorp/go-unbundle/cmd"

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// main start the installer with the bundled application
func main() {
	cmd.Run(bundledArchive(), version, commit, date)
}
