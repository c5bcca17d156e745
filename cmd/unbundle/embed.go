// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package main

import (
	"embed"

	"github.com/hashicorp/go-unbundle"
)

// bundleName is the path of the application archive in bundle. Replace the
// file before building to ship another application.
const bundleName = "bundle/target.war"

//go:embed bundle/target.war
var bundle embed.FS

func bundledArchive() unbundle.Source {
	return unbundle.NewEmbeddedSource(bundle, bundleName)
}
