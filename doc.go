// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// Package unbundle installs an archive that is bundled with a program into a
// destination directory.
//
// The archive is provided by a [Source], usually a file that is embedded into
// the binary, and written to a [Target], usually the local disk:
//
//	//go:embed bundle/target.war
//	var bundle embed.FS
//
//	src := unbundle.NewEmbeddedSource(bundle, "bundle/target.war")
//	cfg := unbundle.NewConfig(unbundle.WithForce(true))
//	if err := unbundle.Install(ctx, src, "/opt/app", cfg); err != nil {
//		// handle error
//	}
//
// Supported archives are zip (including war and jar files), tar and tar
// archives compressed with gzip, bzip2, lz4, snappy, xz or zstd. The format is
// detected from the content.
//
// A missing destination is created, its parent directory must exist. A
// destination that is not empty is only changed if [WithForce] is set, then
// all existing content is removed before the archive is unpacked. With
// [WithAtomic] the archive is unpacked next to the destination first and only
// moved into place if every entry was written.
package unbundle
