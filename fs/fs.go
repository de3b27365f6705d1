// Package appfs holds the files embedded in the binaries: database migrations, assets and the ITS fixtures.
package appfs

import "embed"

//go:embed migrations all:assets its
var FS embed.FS
