// Package migrations holds the versioned SQL schema, embedded so every
// binary can apply it without a checkout on disk.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
