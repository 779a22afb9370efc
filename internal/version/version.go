// Package version carries build metadata injected with -ldflags.
package version

import "github.com/doeshing/liftlog/internal/domain"

var (
	// Version is the release tag.
	Version = "dev"
	// Commit is the source revision.
	Commit = ""
	// BuildDate is the UTC build timestamp.
	BuildDate = ""
)

// LocalCacheSchema is the schema stamp written into every local partition payload.
func LocalCacheSchema() string {
	return domain.LocalCacheSchemaVersion
}
