// Package artifactstore defines the port for persisting file artifacts
// delivered by remote agents, keyed by the file's declared name.
package artifactstore

import "context"

// Artifact is a stored file artifact.
type Artifact struct {
	Name     string
	MIMEType string
	Data     []byte
}

// Store is the port interface for artifact persistence. Artifacts live for
// the duration of a session; durability across restarts is not required.
type Store interface {
	// Save persists the artifact under its name, replacing any previous
	// artifact with the same name.
	Save(ctx context.Context, a Artifact) error

	// Load retrieves an artifact by name.
	Load(ctx context.Context, name string) (Artifact, bool, error)
}
