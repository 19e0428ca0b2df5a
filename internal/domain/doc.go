// Package domain defines the shared types and interfaces of the preview-sync service.
//
// Concept-oriented files (sync.go, maintenance.go, errors.go) hold contracts only, no
// implementation code, so adapters and the relay can depend on them without import cycles.
package domain
