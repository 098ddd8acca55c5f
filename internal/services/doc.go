// Package services defines the shared service-layer vocabulary: sentinel
// error markers and the failure categorizer, retry backoff, context
// correlation keys, and the collaborator contracts the orchestrator consumes.
package services
