// Package common provides the shared service plumbing: the logger factory
// used by every component and the service configuration struct the CLI
// populates.
package common
