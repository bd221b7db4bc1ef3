// Package testutils provides small helpers shared by package tests, such as
// an in-memory slog handler for asserting on structured log output.
package testutils
