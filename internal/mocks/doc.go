// Package mocks provides hand-written test doubles shared across packages.
// Each mock exposes overridable function fields so individual tests can
// script behavior without a mocking framework.
package mocks
