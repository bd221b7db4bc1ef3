// Package api provides HTTP handlers for the task lifecycle API.
package api
