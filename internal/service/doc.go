// Package service provides the application-level task operations: cache-first
// list reads, cache invalidation on writes, response shaping, and translation
// of store errors into service errors.
package service
