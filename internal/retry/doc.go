// Package retry wraps index lookups with exponential backoff that honours
// server Retry-After hints.
package retry
