// Package types provides core types shared across the hoplite engine.
// This package has ZERO dependencies on other hoplite packages to avoid
// circular imports. All other packages should import types from here.
//
// Everything except Chunk is request-scoped: produced while answering one
// question and discarded with the response. Chunks are owned by the vector
// index and are immutable once written.
package types
