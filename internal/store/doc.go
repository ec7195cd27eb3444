// Package store is the durable snapshot store: named collections of JSON
// documents with whole-document replace semantics.
//
// Reads of a missing collection return an empty document. Writes replace the
// collection atomically; callers that need read-modify-write use Transaction
// so the cycle stays atomic regardless of the backing driver.
package store
