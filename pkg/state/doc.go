/*
Package state implements the process-wide Context store.

The Store keeps the in-memory Context and a persisted JSON blob in sync. Every
mutation goes through Merge, which applies persisted ⊕ in-memory ⊕ patch, writes
the result back and returns it. Merges of the same blob key are serialized with a
reference-counted local lock and, optionally, a distributed lock so that replicas
sharing a backend never interleave their read-merge-write cycles.

Persistence failures never fail a merge: they are logged and the in-memory value
stays authoritative for the current process.
*/
package state
