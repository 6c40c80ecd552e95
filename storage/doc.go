// Package storage provides VariableStorage implementations for the
// dialogue VM: an in-memory map, a SQLite-backed store that survives
// restarts, and a mutex wrapper for storage shared between VMs.
package storage
