// Package mock provides test doubles for the ai package interfaces.
// The mock embedder produces deterministic vectors so similarity-dependent
// tests remain stable across runs.
package mock
