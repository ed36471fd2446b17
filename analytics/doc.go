// Package analytics derives corpus-level reports from the document
// store: per-day creation volume with a growth-trend verdict, and
// metadata coverage across document types. The engine only reads; it
// never mutates the corpus.
package analytics
