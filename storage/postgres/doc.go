// Package postgres implements the document store on PostgreSQL with the
// pgvector extension. Open ensures the schema (table, ivfflat cosine
// index, GIN metadata index) on connect; the database user needs DDL
// rights on first run.
package postgres
