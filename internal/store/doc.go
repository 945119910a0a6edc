// Package store provides SQLite-backed storage for document collections.
//
// A collection is an ordered list of JSON documents. Documents are loaded
// from JSONL, optionally validated against a JSON Schema kept with the
// collection, and read back in load order as trees for the executor.
//
// # Tables
//
//   - collections: name and optional JSON Schema
//   - documents: one row per document with its collection, seq, JSON text
//     and content hash
//
// # Ordering
//
// Scans order by seq, then id with COLLATE BINARY, so the same collection
// always yields the same document order.
//
// # Scan hints
//
// Store implements the executor's Catalog. When a Filter reads directly
// from a Scan, its predicate is compiled by internal/querysql into a
// json_extract prefilter. The prefilter only narrows what SQLite returns;
// the Filter still decides every row.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Document IDs are UUIDv7, so they sort by creation time. Content hashes
// come from ir.ResultHash and identify equal documents for deduplication.
package store
