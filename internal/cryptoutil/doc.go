// Package cryptoutil provides the hashing helpers used to fingerprint
// documents and verify backups.
//
// It supports:
//   - SHA-256 hex digests of in-memory data and of files on disk
//   - Constant-time hash comparison
package cryptoutil
