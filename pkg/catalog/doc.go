// Package catalog provides a reusable library for cataloging digital assets:
// uploaded files together with descriptive metadata, curation and review
// workflow fields, copyright attribution and the user who created them.
//
// It exposes a single Service interface that orchestrates content creation
// and updates, upload normalization, metadata tagging and user registration.
// Implementations of repositories (memory, Postgres, SQLite) and blob stores
// (memory, filesystem, S3) are provided under subpackages.
//
// Upload Normalization
//
// Whenever a file is attached to a Content record in the same operation,
// the payload is read once, hashed with SHA-256, measured and stored under
// a sanitized file name. Operations that carry no payload never touch the
// file fields. Stored file names are unique across the catalog.
//
// Users and Profiles
//
// Every user has exactly one Profile. RegisterUser creates both inside a
// single repository transaction; the profile's content count is derived at
// read time.
package catalog
