// Package blob stores encoded tiles and catalogs by key.
//
// Keys are tile locators or catalog file names: slash-separated relative
// paths. A Store is written by the pyramid builder and read by
// source.Blob. Three backends are provided: a local directory, Redis and
// an S3-compatible bucket.
package blob
