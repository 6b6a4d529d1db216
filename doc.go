// Package thetaclient is a bulk historical market-data ingestion
// client: it plans a Query into per-file URL groups against an
// upstream trading-day calendar, runs those groups through a bounded
// fetch → decode → finalize pipeline, and writes each completed file
// to an S3-compatible object store as Parquet.
package thetaclient
