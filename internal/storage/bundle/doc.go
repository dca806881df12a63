// Package bundle provides portable snapshot export files.
//
// A bundle carries a set of snapshot records for one project (optionally
// one document) so they can be moved between machines or kept as an
// off-store backup:
//
//	bundle-<timestamp>-<sequence>.iwsnap
//	[magic:8 "IWSNAPBN"]
//	[HeaderLen:4][HeaderJSON:HeaderLen]
//	[DataLen:4][Data:DataLen]   (JSON snapshot records)
//	[checksum:16 murmur3-128 of all bytes above]
//
// The checksum detects truncation and corruption; it is not a signature.
//
// Archive keeps bundles in a local directory with count-based retention.
// ObjectArchive mirrors bundle files to S3-compatible object storage.
package bundle
