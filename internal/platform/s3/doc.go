// Package s3 provides a small client for S3-compatible object storage.
//
// It is used to keep cluster state snapshots in a bucket, so a restarted
// autoscaler can seed its state store. Any S3-compatible endpoint works;
// path-style addressing can be enabled for stores such as MinIO.
package s3
