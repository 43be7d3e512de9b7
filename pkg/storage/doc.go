// Package storage holds the persistence configuration and the photo blob
// backends behind assessment.PhotoStore.
//
// # Backends
//
// FilesystemPhotoStore writes blobs under a root directory and is the default
// for single-node deployments:
//
//	store, err := storage.NewFilesystemPhotoStore("/var/lib/fieldops/photos", metrics)
//
// The s3 subpackage stores blobs in an S3 compatible bucket (AWS or MinIO), and
// the postgres subpackage holds the relational assessment repository, schema
// migrations and the Redis client used by the shared actor cache.
//
// Every blob operation reports its outcome to an OperationRecorder, which the
// server wires to the fieldops_storage_operations_total metric.
package storage
