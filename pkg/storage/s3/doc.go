// Package s3 stores assessment photo blobs in an S3 compatible bucket.
//
//	store, err := s3.NewPhotoStore(ctx, cfg.Storage, metrics)
//
// Static credentials from the configuration are used when both keys are set;
// otherwise the default AWS credential chain applies. Set S3Endpoint and
// S3UsePathStyle to target MinIO. The bucket is created on startup when it
// does not exist.
package s3
