// Package async provides panic-safe background execution for the service.
//
// SafeGo fires a single task with a timeout, logging its error or recovered
// panic instead of crashing the process. Scheduled housekeeping such as the
// session cleanup and the replica health sweep runs through it.
//
//	async.SafeGo(ctx, log, time.Minute, "session cleanup", func(ctx context.Context) error {
//		_, err := sessions.CleanupExpired(ctx)
//		return err
//	})
//
// WorkerPool runs submitted tasks on a fixed number of goroutines and reports
// failures on its Errors channel.
//
//	pool := async.NewWorkerPool(ctx, 4, "thumbnail", time.Minute)
//	defer pool.Shutdown(30 * time.Second)
//	pool.Submit(func(ctx context.Context) error { return render(ctx, key) })
//
// Batch fans a slice out over a bounded pool and returns every error. The
// assessment service uses it to write and remove photo blobs in parallel.
//
//	errs := async.Batch(ctx, keys, 4, "photo delete", 30*time.Second, func(ctx context.Context, key string) error {
//		return store.Delete(ctx, key)
//	})
package async
