package internal

import (
	"cmp"
	"context"
	"runtime"

	"golang.org/x/sync/semaphore"
)

// workerPool bounds how many blocking handlers and providers run at once.
type workerPool struct {
	sem  *semaphore.Weighted
	size int
}

func newWorkerPool(size int) *workerPool {
	if size < 1 {
		size = defaultPoolSize()
	}
	return &workerPool{sem: semaphore.NewWeighted(int64(size)), size: size}
}

func defaultPoolSize() int {
	return runtime.GOMAXPROCS(0) * 4
}

// doBlocking runs fn once a pool slot is free. Only the wait for a slot
// honours ctx: fn runs to completion before doBlocking returns, so the
// request scope never outlives the request. When ctx ended meanwhile, the
// result of fn is discarded. Panics in fn are returned as PanicError.
func doBlocking[T any](ctx context.Context, pool *workerPool, fn func() (T, error)) (v T, err error) {
	if err := pool.sem.Acquire(ctx, 1); err != nil {
		return v, cmp.Or(abandoned(ctx), err)
	}
	defer pool.sem.Release(1)
	defer func() {
		if r := recover(); r != nil {
			var zero T
			v, err = zero, NewPanicError(r)
		}
	}()

	v, err = fn()
	if aerr := abandoned(ctx); aerr != nil {
		var zero T
		return zero, aerr
	}
	return v, err
}
