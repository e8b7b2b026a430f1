package session

import (
	"context"

	"golang.org/x/sync/singleflight"
)

// refreshKey is the single key under which all refreshes coalesce.
const refreshKey = "refresh"

// coordinator serializes refresh attempts. The first caller to request a
// refresh starts the network round-trip; every concurrent caller joins the
// in-flight call and receives the same outcome. This is what keeps two
// callers from racing the server's refresh-token rotation and tripping its
// reuse detection.
type coordinator struct {
	group singleflight.Group

	// run performs one refresh attempt. It must not be retried on failure;
	// a rotated-token race or an expired refresh token cannot be resolved
	// by repeating the same call.
	run func(ctx context.Context) error
}

// refreshIfNeeded executes (or joins) a refresh and reports its outcome.
// shared is true when the outcome was handed to more than one caller.
func (c *coordinator) refreshIfNeeded(ctx context.Context) (shared bool, err error) {
	_, err, shared = c.group.Do(refreshKey, func() (any, error) {
		// The refresh runs to completion even if the initiating caller goes
		// away; late joiners depend on its result.
		return nil, c.run(context.WithoutCancel(ctx))
	})
	return shared, err
}

// settle blocks until any in-flight refresh has finished. A logout must call
// this before clearing state, otherwise it could clear a credential that the
// refresh is about to overwrite with a freshly rotated value, resurrecting
// the stale one.
func (c *coordinator) settle() {
	_, _, _ = c.group.Do(refreshKey, func() (any, error) {
		return nil, nil
	})
}
