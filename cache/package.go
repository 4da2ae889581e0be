/*
Package cache provides an interface to cache items. It should not be of any
concern to the callee where this cache is, simply that the cache exists and will
speed things up.

Two backends are available, redis and memcache. Both sit behind a bounded
connection pool and report a pool that cannot hand out a connection as
ErrUnavailable, which callers treat as "carry on without the cache" rather
than as a failed request.

Eventual consistency of the cached items is promised, but nothing more.
*/
package cache
