// Package identity manages the rotating pool of proxy identities used to
// spread requests over several outbound addresses.
//
// # Pool
//
// A Pool is filled from a Lister (usually a Directory scraping a public
// proxy listing), validated in the background by a Prober, and handed out
// cyclically:
//
//	pool := identity.NewPool(identity.Config{
//	    Lister: identity.NewDirectory(client, identity.DefaultDirectoryURL, 20),
//	    Prober: identity.NewHTTPProber(client, identity.DefaultProbeURL, 0),
//	})
//	if err := pool.Refresh(ctx); err != nil {
//	    // run without proxies
//	}
//	id, err := pool.Acquire()
//	if errors.Is(err, identity.ErrPoolExhausted) {
//	    // no usable proxy left
//	}
//
// A failing proxy is removed with Invalidate; removing it twice is a no-op,
// and identities issued before the last Refresh never remove anything.
// After RefreshAfter issuances the pool re-reads the listing on its own.
//
// # Shards
//
// Several downloaders running side by side each take a Shard, so no two of
// them ever use the same proxy:
//
//	shard := pool.Shard(worker, workers)
//
// # Rotation
//
// A Rotation keeps the same identity for a few consecutive calls:
//
//	rot := pool.After(4, 1)
//	group, err := rot.Next()
package identity
