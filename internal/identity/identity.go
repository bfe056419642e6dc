package identity

import (
	"fmt"

	qhttp "github.com/handiism/quicksong/internal/http"
)

// Identity is a proxy address paired with a User-Agent.
//
// Identities are value copies; holding one never keeps a pool entry alive.
// Generation records which refresh of the pool issued it.
type Identity struct {
	Address    string
	Scheme     string
	UserAgent  string
	Generation uint64
}

// Direct reports whether i bypasses any proxy.
func (i Identity) Direct() bool {
	return i.Address == ""
}

// Route converts i into the per-request route understood by the HTTP client.
func (i Identity) Route() qhttp.Route {
	return qhttp.Route{Scheme: i.Scheme, Address: i.Address, UserAgent: i.UserAgent}
}

func (i Identity) String() string {
	scheme := i.Scheme
	if scheme == "" {
		scheme = "http"
	}
	return fmt.Sprintf("%s://%s", scheme, i.Address)
}

// Source issues identities. Pool and Shard implement it.
type Source interface {
	// Acquire returns the next identity, or ErrPoolExhausted.
	Acquire() (Identity, error)

	// Invalidate removes the entry behind id. Removing an entry twice,
	// or through an identity issued before the last refresh, is a no-op.
	Invalidate(id Identity)

	// Len returns the number of entries the source can still issue.
	Len() int

	// After returns a rotation issuing the same groups identities for
	// interval consecutive calls.
	After(interval, groups int) *Rotation[Identity]
}
