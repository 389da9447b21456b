// Package store adapts an external rendezvous key/value store to the interface the
// collective transport's fullmesh connect consumes. The store implementation itself
// (etcd, a filesystem, a coordinator service, ...) is an external collaborator out of
// scope for this module.
package store

import (
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/procgroup/procgroup/transport"
)

// Store is the minimal external key/value store interface procgroup needs for
// rendezvous: set, get, and wait-until-present (with or without an explicit timeout).
type Store interface {
	Set(key string, value []byte) error
	Get(key string) ([]byte, error)
	Wait(keys []string) error
	WaitTimeout(keys []string, timeout time.Duration) error
}

// Adapter adapts a Store to transport.RendezvousStore.
//
// Byte containers across that boundary may differ in signedness between the two call
// sites; Adapter converts without copying semantics.
//
// Every key is namespaced with a UUID generated at construction, so multiple Groups (or
// repeated test runs) sharing one long-lived external store never collide on key names --
// so two Groups sharing one long-lived external store never collide on key names.
type Adapter struct {
	store          Store
	namespace      string
	defaultTimeout time.Duration
}

// DefaultWaitTimeout is the Adapter's own default, used by Wait when the caller does not
// specify a timeout (see SetDefaultTimeout). Adapter never calls the Store's untimed
// Wait, so the external store's own default wait behavior is not used.
const DefaultWaitTimeout = 10 * time.Second

// NewAdapter wraps store with a fresh random namespace.
func NewAdapter(store Store) *Adapter {
	return &Adapter{
		store:          store,
		namespace:      uuid.NewString(),
		defaultTimeout: DefaultWaitTimeout,
	}
}

// SetDefaultTimeout overrides the timeout used by Wait calls without an explicit one.
func (a *Adapter) SetDefaultTimeout(d time.Duration) {
	a.defaultTimeout = d
}

func (a *Adapter) namespacedKey(key string) string {
	return a.namespace + "/" + key
}

// Set implements transport.RendezvousStore.
func (a *Adapter) Set(key string, value []byte) error {
	if err := a.store.Set(a.namespacedKey(key), value); err != nil {
		return errors.Wrapf(err, "store: set %q", key)
	}
	return nil
}

// Get implements transport.RendezvousStore.
func (a *Adapter) Get(key string) ([]byte, error) {
	value, err := a.store.Get(a.namespacedKey(key))
	if err != nil {
		return nil, errors.Wrapf(err, "store: get %q", key)
	}
	return value, nil
}

// Wait implements transport.RendezvousStore. A zero timeout means "use the adapter's
// configured default.
func (a *Adapter) Wait(keys []string, timeout time.Duration) error {
	namespaced := make([]string, len(keys))
	for i, k := range keys {
		namespaced[i] = a.namespacedKey(k)
	}
	if timeout <= 0 {
		timeout = a.defaultTimeout
	}
	if err := a.store.WaitTimeout(namespaced, timeout); err != nil {
		return errors.Wrap(err, "store: wait for rendezvous keys")
	}
	return nil
}

var _ transport.RendezvousStore = (*Adapter)(nil)
