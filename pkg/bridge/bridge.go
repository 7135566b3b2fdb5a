// Package bridge maps JSON-RPC methods onto the messaging core's
// collaborators. It is a thin adapter: protocol logic stays in the
// collaborators; the bridge validates params, tracks session state, and
// shapes results for the wire.
package bridge

import (
	"context"
	"os"

	"github.com/veilmsg/veilbridge/pkg/config"
	"github.com/veilmsg/veilbridge/pkg/contacts"
	"github.com/veilmsg/veilbridge/pkg/identity"
	"github.com/veilmsg/veilbridge/pkg/keystore"
	"github.com/veilmsg/veilbridge/pkg/logging"
	"github.com/veilmsg/veilbridge/pkg/network"
)

// Bridge owns the session state for one process lifetime. Handlers run
// one at a time on the server loop, so no field needs locking; that
// single-writer discipline must be kept if concurrent dispatch is ever
// introduced.
type Bridge struct {
	cfg    *config.Config
	logger *logging.Logger

	identity *identity.Identity
	contacts *contacts.Store
	tor      *network.TorManager
	cover    *network.CoverTraffic

	stop func()
}

// New constructs a bridge over the configured data directory, creating the
// directory if absent.
func New(cfg *config.Config, logger *logging.Logger) (*Bridge, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		return nil, err
	}
	return &Bridge{cfg: cfg, logger: logger}, nil
}

// BindShutdown installs the callback invoked by the shutdown method,
// normally the server's Shutdown.
func (b *Bridge) BindShutdown(stop func()) {
	b.stop = stop
}

// Close releases session resources.
func (b *Bridge) Close() error {
	if b.contacts != nil {
		return b.contacts.Close()
	}
	return nil
}

func (b *Bridge) keystore() *keystore.Store {
	return keystore.New(b.cfg.KeystorePath())
}

// contactStore opens the contact database on first use and memoizes the
// handle for the rest of the process lifetime.
func (b *Bridge) contactStore(ctx context.Context) (*contacts.Store, error) {
	if b.contacts != nil {
		return b.contacts, nil
	}
	store, err := contacts.Open(b.cfg.ContactsPath())
	if err != nil {
		return nil, err
	}
	if err := store.Init(ctx); err != nil {
		store.Close()
		return nil, err
	}
	b.contacts = store
	b.logger.Debugf("contact store opened at %s", store.Path())
	return store, nil
}
