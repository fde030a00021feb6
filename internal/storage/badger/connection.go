package badger

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/vigilo/internal/common"
	"github.com/timshannon/badgerhold/v4"
)

// sequenceBandwidth is how many ids each badger sequence leases at once.
const sequenceBandwidth = 64

// BadgerDB manages the Badger database connection
type BadgerDB struct {
	store  *badgerhold.Store
	logger arbor.ILogger
	config *common.BadgerConfig

	seqMu sync.Mutex
	seqs  map[string]*badgerdb.Sequence
}

// NewBadgerDB creates a new Badger database connection
func NewBadgerDB(logger arbor.ILogger, config *common.BadgerConfig) (*BadgerDB, error) {
	// If reset_on_startup is enabled, delete the existing database
	if config.ResetOnStartup {
		if _, err := os.Stat(config.Path); err == nil {
			logger.Debug().Str("path", config.Path).Msg("Deleting existing database (reset_on_startup=true)")
			if err := os.RemoveAll(config.Path); err != nil {
				logger.Warn().Err(err).Str("path", config.Path).Msg("Failed to delete database directory")
			}
		}
	}

	// Ensure the directory exists
	dir := filepath.Dir(config.Path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	logger.Debug().Str("path", config.Path).Msg("Opening Badger database connection")

	options := badgerhold.DefaultOptions
	options.Dir = config.Path
	options.ValueDir = config.Path
	options.Logger = nil // Disable default badger logger to use arbor

	store, err := badgerhold.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}

	logger.Debug().Str("path", config.Path).Msg("Badger database initialized")

	return &BadgerDB{
		store:  store,
		logger: logger,
		config: config,
		seqs:   make(map[string]*badgerdb.Sequence),
	}, nil
}

// Store returns the underlying badgerhold store
func (b *BadgerDB) Store() *badgerhold.Store {
	return b.store
}

// NextID returns the next id from the named sequence. Ids start at 1 so
// the zero value always means "unset".
func (b *BadgerDB) NextID(name string) (uint64, error) {
	b.seqMu.Lock()
	seq, ok := b.seqs[name]
	if !ok {
		var err error
		seq, err = b.store.Badger().GetSequence([]byte("_seq_"+name), sequenceBandwidth)
		if err != nil {
			b.seqMu.Unlock()
			return 0, fmt.Errorf("failed to open sequence %s: %w", name, err)
		}
		b.seqs[name] = seq
	}
	b.seqMu.Unlock()

	for {
		id, err := seq.Next()
		if err != nil {
			return 0, fmt.Errorf("failed to advance sequence %s: %w", name, err)
		}
		if id > 0 {
			return id, nil
		}
	}
}

// Close releases id sequences and closes the database connection
func (b *BadgerDB) Close() error {
	b.seqMu.Lock()
	for name, seq := range b.seqs {
		if err := seq.Release(); err != nil {
			b.logger.Warn().Err(err).Str("sequence", name).Msg("Failed to release id sequence")
		}
	}
	b.seqs = make(map[string]*badgerdb.Sequence)
	b.seqMu.Unlock()

	if b.store != nil {
		return b.store.Close()
	}
	return nil
}
