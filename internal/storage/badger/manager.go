package badger

import (
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/vigilo/internal/common"
	"github.com/ternarybob/vigilo/internal/interfaces"
)

// Manager implements the StorageManager interface for Badger
type Manager struct {
	db       *BadgerDB
	target   interfaces.TargetStorage
	check    interfaces.CheckStorage
	downtime interfaces.DowntimeStorage
	debug    interfaces.DebugStorage
	logger   arbor.ILogger
}

// NewManager creates a new Badger storage manager
func NewManager(logger arbor.ILogger, config *common.BadgerConfig) (interfaces.StorageManager, error) {
	db, err := NewBadgerDB(logger, config)
	if err != nil {
		return nil, err
	}

	manager := &Manager{
		db:       db,
		target:   NewTargetStorage(db, logger),
		check:    NewCheckStorage(db, logger),
		downtime: NewDowntimeStorage(db, logger),
		debug:    NewDebugStorage(db, logger),
		logger:   logger,
	}

	logger.Info().Msg("Badger storage manager initialized")

	return manager, nil
}

// TargetStorage returns the Target storage interface
func (m *Manager) TargetStorage() interfaces.TargetStorage {
	return m.target
}

// CheckStorage returns the Check storage interface
func (m *Manager) CheckStorage() interfaces.CheckStorage {
	return m.check
}

// DowntimeStorage returns the Downtime storage interface
func (m *Manager) DowntimeStorage() interfaces.DowntimeStorage {
	return m.downtime
}

// DebugStorage returns the Debug storage interface
func (m *Manager) DebugStorage() interfaces.DebugStorage {
	return m.debug
}

// Close closes the database connection
func (m *Manager) Close() error {
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}
