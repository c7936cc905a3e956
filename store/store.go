// Package store persists the bot's metadata about platform objects: which
// channels are whitelisted for commands, which channels are opt-in and the
// roles gating them, and which roles are joinable.
//
// The platform remains the source of truth for whether any of those objects
// exist. The store records only intent and must tolerate ids that no longer
// resolve.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned by lookups of a key that has no row.
var ErrNotFound = errors.New("not found")

// ErrExists is returned by inserts of a key that already has a row.
var ErrExists = errors.New("already exists")

// WhitelistedChannel is a channel in which gated commands may be used.
type WhitelistedChannel struct {
	ChannelID string `gorm:"primaryKey;autoIncrement:false"`
}

// OptinChannel is a channel whose visibility is gated behind a role.
type OptinChannel struct {
	ChannelID string `gorm:"primaryKey;autoIncrement:false"`
	RoleID    string `gorm:"not null"`
	GuildID   string `gorm:"not null;index"`
}

// JoinableRole is a role users may assign to themselves.
type JoinableRole struct {
	RoleID string `gorm:"primaryKey;autoIncrement:false"`
}

// Store is a handle to the bot's database. A Store obtained from Tx is bound
// to that transaction.
type Store struct {
	db  *gorm.DB
	log *slog.Logger
}

// Open opens a store at an sqlite DSN. The schema is not created; use Migrate.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := gorm.Open(sqlite.Dialector{DriverName: "sqlite", DSN: dsn}, &gorm.Config{
		Logger: logger.Discard,
	})
	if err != nil {
		return nil, fmt.Errorf("couldn't open database: %w", err)
	}
	sqldb, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("couldn't get database handle: %w", err)
	}
	// SQLite allows one writer at a time.
	sqldb.SetMaxOpenConns(1)
	if err := db.WithContext(ctx).Exec("PRAGMA busy_timeout = 5000").Error; err != nil {
		sqldb.Close()
		return nil, fmt.Errorf("couldn't set busy timeout: %w", err)
	}
	s := &Store{
		db:  db,
		log: slog.Default().With(slog.String("component", "store")),
	}
	s.log.DebugContext(ctx, "opened store", slog.String("dsn", dsn))
	return s, nil
}

// Migrate creates or updates the schema.
func (s *Store) Migrate(ctx context.Context) error {
	err := s.db.WithContext(ctx).AutoMigrate(&WhitelistedChannel{}, &OptinChannel{}, &JoinableRole{})
	if err != nil {
		return fmt.Errorf("couldn't migrate schema: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	sqldb, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqldb.Close()
}

// Tx runs f in a transaction. If f returns an error, the transaction rolls
// back and Tx returns that error. The Store passed to f must not be retained.
func (s *Store) Tx(ctx context.Context, f func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return f(&Store{db: tx, log: s.log})
	})
}

// Whitelisted reports whether a channel is whitelisted.
func (s *Store) Whitelisted(ctx context.Context, channelID string) (bool, error) {
	return exists(ctx, s.db, &WhitelistedChannel{}, "channel_id = ?", channelID)
}

// Whitelist adds a channel to the whitelist.
func (s *Store) Whitelist(ctx context.Context, channelID string) error {
	return insert(ctx, s.db, &WhitelistedChannel{ChannelID: channelID})
}

// Unwhitelist removes a channel from the whitelist.
func (s *Store) Unwhitelist(ctx context.Context, channelID string) error {
	return remove(ctx, s.db, &WhitelistedChannel{}, "channel_id = ?", channelID)
}

// WhitelistedChannels lists all whitelisted channel ids.
func (s *Store) WhitelistedChannels(ctx context.Context) ([]string, error) {
	var r []string
	err := s.db.WithContext(ctx).Model(&WhitelistedChannel{}).Order("channel_id").Pluck("channel_id", &r).Error
	if err != nil {
		return nil, fmt.Errorf("couldn't list whitelisted channels: %w", err)
	}
	return r, nil
}

// Optin gets the opt-in row for a channel.
func (s *Store) Optin(ctx context.Context, channelID string) (OptinChannel, error) {
	var r OptinChannel
	err := s.db.WithContext(ctx).Where("channel_id = ?", channelID).Take(&r).Error
	switch {
	case err == nil:
		return r, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return OptinChannel{}, ErrNotFound
	default:
		return OptinChannel{}, fmt.Errorf("couldn't get opt-in channel %s: %w", channelID, err)
	}
}

// GuildOptins lists the opt-in rows of a guild.
func (s *Store) GuildOptins(ctx context.Context, guildID string) ([]OptinChannel, error) {
	var r []OptinChannel
	if err := s.db.WithContext(ctx).Where("guild_id = ?", guildID).Find(&r).Error; err != nil {
		return nil, fmt.Errorf("couldn't list opt-in channels for guild %s: %w", guildID, err)
	}
	return r, nil
}

// InsertOptin adds an opt-in row. If a row already exists for the channel,
// the result is ErrExists and the existing row is unchanged.
func (s *Store) InsertOptin(ctx context.Context, oc OptinChannel) error {
	return insert(ctx, s.db, &oc)
}

// DeleteOptin removes the opt-in row for a channel. Deleting a channel that
// has no row returns ErrNotFound.
func (s *Store) DeleteOptin(ctx context.Context, channelID string) error {
	return remove(ctx, s.db, &OptinChannel{}, "channel_id = ?", channelID)
}

// Joinable reports whether a role is joinable.
func (s *Store) Joinable(ctx context.Context, roleID string) (bool, error) {
	return exists(ctx, s.db, &JoinableRole{}, "role_id = ?", roleID)
}

// JoinableRoles lists all joinable role ids.
func (s *Store) JoinableRoles(ctx context.Context) ([]string, error) {
	var r []string
	if err := s.db.WithContext(ctx).Model(&JoinableRole{}).Order("role_id").Pluck("role_id", &r).Error; err != nil {
		return nil, fmt.Errorf("couldn't list joinable roles: %w", err)
	}
	return r, nil
}

// InsertJoinable marks a role joinable. If it already is, the result is
// ErrExists.
func (s *Store) InsertJoinable(ctx context.Context, roleID string) error {
	return insert(ctx, s.db, &JoinableRole{RoleID: roleID})
}

// DeleteJoinable unmarks a joinable role. If the role was not joinable, the
// result is ErrNotFound.
func (s *Store) DeleteJoinable(ctx context.Context, roleID string) error {
	return remove(ctx, s.db, &JoinableRole{}, "role_id = ?", roleID)
}

func exists(ctx context.Context, db *gorm.DB, model any, query string, arg string) (bool, error) {
	var n int64
	if err := db.WithContext(ctx).Model(model).Where(query, arg).Count(&n).Error; err != nil {
		return false, fmt.Errorf("couldn't check %T %s: %w", model, arg, err)
	}
	return n != 0, nil
}

// insert adds a row, resolving primary key conflicts inside the database
// rather than with a separate check.
func insert(ctx context.Context, db *gorm.DB, row any) error {
	r := db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(row)
	if r.Error != nil {
		return fmt.Errorf("couldn't insert %T: %w", row, r.Error)
	}
	if r.RowsAffected == 0 {
		return ErrExists
	}
	return nil
}

func remove(ctx context.Context, db *gorm.DB, model any, query string, arg string) error {
	r := db.WithContext(ctx).Where(query, arg).Delete(model)
	if r.Error != nil {
		return fmt.Errorf("couldn't delete %T %s: %w", model, arg, r.Error)
	}
	if r.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
