// Package config adapts Viper to the plugin.Config interface and builds
// the process logger from the logging.* keys.
package config

import (
	"time"

	"github.com/HollowOak/sitewatch/pkg/plugin"
	"github.com/spf13/viper"
)

// Store is a read-only view over a Viper tree. The host hands each plugin
// a Store scoped to its plugins.<name> subtree.
type Store struct {
	v *viper.Viper
}

var _ plugin.Config = (*Store)(nil)

// New wraps v. A nil v yields an empty Store, so plugins always receive a
// usable Config even when their subtree is absent from the file.
func New(v *viper.Viper) *Store {
	if v == nil {
		v = viper.New()
	}
	return &Store{v: v}
}

func (s *Store) Unmarshal(target any) error           { return s.v.Unmarshal(target) }
func (s *Store) Get(key string) any                   { return s.v.Get(key) }
func (s *Store) GetString(key string) string          { return s.v.GetString(key) }
func (s *Store) GetInt(key string) int                { return s.v.GetInt(key) }
func (s *Store) GetBool(key string) bool              { return s.v.GetBool(key) }
func (s *Store) GetDuration(key string) time.Duration { return s.v.GetDuration(key) }
func (s *Store) IsSet(key string) bool                { return s.v.IsSet(key) }

// Sub returns the subtree rooted at key, empty when the key is missing.
func (s *Store) Sub(key string) plugin.Config {
	return New(s.v.Sub(key))
}
