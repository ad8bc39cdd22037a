package settings

import (
	"fmt"

	"github.com/spf13/viper"
)

const (
	keyServiceURL    = "service_url"
	keyChannel       = "channel"
	keyUsername      = "username"
	keySyncThreshold = "sync_threshold"
	keyHistorySize   = "history_size"
	keyHistoryDB     = "history_db"
	keyPasswords     = "passwords"
)

type Settings struct {
	ServiceURL    string
	Channel       string
	Username      string
	SyncThreshold int64
	HistorySize   int
	HistoryDB     string
}

// Repository persists the user's settings and stored credentials.
type Repository interface {
	Load() Settings
	Save(Settings) error
	LoadPassword(user string) (string, bool)
	SetPassword(user, password string) error
	DeletePassword(user string) error
}

// ViperRepository stores settings in the viper config file shared with
// the CLI flags. Passwords live in the same file; proper keyring
// integration is the platform layer's concern.
type ViperRepository struct {
	v *viper.Viper
}

func NewViperRepository(v *viper.Viper) *ViperRepository {
	v.SetDefault(keyServiceURL, "https://cytu.be")
	v.SetDefault(keySyncThreshold, 2000)
	v.SetDefault(keyHistorySize, 1000)
	return &ViperRepository{v: v}
}

func (r *ViperRepository) Load() Settings {
	return Settings{
		ServiceURL:    r.v.GetString(keyServiceURL),
		Channel:       r.v.GetString(keyChannel),
		Username:      r.v.GetString(keyUsername),
		SyncThreshold: r.v.GetInt64(keySyncThreshold),
		HistorySize:   r.v.GetInt(keyHistorySize),
		HistoryDB:     r.v.GetString(keyHistoryDB),
	}
}

func (r *ViperRepository) Save(s Settings) error {
	r.v.Set(keyServiceURL, s.ServiceURL)
	r.v.Set(keyChannel, s.Channel)
	r.v.Set(keyUsername, s.Username)
	r.v.Set(keySyncThreshold, s.SyncThreshold)
	r.v.Set(keyHistorySize, s.HistorySize)
	r.v.Set(keyHistoryDB, s.HistoryDB)
	return r.write()
}

func (r *ViperRepository) LoadPassword(user string) (string, bool) {
	stored := r.v.GetStringMapString(keyPasswords)
	password, ok := stored[user]
	return password, ok && password != ""
}

func (r *ViperRepository) SetPassword(user, password string) error {
	stored := r.v.GetStringMapString(keyPasswords)
	if stored == nil {
		stored = map[string]string{}
	}
	stored[user] = password
	r.v.Set(keyPasswords, stored)
	return r.write()
}

func (r *ViperRepository) DeletePassword(user string) error {
	stored := r.v.GetStringMapString(keyPasswords)
	if _, ok := stored[user]; !ok {
		return nil
	}
	delete(stored, user)
	r.v.Set(keyPasswords, stored)
	return r.write()
}

func (r *ViperRepository) write() error {
	if err := r.v.WriteConfig(); err != nil {
		// First run: no config file yet.
		if err := r.v.SafeWriteConfig(); err != nil {
			return fmt.Errorf("write settings: %w", err)
		}
	}
	return nil
}

// Memory is an in-memory Repository for tests and one-off sessions.
type Memory struct {
	Settings  Settings
	Passwords map[string]string
}

func NewMemory(s Settings) *Memory {
	return &Memory{Settings: s, Passwords: map[string]string{}}
}

func (m *Memory) Load() Settings { return m.Settings }

func (m *Memory) Save(s Settings) error {
	m.Settings = s
	return nil
}

func (m *Memory) LoadPassword(user string) (string, bool) {
	password, ok := m.Passwords[user]
	return password, ok && password != ""
}

func (m *Memory) SetPassword(user, password string) error {
	m.Passwords[user] = password
	return nil
}

func (m *Memory) DeletePassword(user string) error {
	delete(m.Passwords, user)
	return nil
}
