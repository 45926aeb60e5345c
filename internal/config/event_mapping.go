package config

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// MappingRule maps one exact partner event type onto account status values.
type MappingRule struct {
	Event              string `mapstructure:"event"`
	AccountStatus      string `mapstructure:"account_status"`
	VerificationStatus string `mapstructure:"verification_status"`
}

type EventMappingConfig struct {
	Rules []MappingRule `mapstructure:"rules"`
}

type EventMappingHolder struct {
	current atomic.Value // holds EventMappingConfig
}

// NewEventMappingHolder loads operator-supplied mapping rules from path and
// reloads them on change. An empty path yields a holder with no rules.
func NewEventMappingHolder(path string, log *zap.Logger) (*EventMappingHolder, error) {
	if log == nil {
		log = zap.NewNop()
	}
	holder := &EventMappingHolder{}
	holder.current.Store(EventMappingConfig{})

	path = strings.TrimSpace(path)
	if path == "" {
		return holder, nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read event mapping %s: %w", path, err)
	}

	cfg, err := decodeEventMapping(v)
	if err != nil {
		return nil, err
	}
	holder.current.Store(cfg)

	v.OnConfigChange(func(e fsnotify.Event) {
		updated, err := decodeEventMapping(v)
		if err != nil {
			log.Warn("config.event_mapping.reload_ignored", zap.String("file", e.Name), zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("config.event_mapping.reloaded", zap.String("file", e.Name), zap.Int("rules", len(updated.Rules)))
	})
	v.WatchConfig()

	return holder, nil
}

// ProvideEventMapping wires the holder from application config.
func ProvideEventMapping(cfg Config, log *zap.Logger) (*EventMappingHolder, error) {
	return NewEventMappingHolder(cfg.EventMappingFile, log)
}

func (h *EventMappingHolder) Get() EventMappingConfig {
	if h == nil {
		return EventMappingConfig{}
	}
	cfg, _ := h.current.Load().(EventMappingConfig)
	return cfg
}

func decodeEventMapping(v *viper.Viper) (EventMappingConfig, error) {
	var cfg EventMappingConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return EventMappingConfig{}, err
	}
	if err := validateEventMapping(cfg); err != nil {
		return EventMappingConfig{}, err
	}
	return cfg, nil
}

func validateEventMapping(cfg EventMappingConfig) error {
	seen := make(map[string]struct{}, len(cfg.Rules))
	for i, rule := range cfg.Rules {
		event := strings.TrimSpace(rule.Event)
		if event == "" {
			return fmt.Errorf("rules[%d].event cannot be empty", i)
		}
		if strings.TrimSpace(rule.AccountStatus) == "" && strings.TrimSpace(rule.VerificationStatus) == "" {
			return fmt.Errorf("rules[%d] sets no status", i)
		}
		if _, ok := seen[event]; ok {
			return errors.New("duplicate rule for event " + event)
		}
		seen[event] = struct{}{}
	}
	return nil
}
