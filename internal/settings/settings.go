// Package settings 世界级设置：注册的类型化选项，按字符串键读写
package settings

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/spf13/cast"
	"github.com/spf13/viper"

	"sudooom.trapdoors/internal/geometry"
)

// 已注册的设置键
const (
	KeyPauseOnTrap   = "pauseOnTrap"
	KeyOpenOnTrap    = "openOnTrap"
	KeyPeekDegrees   = "peekDegrees"
	KeyHingeSide     = "hingeSide"
	KeyOpenDirection = "openDirection"
)

var (
	ErrUnknownSetting = errors.New("UNKNOWN_SETTING")
	ErrInvalidValue   = errors.New("INVALID_SETTING_VALUE")
)

// Kind 设置值类型
type Kind string

const (
	KindBool   Kind = "boolean"
	KindNumber Kind = "number"
	KindEnum   Kind = "enum"
)

// Option 设置项定义
type Option struct {
	Key     string   `json:"key"`
	Name    string   `json:"name"`
	Hint    string   `json:"hint"`
	Kind    Kind     `json:"type"`
	Default any      `json:"default"`
	Choices []string `json:"choices,omitempty"`
	Min     float64  `json:"min,omitempty"` // 数值下界（不含）
	Max     float64  `json:"max,omitempty"` // 数值上界（含）
}

// Options 模块注册的全部设置项
var Options = []Option{
	{Key: KeyPauseOnTrap, Name: "Pause on Trap", Hint: "Pause the game when a trap is tripped.", Kind: KindBool, Default: true},
	{Key: KeyOpenOnTrap, Name: "Open on Trap", Hint: "Open the door when a trap is tripped.", Kind: KindBool, Default: true},
	{Key: KeyPeekDegrees, Name: "Peek Degrees", Hint: "How far a door swings when peeked.", Kind: KindNumber, Default: 20.0,
		Min: 0, Max: 360},
	{Key: KeyHingeSide, Name: "Hinge Side", Hint: "Default hinge side of doors.", Kind: KindEnum, Default: string(geometry.Clockwise),
		Choices: []string{string(geometry.Clockwise), string(geometry.CounterClockwise)}},
	{Key: KeyOpenDirection, Name: "Open Direction", Hint: "Default direction doors swing open.", Kind: KindEnum, Default: string(geometry.Clockwise),
		Choices: []string{string(geometry.Clockwise), string(geometry.CounterClockwise)}},
}

// Store 设置存储
type Store struct {
	mu      sync.RWMutex
	v       *viper.Viper
	options map[string]Option
	logger  *slog.Logger
}

// New 创建设置存储，initial 中的值覆盖默认值（键不区分大小写），非法值被忽略
func New(initial map[string]any) *Store {
	s := &Store{
		v:       viper.New(),
		options: make(map[string]Option, len(Options)),
		logger:  slog.Default().With("component", "Settings"),
	}
	for _, opt := range Options {
		s.options[strings.ToLower(opt.Key)] = opt
		s.v.SetDefault(opt.Key, opt.Default)
	}
	for key, value := range initial {
		if err := s.Set(key, value); err != nil {
			s.logger.Warn("Ignoring invalid setting", "key", key, "value", value, "error", err)
		}
	}
	return s
}

// Get 读取设置值
func (s *Store) Get(key string) (any, error) {
	opt, ok := s.options[strings.ToLower(key)]
	if !ok {
		return nil, ErrUnknownSetting
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	switch opt.Kind {
	case KindBool:
		return s.v.GetBool(opt.Key), nil
	case KindNumber:
		return s.v.GetFloat64(opt.Key), nil
	default:
		return s.v.GetString(opt.Key), nil
	}
}

// Set 写入设置值，校验类型与可选值
func (s *Store) Set(key string, value any) error {
	opt, ok := s.options[strings.ToLower(key)]
	if !ok {
		return ErrUnknownSetting
	}

	normalized, err := normalize(opt, value)
	if err != nil {
		return fmt.Errorf("%s: %w", opt.Key, err)
	}

	s.mu.Lock()
	s.v.Set(opt.Key, normalized)
	s.mu.Unlock()

	s.logger.Info("Setting updated", "key", opt.Key, "value", normalized)
	return nil
}

func normalize(opt Option, value any) (any, error) {
	switch opt.Kind {
	case KindBool:
		b, err := cast.ToBoolE(value)
		if err != nil {
			return nil, ErrInvalidValue
		}
		return b, nil
	case KindNumber:
		f, err := cast.ToFloat64E(value)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, ErrInvalidValue
		}
		if f <= opt.Min || f > opt.Max {
			return nil, ErrInvalidValue
		}
		return f, nil
	default:
		str, err := cast.ToStringE(value)
		if err != nil {
			return nil, ErrInvalidValue
		}
		for _, choice := range opt.Choices {
			if str == choice {
				return str, nil
			}
		}
		return nil, ErrInvalidValue
	}
}

// All 全部设置的当前值，按键排序
func (s *Store) All() map[string]any {
	out := make(map[string]any, len(s.options))
	for _, opt := range s.options {
		v, _ := s.Get(opt.Key)
		out[opt.Key] = v
	}
	return out
}

// Keys 已注册的键，排序
func (s *Store) Keys() []string {
	keys := make([]string, 0, len(s.options))
	for _, opt := range s.options {
		keys = append(keys, opt.Key)
	}
	sort.Strings(keys)
	return keys
}

// PauseOnTrap 陷阱触发时暂停
func (s *Store) PauseOnTrap() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.v.GetBool(KeyPauseOnTrap)
}

// OpenOnTrap 陷阱触发时开门
func (s *Store) OpenOnTrap() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.v.GetBool(KeyOpenOnTrap)
}

// PeekDegrees 偷看角度
func (s *Store) PeekDegrees() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.v.GetFloat64(KeyPeekDegrees)
}

// HingeSide 全局铰链方向
func (s *Store) HingeSide() geometry.Rotation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return geometry.Rotation(s.v.GetString(KeyHingeSide))
}

// OpenDirection 全局开门方向
func (s *Store) OpenDirection() geometry.Rotation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return geometry.Rotation(s.v.GetString(KeyOpenDirection))
}
