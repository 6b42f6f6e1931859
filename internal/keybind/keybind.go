// Package keybind 会话内的修饰键状态
package keybind

import (
	"errors"
	"sync"
)

// Action 绑定的动作
type Action string

const (
	ActionPeek   Action = "peekDoor"
	ActionReveal Action = "revealSecretDoor"
	ActionDisarm Action = "disarmTrappedDoor"
)

var ErrUnknownAction = errors.New("UNKNOWN_ACTION")

// Binding 按键绑定
type Binding struct {
	Action     Action `json:"action"`
	Name       string `json:"name"`
	Hint       string `json:"hint"`
	Key        string `json:"key"`
	Restricted bool   `json:"restricted"` // 只对主持人生效
}

// Defaults 默认绑定
var Defaults = []Binding{
	{Action: ActionPeek, Name: "Peek Door", Hint: "Hold while clicking a door to peek it open.", Key: "ControlLeft"},
	{Action: ActionReveal, Name: "Reveal Secret Door", Hint: "Hold while clicking a secret door to reveal it.", Key: "AltLeft", Restricted: true},
	{Action: ActionDisarm, Name: "Disarm Trapped Door", Hint: "Hold while clicking a trapped door to toggle its trap.", Key: "ShiftLeft", Restricted: true},
}

// Modifiers 一次指针事件时的修饰键快照
type Modifiers struct {
	Peek   bool
	Reveal bool
	Disarm bool
}

// Any 是否按住了任意修饰键
func (m Modifiers) Any() bool {
	return m.Peek || m.Reveal || m.Disarm
}

// Registry 每个会话一个，所有状态初始为 false
type Registry struct {
	mu       sync.RWMutex
	gm       bool
	bindings map[Action]Binding
	held     map[Action]bool
}

// NewRegistry 创建按键注册表
func NewRegistry(gm bool) *Registry {
	r := &Registry{
		gm:       gm,
		bindings: make(map[Action]Binding, len(Defaults)),
		held:     make(map[Action]bool, len(Defaults)),
	}
	for _, b := range Defaults {
		r.bindings[b.Action] = b
	}
	return r
}

// Rebind 修改动作的按键
func (r *Registry) Rebind(action Action, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.bindings[action]
	if !ok {
		return ErrUnknownAction
	}
	b.Key = key
	r.bindings[action] = b
	r.held[action] = false
	return nil
}

// KeyDown 按下，返回是否被某个绑定处理
func (r *Registry) KeyDown(key string) bool {
	return r.set(key, true)
}

// KeyUp 抬起
func (r *Registry) KeyUp(key string) bool {
	return r.set(key, false)
}

func (r *Registry) set(key string, down bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	handled := false
	for action, b := range r.bindings {
		if b.Key != key {
			continue
		}
		if b.Restricted && !r.gm {
			continue
		}
		r.held[action] = down
		handled = true
	}
	return handled
}

// Reset 清空所有按键状态
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for action := range r.held {
		r.held[action] = false
	}
}

// Snapshot 当前修饰键状态
func (r *Registry) Snapshot() Modifiers {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return Modifiers{
		Peek:   r.held[ActionPeek],
		Reveal: r.held[ActionReveal],
		Disarm: r.held[ActionDisarm],
	}
}

// Bindings 当前绑定，按默认顺序
func (r *Registry) Bindings() []Binding {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Binding, 0, len(Defaults))
	for _, d := range Defaults {
		out = append(out, r.bindings[d.Action])
	}
	return out
}
