package router

import "sync/atomic"

// Authority 本会话是否持有权威，租约变化时更新
type Authority struct {
	v atomic.Bool
}

// NewAuthority 创建权威标记
func NewAuthority(initial bool) *Authority {
	a := &Authority{}
	a.v.Store(initial)
	return a
}

// Set 更新
func (a *Authority) Set(v bool) {
	a.v.Store(v)
}

// IsAuthoritative 是否权威
func (a *Authority) IsAuthoritative() bool {
	return a.v.Load()
}
