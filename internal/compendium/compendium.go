// Package compendium 模块自带的模板包（陷阱角色与钥匙物品）
package compendium

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	Module    = "trapped-doors"
	PackTraps = "td-traps"
	PackItems = "td-items"

	// KeyItemName 钥匙模板名
	KeyItemName = "Key"
	// EffectItemName 非 pf2e 系统中陷阱效果物品的名字
	EffectItemName = "Effect"
)

var (
	ErrPackNotFound  = errors.New("PACK_NOT_FOUND")
	ErrEntryNotFound = errors.New("ENTRY_NOT_FOUND")
)

// Action pf2e 角色的动作
type Action struct {
	Name string `yaml:"name" json:"name"`
	Roll string `yaml:"roll" json:"roll"`
}

// Item 模板内嵌物品
type Item struct {
	Name        string `yaml:"name" json:"name"`
	Roll        string `yaml:"roll,omitempty" json:"roll,omitempty"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

// Template 模板条目
type Template struct {
	ID          string   `yaml:"id" json:"id"`
	Name        string   `yaml:"name" json:"name"`
	Type        string   `yaml:"type" json:"type"`
	Description string   `yaml:"description,omitempty" json:"description,omitempty"`
	Actions     []Action `yaml:"actions,omitempty" json:"actions,omitempty"`
	Items       []Item   `yaml:"items,omitempty" json:"items,omitempty"`
}

// ItemNamed 按名字查找内嵌物品
func (t Template) ItemNamed(name string) (Item, bool) {
	for _, it := range t.Items {
		if it.Name == name {
			return it, true
		}
	}
	return Item{}, false
}

// Pack 模板包
type Pack struct {
	Label   string     `yaml:"label"`
	Entries []Template `yaml:"entries"`
}

type file struct {
	Packs map[string]Pack `yaml:"packs"`
}

// Catalog 已加载的模板包
type Catalog struct {
	packs map[string]Pack
	index map[string]map[string]int
}

// SourceRef 宿主格式的模板引用，如 Compendium.trapped-doors.td-traps.spikes
func SourceRef(pack, id string) string {
	return fmt.Sprintf("Compendium.%s.%s.%s", Module, pack, id)
}

// Load 从 YAML 文件加载
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse 解析 YAML，条目 ID 在包内必须唯一
func Parse(data []byte) (*Catalog, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, err
	}

	c := &Catalog{
		packs: make(map[string]Pack, len(f.Packs)),
		index: make(map[string]map[string]int, len(f.Packs)),
	}
	for name, pack := range f.Packs {
		idx := make(map[string]int, len(pack.Entries))
		for i, entry := range pack.Entries {
			if entry.ID == "" {
				return nil, fmt.Errorf("pack %s: entry %d has no id", name, i)
			}
			if _, dup := idx[entry.ID]; dup {
				return nil, fmt.Errorf("pack %s: duplicate id %s", name, entry.ID)
			}
			idx[entry.ID] = i
		}
		c.packs[name] = pack
		c.index[name] = idx
	}
	return c, nil
}

// Get 按 ID 获取条目
func (c *Catalog) Get(pack, id string) (Template, error) {
	idx, ok := c.index[pack]
	if !ok {
		return Template{}, ErrPackNotFound
	}
	i, ok := idx[id]
	if !ok {
		return Template{}, ErrEntryNotFound
	}
	return c.packs[pack].Entries[i], nil
}

// FindByName 按名字获取第一个条目
func (c *Catalog) FindByName(pack, name string) (Template, error) {
	p, ok := c.packs[pack]
	if !ok {
		return Template{}, ErrPackNotFound
	}
	for _, entry := range p.Entries {
		if entry.Name == name {
			return entry, nil
		}
	}
	return Template{}, ErrEntryNotFound
}

// Entries 包内全部条目，保持文件中的顺序
func (c *Catalog) Entries(pack string) []Template {
	p, ok := c.packs[pack]
	if !ok {
		return nil
	}
	out := make([]Template, len(p.Entries))
	copy(out, p.Entries)
	return out
}
