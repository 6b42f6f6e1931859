package trap

import (
	"errors"

	"sudooom.trapdoors/internal/compendium"
)

// SystemPF2e pf2e 系统 ID
const SystemPF2e = "pf2e"

var ErrNoEffect = errors.New("TRAP_HAS_NO_EFFECT")

// Activation 一次陷阱效果
type Activation struct {
	Name        string `json:"name"`
	Roll        string `json:"roll"`
	Description string `json:"description,omitempty"`
	Public      bool   `json:"public"`
}

// Activator 按游戏系统选择陷阱效果
type Activator interface {
	Activate(tmpl compendium.Template) (Activation, error)
}

// NewActivator pf2e 使用第一个动作，其他系统使用名为 Effect 的物品
func NewActivator(system string) Activator {
	if system == SystemPF2e {
		return actionActivator{}
	}
	return effectItemActivator{}
}

type actionActivator struct{}

func (actionActivator) Activate(tmpl compendium.Template) (Activation, error) {
	if len(tmpl.Actions) == 0 {
		return Activation{}, ErrNoEffect
	}
	a := tmpl.Actions[0]
	return Activation{Name: a.Name, Roll: a.Roll, Public: true}, nil
}

type effectItemActivator struct{}

func (effectItemActivator) Activate(tmpl compendium.Template) (Activation, error) {
	item, ok := tmpl.ItemNamed(compendium.EffectItemName)
	if !ok {
		return Activation{}, ErrNoEffect
	}
	return Activation{
		Name:        item.Name,
		Roll:        item.Roll,
		Description: item.Description,
		Public:      true,
	}, nil
}
