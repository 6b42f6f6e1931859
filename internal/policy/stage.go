package policy

import (
	"context"

	"sudooom.trapdoors/internal/model"
)

// 阶段名称
const (
	StageReveal = "reveal"
	StageDisarm = "disarm"
	StageTrip   = "trip"
	StagePeek   = "peek"
	StagePause  = "pause"
	StageLock   = "lock"
)

// Stage 优先级链中的一个阶段：前置条件 + 效果
type Stage struct {
	Name    string
	Applies func(ctx context.Context, in *Interaction, door *model.Door) (bool, error)
	Run     func(ctx context.Context, in *Interaction, door *model.Door) error
}

// Outcome 评估结果；Handled 为 false 时交给宿主默认行为
type Outcome struct {
	Handled bool
	Stage   string
}

// Names 阶段名称（按执行顺序）
func Names(stages []Stage) []string {
	names := make([]string, len(stages))
	for i, s := range stages {
		names[i] = s.Name
	}
	return names
}
