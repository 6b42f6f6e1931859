package session

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"strings"

	"sudooom.trapdoors/internal/policy"
)

// Reply 每条输入事件的处理结果
type Reply struct {
	Event   Event  `json:"event"`
	Handled bool   `json:"handled"`
	Stage   string `json:"stage,omitempty"`
	Paused  bool   `json:"paused"`
	Error   string `json:"error,omitempty"`
}

// Replay 逐行读取 JSON 事件并依次处理，结果逐行写出；读到 EOF 或 ctx 结束时返回
func (s *Session) Replay(ctx context.Context, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	enc := json.NewEncoder(w)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		var ev Event
		var reply Reply
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			reply.Error = err.Error()
		} else {
			var out policy.Outcome
			out, err = s.Handle(ctx, ev)
			reply.Event = ev
			reply.Handled = out.Handled
			reply.Stage = out.Stage
			if err != nil {
				reply.Error = err.Error()
			}
		}
		reply.Paused = s.pauser.Paused()

		if err := enc.Encode(reply); err != nil {
			return err
		}
	}
	return scanner.Err()
}
