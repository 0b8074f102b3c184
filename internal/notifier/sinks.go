package notifier

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/fatih/color"

	logx "routined/pkg/logx"
)

// ConsoleSink prints reminders as colored lines and logs them.
type ConsoleSink struct {
	mu  sync.Mutex
	w   io.Writer
	log logx.Logger
}

func NewConsoleSink(w io.Writer, log logx.Logger) *ConsoleSink {
	if w == nil {
		w = logx.Stdout()
	}
	return &ConsoleSink{w: w, log: log}
}

func (c *ConsoleSink) Name() string { return "console" }

func (c *ConsoleSink) Send(ctx context.Context, m Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	stamp := ""
	if !m.At.IsZero() {
		stamp = m.At.Format("15:04") + " "
	}
	c.mu.Lock()
	_, err := fmt.Fprintf(c.w, "%s%s\n", color.New(color.FgYellow, color.Bold).Sprint("⏰ "+stamp), m.Text)
	c.mu.Unlock()
	c.log.Info("reminder", logx.String("task", m.TaskID), logx.String("text", m.Text))
	return err
}
