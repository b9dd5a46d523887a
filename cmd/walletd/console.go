package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/charmbracelet/lipgloss"
	"github.com/logrusorgru/aurora"
	"golang.org/x/term"

	xerrors "PasskeyWallet/internal/errors"
	"PasskeyWallet/internal/feedback"
)

var borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))

// console 把反馈通道渲染到终端：执行期间显示进度，结束后输出最终结果。
type console struct {
	out io.Writer
	au  aurora.Aurora
	tty bool
}

func newConsole(out io.Writer) *console {
	tty := false
	if f, ok := out.(*os.File); ok {
		tty = term.IsTerminal(int(f.Fd()))
	}
	return &console{out: out, au: aurora.NewAurora(tty), tty: tty}
}

// track 在 fn 执行期间订阅反馈通道，把最新的状态显示在 spinner 后面。
// 非终端输出时逐行打印反馈。
func (c *console) track(fb *feedback.Channel, fn func() error) error {
	if !c.tty {
		cancel := fb.Subscribe(func(m feedback.Message) {
			fmt.Fprintln(c.out, c.au.Faint(m.Text))
		})
		defer cancel()
		return fn()
	}

	s := spinner.New(spinner.CharSets[14], 80*time.Millisecond, spinner.WithWriter(c.out))
	s.Suffix = " working..."
	cancel := fb.Subscribe(func(m feedback.Message) {
		s.Lock()
		s.Suffix = " " + m.Text
		s.Unlock()
	})
	s.Start()
	err := fn()
	cancel()
	s.Stop()
	return err
}

func (c *console) success(format string, args ...any) {
	fmt.Fprintln(c.out, c.au.Green(fmt.Sprintf(format, args...)))
}

func (c *console) info(format string, args ...any) {
	fmt.Fprintf(c.out, format+"\n", args...)
}

func (c *console) failure(err error) {
	line := xerrors.UserMessage(err)
	if xerrors.SeverityOf(err) == xerrors.SeverityCritical {
		fmt.Fprintln(c.out, c.au.Red(line).Bold())
		return
	}
	fmt.Fprintln(c.out, c.au.Yellow(line))
}

// table 以两列表格输出键值对。
func (c *console) table(header [2]string, rows [][2]string) {
	width := len(header[0])
	for _, r := range rows {
		if len(r[0]) > width {
			width = len(r[0])
		}
	}
	fmt.Fprintln(c.out, c.au.Bold(fmt.Sprintf("%-*s  %s", width, header[0], header[1])))
	fmt.Fprintln(c.out, borderStyle.Render(strings.Repeat("-", width)+"  "+strings.Repeat("-", len(header[1]))))
	for _, r := range rows {
		fmt.Fprintf(c.out, "%-*s  %s\n", width, r[0], r[1])
	}
}
