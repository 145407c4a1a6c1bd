// Package console 命令行输出与交互
//
// 所有进度信息、警告、错误都通过 Console 输出，便于测试时替换 writer/reader。
package console

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/davecgh/go-spew/spew"
	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"
	"github.com/pmezard/go-difflib/difflib"
)

var (
	red    = color.New(color.FgRed).SprintFunc()
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
	faint  = color.New(color.Faint).SprintFunc()
)

// Console 输出目标 + 交互输入
type Console struct {
	mu      sync.Mutex
	out     io.Writer
	in      *bufio.Reader
	verbose bool
}

// New 创建 Console，in 为 nil 时所有确认都视为 "否"
func New(out io.Writer, in io.Reader) *Console {
	c := &Console{out: out}
	if in != nil {
		c.in = bufio.NewReader(in)
	}
	return c
}

// Default 使用标准输出和标准输入
func Default() *Console {
	return New(os.Stdout, os.Stdin)
}

// Discard 丢弃所有输出，测试用
func Discard() *Console {
	return New(io.Discard, nil)
}

func (c *Console) SetVerbose(v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.verbose = v
}

func (c *Console) Verbose() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.verbose
}

// Writer 输出目标，供 cobra 等输出帮助信息
func (c *Console) Writer() io.Writer {
	return c.out
}

func (c *Console) printf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = fmt.Fprintf(c.out, format, args...)
}

// Info 普通进度信息
func (c *Console) Info(format string, args ...any) {
	c.printf(format+"\n", args...)
}

// Debug 仅在 -v 时输出
func (c *Console) Debug(format string, args ...any) {
	if !c.Verbose() {
		return
	}
	c.printf("%s\n", faint(fmt.Sprintf(format, args...)))
}

func (c *Console) Warn(format string, args ...any) {
	c.printf("%s %s\n", yellow("警告:"), fmt.Sprintf(format, args...))
}

func (c *Console) Error(format string, args ...any) {
	c.printf("%s %s\n", red("错误:"), fmt.Sprintf(format, args...))
}

func (c *Console) Success(format string, args ...any) {
	c.printf("%s\n", green(fmt.Sprintf(format, args...)))
}

// Highlight 返回青色文本，用于在一行中突出模块名、路径等
func Highlight(s string) string {
	return cyan(s)
}

// Confirm 询问 yes/no，默认 "否"
// 只有输入 y / yes（不区分大小写）才返回 true
func (c *Console) Confirm(question string) bool {
	c.printf("%s %s [y/N]: ", yellow("?"), question)

	c.mu.Lock()
	in := c.in
	c.mu.Unlock()
	if in == nil {
		c.printf("\n")
		return false
	}

	line, err := in.ReadString('\n')
	if err != nil && line == "" {
		c.printf("\n")
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}

// Diff 输出 old -> new 的 unified diff，内容相同时不输出
func (c *Console) Diff(name string, oldContent, newContent []byte) error {
	text, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(oldContent)),
		B:        difflib.SplitLines(string(newContent)),
		FromFile: name,
		ToFile:   name + " (生成)",
		Context:  3,
	})
	if err != nil {
		return fmt.Errorf("生成 diff 失败: %w", err)
	}
	if text == "" {
		return nil
	}

	var buf strings.Builder
	for _, line := range strings.SplitAfter(text, "\n") {
		switch {
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
			buf.WriteString(line)
		case strings.HasPrefix(line, "+"):
			buf.WriteString(green(line))
		case strings.HasPrefix(line, "-"):
			buf.WriteString(red(line))
		case strings.HasPrefix(line, "@@"):
			buf.WriteString(cyan(line))
		default:
			buf.WriteString(line)
		}
	}
	c.printf("%s", buf.String())
	return nil
}

// Dump 在 -v 时输出任意值的结构
func (c *Console) Dump(label string, v any) {
	if !c.Verbose() {
		return
	}
	c.printf("%s\n%s", faint(label), spew.Sdump(v))
}

// Table 按显示宽度对齐输出表格，第一行为表头
// 模块标题经常是中文，用 runewidth 计算宽度
func (c *Console) Table(rows [][]string) {
	if len(rows) == 0 {
		return
	}

	var widths []int
	for _, row := range rows {
		for i, cell := range row {
			if i >= len(widths) {
				widths = append(widths, 0)
			}
			widths[i] = max(widths[i], runewidth.StringWidth(cell))
		}
	}

	var buf strings.Builder
	for r, row := range rows {
		for i, cell := range row {
			if i == len(row)-1 {
				buf.WriteString(cell)
			} else {
				buf.WriteString(runewidth.FillRight(cell, widths[i]))
				buf.WriteString("  ")
			}
		}
		buf.WriteString("\n")
		if r == 0 {
			total := 0
			for _, w := range widths {
				total += w + 2
			}
			buf.WriteString(strings.Repeat("-", max(total-2, 0)))
			buf.WriteString("\n")
		}
	}
	c.printf("%s", buf.String())
}
