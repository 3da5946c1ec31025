// Package console drives a widget from a line-oriented terminal session.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/stravella/chatwidget/internal/surface"
	"github.com/stravella/chatwidget/internal/widget"
)

const help = `commands:
  /open        open the chat panel
  /close       close the chat panel
  /actions     list quick actions
  /action N    prefill the input with quick action N
  /send        send the current input
  /thread      show the thread id
  /quit        leave
anything else is typed into the input and sent`

type Console struct {
	w   *widget.Widget
	in  io.Reader
	out io.Writer

	printed int
}

func New(w *widget.Widget, in io.Reader, out io.Writer) *Console {
	return &Console{w: w, in: in, out: out, printed: len(w.Transcript())}
}

// Run reads commands until /quit, end of input or ctx is done. Cancelling
// ctx returns at once, even while waiting for a line.
func (c *Console) Run(ctx context.Context) error {
	fmt.Fprintf(c.out, "%s (type /help for commands)\n", c.w.Config().BusinessName)

	lines, readErr := c.readLines(ctx)
	for {
		fmt.Fprint(c.out, "> ")
		var line string
		select {
		case <-ctx.Done():
			fmt.Fprintln(c.out)
			return nil
		case l, ok := <-lines:
			if !ok {
				fmt.Fprintln(c.out)
				return errors.Wrap(<-readErr, "reading input")
			}
			line = l
		}

		quit, err := c.handle(ctx, line)
		if err != nil {
			fmt.Fprintf(c.out, "! %v\n", err)
		}
		c.flush()
		if quit {
			return nil
		}
	}
}

// readLines scans c.in on its own goroutine. lines is closed at end of
// input, after the scanner's error is sent on errc. The goroutine may stay
// blocked in a read after ctx is done.
func (c *Console) readLines(ctx context.Context) (lines <-chan string, errc <-chan error) {
	out := make(chan string)
	errs := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(c.in)
		for scanner.Scan() {
			select {
			case out <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		errs <- scanner.Err()
		close(out)
	}()
	return out, errs
}

func (c *Console) handle(ctx context.Context, line string) (quit bool, err error) {
	cmd, arg, _ := strings.Cut(strings.TrimSpace(line), " ")
	switch cmd {
	case "/quit", "/exit":
		return true, nil
	case "/help":
		fmt.Fprintln(c.out, help)
	case "/open":
		c.w.Open()
	case "/close":
		c.w.Close()
	case "/thread":
		fmt.Fprintln(c.out, c.w.ThreadID())
	case "/actions":
		if !c.w.Snapshot().QuickActionsVisible {
			fmt.Fprintln(c.out, "(quick actions are hidden)")
			return false, nil
		}
		for i, label := range c.w.QuickActions() {
			fmt.Fprintf(c.out, "  %d. %s\n", i+1, label)
		}
	case "/action":
		n, convErr := strconv.Atoi(strings.TrimSpace(arg))
		if convErr != nil {
			return false, errors.Errorf("usage: /action N")
		}
		if err := c.w.SelectQuickAction(n - 1); err != nil {
			return false, err
		}
		fmt.Fprintf(c.out, "input: %s\n", c.w.Snapshot().Input)
	case "/send":
		return false, c.submit(ctx)
	default:
		if strings.HasPrefix(cmd, "/") {
			return false, errors.Errorf("unknown command %s", cmd)
		}
		c.w.SetInput(line)
		return false, c.submit(ctx)
	}
	return false, nil
}

func (c *Console) submit(ctx context.Context) error {
	if !c.w.PanelVisible() {
		fmt.Fprintln(c.out, "(the panel is closed, /open it first)")
		return nil
	}
	return c.w.Submit(ctx)
}

// flush prints transcript entries added since the last call.
func (c *Console) flush() {
	msgs := c.w.Transcript()
	for _, m := range msgs[c.printed:] {
		who := "bot"
		if m.Sender == surface.SenderUser {
			who = "you"
		}
		fmt.Fprintf(c.out, "%s: %s\n", who, m.Text)
	}
	c.printed = len(msgs)
}
