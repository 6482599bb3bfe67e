package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"jarvis/confirm"
)

// lineReader reads lines on its own goroutine so callers can stop waiting
// without losing input. A line nobody was waiting for goes to the next
// reader.
type lineReader struct {
	lines chan string
	err   error
}

func newLineReader(r io.Reader) *lineReader {
	l := &lineReader{lines: make(chan string)}
	go func() {
		br := bufio.NewReader(r)
		for {
			text, err := br.ReadString('\n')
			if text != "" {
				l.lines <- text
			}
			if err != nil {
				l.err = err
				close(l.lines)
				return
			}
		}
	}()
	return l
}

// ReadLine returns the next line, or the read error once input is
// exhausted.
func (l *lineReader) ReadLine(ctx context.Context) (string, error) {
	select {
	case line, ok := <-l.lines:
		if !ok {
			return "", l.err
		}
		return line, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// terminalConfirmer shows a plan and reads y/n. Anything but an explicit
// yes declines, and no answer within timeout counts as a timeout.
type terminalConfirmer struct {
	in      *lineReader
	out     io.Writer
	timeout time.Duration
}

func promptConfirm(in *lineReader, out io.Writer, timeout time.Duration) *terminalConfirmer {
	return &terminalConfirmer{in: in, out: out, timeout: timeout}
}

func (c *terminalConfirmer) Confirm(ctx context.Context, req confirm.Request) confirm.Outcome {
	printRequest(c.out, req)
	fmt.Fprint(c.out, "Proceed? [y/N] ")

	h := confirm.NewHandler(c.timeout)
	readCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		line, err := c.in.ReadLine(readCtx)
		if err != nil {
			if readCtx.Err() == nil {
				fmt.Fprintln(c.out)
				_ = h.Resolve(false)
			}
			return
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			_ = h.Resolve(true)
		default:
			_ = h.Resolve(false)
		}
	}()

	outcome := h.Wait(ctx)
	if outcome == confirm.TimedOut {
		fmt.Fprintln(c.out, "\nNo answer, plan declined.")
	}
	return outcome
}

func printRequest(out io.Writer, req confirm.Request) {
	fmt.Fprintf(out, "\n%s\n", req.Title)
	if req.Rationale != "" {
		fmt.Fprintf(out, "Reason: %s\n", req.Rationale)
	}
	fmt.Fprintf(out, "Plan:\n%s\n", req.Plan)
	for _, n := range req.Notes {
		fmt.Fprintf(out, "  - %s\n", n)
	}
}
