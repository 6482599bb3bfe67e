package tools

import (
	"bytes"
	"fmt"
	"os"
)

// MaxOutputBytes caps stdout and stderr captured from child processes.
const MaxOutputBytes = 100 * 1024

// SafeEnvironment is the scrubbed environment for child processes. API keys
// and other secrets of the jarvis process are not inherited. extra entries
// of the form KEY=VALUE are appended.
func SafeEnvironment(extra ...string) []string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.TempDir()
	}
	env := []string{
		"PATH=" + safePath(),
		"HOME=" + home,
		"SHELL=/bin/sh",
		"LANG=C.UTF-8",
		"LC_ALL=C.UTF-8",
	}
	return append(env, extra...)
}

// safePath keeps the caller's PATH so user installed tools such as go stay
// reachable, falling back to the system default.
func safePath() string {
	if p := os.Getenv("PATH"); p != "" {
		return p
	}
	return "/usr/local/sbin:/usr/local/bin:/usr/sbin:/usr/bin:/sbin:/bin"
}

// CappedBuffer is an io.Writer that keeps at most limit bytes and remembers
// whether anything was dropped.
type CappedBuffer struct {
	buf       bytes.Buffer
	limit     int
	truncated bool
}

// NewCappedBuffer caps at limit bytes, MaxOutputBytes when limit <= 0.
func NewCappedBuffer(limit int) *CappedBuffer {
	if limit <= 0 {
		limit = MaxOutputBytes
	}
	return &CappedBuffer{limit: limit}
}

func (c *CappedBuffer) Write(p []byte) (int, error) {
	room := c.limit - c.buf.Len()
	if room <= 0 {
		c.truncated = len(p) > 0 || c.truncated
		return len(p), nil
	}
	if len(p) > room {
		c.buf.Write(p[:room])
		c.truncated = true
		return len(p), nil
	}
	c.buf.Write(p)
	return len(p), nil
}

func (c *CappedBuffer) Bytes() []byte { return c.buf.Bytes() }

func (c *CappedBuffer) String() string {
	if !c.truncated {
		return c.buf.String()
	}
	return c.buf.String() + fmt.Sprintf("\n... [truncated, output exceeded %dKB limit]", c.limit/1024)
}

// Truncated reports whether output was dropped.
func (c *CappedBuffer) Truncated() bool { return c.truncated }
