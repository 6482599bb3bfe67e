package confidence

import (
	"fmt"
	"os"
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

// Verdict is the verifier's opinion of one tool call.
type Verdict struct {
	Score     float64 `json:"score"`
	Rationale string  `json:"rationale"`
	// Verified is false when no specific check exists for the tool.
	Verified bool `json:"verified"`
}

const (
	unverifiedScore     = 0.9
	unverifiedRationale = "No specific verifier for this tool; arguments unverified."
)

// fileTools take the path they act on as source_path, current_path or
// file_path.
var fileTools = map[string]struct{}{
	"move_file":        {},
	"rename_file":      {},
	"delete_junk_file": {},
	"read_text_file":   {},
}

// dangerousPatterns are matched against the lower-cased command.
var dangerousPatterns = []string{
	"rm -rf",
	"rm -fr",
	"mkfs",
	"format ",
	"del /s",
	"> /dev/sda",
	"dd if=",
	":(){",
}

// Verifier statically checks tool arguments before execution.
type Verifier struct {
	stat func(string) (os.FileInfo, error)
}

func NewVerifier() *Verifier {
	return &Verifier{stat: os.Stat}
}

// Verify scores a single call in [0,1].
func (v *Verifier) Verify(tool string, args map[string]any) Verdict {
	if _, ok := fileTools[tool]; ok {
		return v.verifyPath(args)
	}
	if tool == "execute_shell_command" {
		return verifyShell(args)
	}
	return Verdict{Score: unverifiedScore, Rationale: unverifiedRationale}
}

// VerifyPlan returns the weakest verdict across calls, with the rationale
// of every call that scored below 1.
func (v *Verifier) VerifyPlan(calls []Call) Verdict {
	if len(calls) == 0 {
		return Verdict{Score: 1, Rationale: "Empty plan.", Verified: true}
	}
	worst := Verdict{Score: 1, Verified: true}
	var notes []string
	for _, c := range calls {
		vd := v.Verify(c.ToolName, c.Args)
		if vd.Score < 1 {
			notes = append(notes, c.ToolName+": "+vd.Rationale)
		}
		if vd.Score < worst.Score {
			worst.Score = vd.Score
		}
		worst.Verified = worst.Verified && vd.Verified
	}
	if len(notes) == 0 {
		worst.Rationale = "All arguments verified."
	} else {
		worst.Rationale = strings.Join(notes, " ")
	}
	return worst
}

// Call is the minimal view of a planned tool call.
type Call struct {
	ToolName string
	Args     map[string]any
}

func (v *Verifier) verifyPath(args map[string]any) Verdict {
	path := firstString(args, "source_path", "current_path", "file_path")
	if path == "" {
		return Verdict{Score: 0.1, Rationale: "Path argument is missing.", Verified: true}
	}
	if _, err := v.stat(path); err != nil {
		return Verdict{Score: 0.3, Rationale: fmt.Sprintf("The source file or directory '%s' does not exist.", path), Verified: true}
	}
	return Verdict{Score: 1.0, Rationale: "Source path exists.", Verified: true}
}

func verifyShell(args map[string]any) Verdict {
	command, _ := args["command"].(string)
	if strings.TrimSpace(command) == "" {
		return Verdict{Score: 0.1, Rationale: "Command argument is missing.", Verified: true}
	}
	lower := strings.ToLower(command)
	for _, p := range dangerousPatterns {
		if strings.Contains(lower, p) {
			return Verdict{Score: 0.1, Rationale: "Command is potentially highly destructive.", Verified: true}
		}
	}
	if _, err := syntax.NewParser().Parse(strings.NewReader(command), ""); err != nil {
		return Verdict{Score: 0.2, Rationale: "Command has unbalanced quotes or is malformed.", Verified: true}
	}
	return Verdict{Score: 1.0, Rationale: "Command seems syntactically valid.", Verified: true}
}

func firstString(args map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := args[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}
