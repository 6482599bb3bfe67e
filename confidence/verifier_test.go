package confidence

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jarvis/tools"
	"jarvis/tools/builtin"
)

func TestVerifyFileTools(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "report.txt")
	require.NoError(t, os.WriteFile(existing, []byte("x"), 0o600))

	v := NewVerifier()

	vd := v.Verify("rename_file", map[string]any{"current_path": existing, "new_name": "final.txt"})
	assert.Equal(t, 1.0, vd.Score)
	assert.True(t, vd.Verified)

	vd = v.Verify("move_file", map[string]any{"source_path": filepath.Join(dir, "missing.txt")})
	assert.Equal(t, 0.3, vd.Score)
	assert.Contains(t, vd.Rationale, "does not exist")

	vd = v.Verify("delete_junk_file", map[string]any{})
	assert.Equal(t, 0.1, vd.Score)
	assert.Equal(t, "Path argument is missing.", vd.Rationale)
}

func TestFileToolsAreRegisteredTools(t *testing.T) {
	reg := tools.NewRegistry()
	require.NoError(t, builtin.RegisterAll(reg, builtin.Deps{HomeDir: t.TempDir()}))
	for name := range fileTools {
		def, ok := reg.Lookup(name)
		require.True(t, ok, "%s is not a registered tool", name)
		var hasPath bool
		for _, arg := range []string{"source_path", "current_path", "file_path"} {
			if _, ok := def.Schema.Field(arg); ok {
				hasPath = true
			}
		}
		assert.True(t, hasPath, "%s takes no path argument", name)
	}
}

func TestVerifyShell(t *testing.T) {
	v := NewVerifier()

	assert.Equal(t, 1.0, v.Verify("execute_shell_command", map[string]any{"command": "ls -la | grep go"}).Score)
	assert.Equal(t, 0.1, v.Verify("execute_shell_command", map[string]any{"command": "sudo RM -RF /"}).Score)
	assert.Equal(t, 0.1, v.Verify("execute_shell_command", map[string]any{"command": "dd if=/dev/zero of=/dev/sda"}).Score)

	vd := v.Verify("execute_shell_command", map[string]any{"command": `echo "unterminated`})
	assert.Equal(t, 0.2, vd.Score)
	assert.Equal(t, "Command has unbalanced quotes or is malformed.", vd.Rationale)
}

func TestVerifyUnknownTool(t *testing.T) {
	vd := NewVerifier().Verify("get_current_weather", map[string]any{"city": "Paris"})
	assert.Equal(t, 0.9, vd.Score)
	assert.False(t, vd.Verified)
}

func TestVerifyPlanTakesWeakest(t *testing.T) {
	v := NewVerifier()
	vd := v.VerifyPlan([]Call{
		{ToolName: "get_current_weather", Args: map[string]any{}},
		{ToolName: "move_file", Args: map[string]any{}},
	})
	assert.Equal(t, 0.1, vd.Score)
	assert.False(t, vd.Verified)
	assert.Contains(t, vd.Rationale, "move_file: Path argument is missing.")
}
