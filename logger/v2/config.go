package v2

// Config holds configuration for creating a logger instance
type Config struct {
	// Level is the minimum level: debug, info, warn or error
	Level string

	// Format is text or json
	Format string

	// Output is "stdout", "stderr" or a file path
	Output string

	// FilePath, when set, mirrors every entry into this file in addition to Output.
	// The CLI uses it so interactive output stays readable while a full log is kept.
	FilePath string
}

// DefaultConfig returns info level text logs on stderr.
// Stdout is left to the CLI for answers.
func DefaultConfig() Config {
	return Config{
		Level:  "info",
		Format: "text",
		Output: "stderr",
	}
}
