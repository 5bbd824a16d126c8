package cli

import (
	"context"
	"io"
)

// Execute runs the CLI with args and returns the process exit code. Errors
// are reported on stderr in the selected output format.
func Execute(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	cmd, opts := newRootCommand()
	cmd.SetArgs(args)
	cmd.SetIn(stdin)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return ExitSuccess
	}

	code := GetExitCode(err)
	if msg := err.Error(); msg != "" {
		format := opts.Format
		if !isValidFormat(format) {
			format = "text"
		}
		out := &OutputFormatter{Format: format, Writer: stderr}
		_ = out.Error(errorCode(code), msg)
	}
	return code
}

func errorCode(exit int) string {
	switch exit {
	case ExitCommandError:
		return "command_error"
	default:
		return "failure"
	}
}
