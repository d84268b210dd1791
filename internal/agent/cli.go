package agent

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
)

// CLIRunner spawns the agent binary once per turn with stream-json output
// and parses its stdout line by line. Resumption uses the agent's --resume
// flag with the session id captured from the previous turn.
type CLIRunner struct {
	Binary string
	// ExtraEnv is appended to the inherited environment, typically the
	// upstream credential variable.
	ExtraEnv []string
}

func NewCLIRunner(binary string, extraEnv []string) *CLIRunner {
	if binary == "" {
		binary = "claude"
	}
	return &CLIRunner{Binary: binary, ExtraEnv: extraEnv}
}

func (r *CLIRunner) Query(ctx context.Context, prompt string, opts QueryOptions) (*Stream, error) {
	args := []string{
		"--output-format", "stream-json",
		"--print",
		"--verbose",
	}
	if opts.Model != "" {
		args = append(args, "--model", opts.Model)
	}
	if opts.Resume != "" {
		args = append(args, "--resume", opts.Resume)
	}
	args = append(args, prompt)

	command := exec.CommandContext(ctx, r.Binary, args...)
	command.Stderr = os.Stderr
	command.Env = append(os.Environ(), r.ExtraEnv...)

	stdout, err := command.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("creating stdout pipe: %w", err)
	}

	if err := command.Start(); err != nil {
		return nil, fmt.Errorf("starting agent: %w", err)
	}

	stream := newStream()
	go consume(ctx, command, stdout, stream)
	return stream, nil
}

func consume(ctx context.Context, command *exec.Cmd, stdout io.Reader, stream *Stream) {
	scanner := bufio.NewScanner(stdout)
	// Tool-heavy turns can produce very long lines.
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var msg Message
		if err := json.Unmarshal(line, &msg); err != nil {
			// Malformed line: skip rather than abort the turn.
			continue
		}
		if !stream.emit(ctx, msg) {
			_ = command.Wait()
			stream.finish(ctx.Err())
			return
		}
	}

	scanErr := scanner.Err()
	waitErr := command.Wait()
	switch {
	case scanErr != nil:
		stream.finish(fmt.Errorf("reading agent output: %w", scanErr))
	case waitErr != nil:
		stream.finish(fmt.Errorf("agent exited: %w", waitErr))
	default:
		stream.finish(nil)
	}
}
