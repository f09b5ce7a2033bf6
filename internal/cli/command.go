package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"

	"github.com/spf13/cobra"

	"github.com/hupe1980/locus/internal/fs"
	"github.com/hupe1980/locus/resource"
)

// splitCommand splits args into the single positional argument and the
// command given after "--".
func splitCommand(cmd *cobra.Command, args []string) (string, []string, error) {
	dash := cmd.ArgsLenAtDash()
	if dash < 0 {
		dash = len(args)
	}
	if dash != 1 {
		return "", nil, fmt.Errorf("expected exactly one argument before --, got %d", dash)
	}
	return args[0], args[dash:], nil
}

// commandReader reads a command's standard output and reports the exit
// status once the output is drained.
type commandReader struct {
	io.ReadCloser
	cmd  *exec.Cmd
	done bool
	err  error
}

func startCommand(ctx context.Context, argv []string) (*commandReader, error) {
	c := exec.CommandContext(ctx, argv[0], argv[1:]...)
	stdout, err := c.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := c.Start(); err != nil {
		return nil, err
	}
	return &commandReader{ReadCloser: stdout, cmd: c}, nil
}

func (r *commandReader) Read(p []byte) (int, error) {
	n, err := r.ReadCloser.Read(p)
	if errors.Is(err, io.EOF) {
		if werr := r.wait(); werr != nil {
			return n, werr
		}
	}
	return n, err
}

// Close stops reading early if the output was not drained and waits for
// the command to exit.
func (r *commandReader) Close() error {
	if !r.done {
		_ = r.ReadCloser.Close()
	}
	return r.wait()
}

func (r *commandReader) wait() error {
	if !r.done {
		r.done = true
		if err := r.cmd.Wait(); err != nil {
			r.err = fmt.Errorf("%s: %w", r.cmd.Path, err)
		}
	}
	return r.err
}

// commandProducer writes the output of argv to the target.
func commandProducer(argv []string) resource.Producer {
	return resource.ProducerFunc(func(ctx context.Context, p *resource.Path, target string) (bool, error) {
		r, err := startCommand(ctx, argv)
		if err != nil {
			return false, err
		}
		if _, err := fs.WriteAtomic(p.Namespace().FileSystem(), target, r); err != nil {
			_ = r.Close()
			return false, err
		}
		return true, r.Close()
	})
}
