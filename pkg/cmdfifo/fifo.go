// Package cmdfifo implements the command FIFO external interface
// (spec.md §6.1): a named pipe accepting shell-quoted argv lines,
// dispatched by exact command name to handlers under the reserved
// bq.cm./bq.rm./bq.prm./bq.pm. prefixes.
package cmdfifo

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/edgefabric/rtrm/pkg/log"
	"github.com/spf13/cobra"
)

// ExitCode mirrors spec.md §6.1's contract: 0 = ok, >0 = per-command
// error, negative values reserved.
type ExitCode int

const (
	OK ExitCode = 0
)

// Dispatcher owns the FIFO and a cobra command tree built from the
// handlers registered on it (spec.md §9 "plugin dispatch" note applied
// here too: commands are a registry of cobra.Commands, not a switch).
type Dispatcher struct {
	path string
	root *cobra.Command
	file *os.File
	done chan struct{}
}

// New creates a Dispatcher whose commands are added via Register before
// Start is called.
func New(path string) *Dispatcher {
	root := &cobra.Command{Use: "rtrm-cmdfifo", SilenceUsage: true, SilenceErrors: true}
	return &Dispatcher{path: path, root: root, done: make(chan struct{})}
}

// Register adds cmd to the dispatch tree. cmd.Use must be the exact
// reserved command name (e.g. "bq.prm.add") since FIFO lines are matched
// by argv[0], not parsed as a command path.
func (d *Dispatcher) Register(cmd *cobra.Command) {
	d.root.AddCommand(cmd)
}

// Setup creates the FIFO at path (0666, spec.md §6.1) if it does not
// already exist.
func (d *Dispatcher) Setup(context.Context) error {
	if err := syscall.Mkfifo(d.path, 0o666); err != nil && !os.IsExist(err) {
		return fmt.Errorf("cmdfifo: mkfifo %s: %w", d.path, err)
	}
	return nil
}

// Start opens the FIFO read-write (avoiding the open(2) block that a
// read-only open would incur with no writer yet attached) and reads
// commands until Terminate or ctx is done.
func (d *Dispatcher) Start(ctx context.Context) error {
	f, err := os.OpenFile(d.path, os.O_RDWR, 0o666)
	if err != nil {
		return fmt.Errorf("cmdfifo: open %s: %w", d.path, err)
	}
	d.file = f

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return nil
		case <-d.done:
			return nil
		default:
		}
		d.Task(scanner.Text())
	}
	return scanner.Err()
}

// Task dispatches one FIFO line, logging (not returning) the result since
// the FIFO has no reply channel back to the writer. Dispatch is delegated
// entirely to the root command's own traversal (rather than Find plus a
// child ExecuteC, which cobra always redirects back to the root anyway),
// reusing the exact argv parsing the outer CLI uses.
func (d *Dispatcher) Task(line string) {
	argv, err := splitArgv(line)
	if err != nil || len(argv) == 0 {
		log.WithComponent("cmdfifo").Warn().Str("line", line).Msg("malformed command line")
		return
	}

	d.root.SetArgs(argv)
	if _, err := d.root.ExecuteC(); err != nil {
		log.WithComponent("cmdfifo").Warn().Str("command", argv[0]).Err(err).Msg("command failed")
	}
}

// Terminate stops Start's read loop and closes the FIFO; safe to call
// more than once.
func (d *Dispatcher) Terminate() {
	select {
	case <-d.done:
	default:
		close(d.done)
	}
	if d.file != nil {
		_ = d.file.Close()
	}
}

// splitArgv tokenizes line the way a shell would: whitespace-separated
// words, with single/double quoting to embed spaces (spec.md §6.1 "each
// line is a shell-quoted argv").
func splitArgv(line string) ([]string, error) {
	var (
		args  []string
		cur   strings.Builder
		inTok bool
		quote rune
	)
	flush := func() {
		if inTok {
			args = append(args, cur.String())
			cur.Reset()
			inTok = false
		}
	}
	for _, r := range line {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				cur.WriteRune(r)
			}
		case r == '\'' || r == '"':
			quote = r
			inTok = true
		case r == ' ' || r == '\t':
			flush()
		default:
			inTok = true
			cur.WriteRune(r)
		}
	}
	if quote != 0 {
		return nil, fmt.Errorf("cmdfifo: unterminated quote")
	}
	flush()
	return args, nil
}
