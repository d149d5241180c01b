package delegate

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"

	"github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish"
	"github.com/creack/pty"

	"github.com/rugwirobaker/flowsink/internal/flowsink"
)

// NewTerminalServer builds a wish SSH server that, for every interactive
// session, spawns shell under a PTY and bridges its output through a
// Terminal delegate: PTY output becomes Yield calls, and flowsink's
// writability gates when those bytes actually reach the session.
func NewTerminalServer(addr, hostKeyPath, shell string, initialWritable bool) (*wish.Server, error) {
	return wish.NewServer(
		wish.WithAddress(addr),
		wish.WithHostKeyPath(hostKeyPath),
		wish.WithPublicKeyAuth(func(_ ssh.Context, _ ssh.PublicKey) bool { return true }),
		wish.WithMiddleware(func(next ssh.Handler) ssh.Handler {
			return func(sesh ssh.Session) {
				handleTerminalSession(sesh, shell, initialWritable)
				next(sesh)
			}
		}),
	)
}

func handleTerminalSession(sesh ssh.Session, shell string, initialWritable bool) {
	ptyReq, winCh, isPty := sesh.Pty()
	if !isPty {
		fmt.Fprintln(sesh, "no PTY requested")
		_ = sesh.Exit(1)
		return
	}

	terminal, err := NewTerminal(sesh, 0)
	if err != nil {
		fmt.Fprintf(sesh, "failed to start terminal delegate: %v\n", err)
		_ = sesh.Exit(1)
		return
	}

	writer, sink := flowsink.New(initialWritable, terminal)

	cmd := exec.Command(shell)
	cmd.Env = append(os.Environ(), fmt.Sprintf("TERM=%s", ptyReq.Term))

	ptmx, err := pty.Start(cmd)
	if err != nil {
		fmt.Fprintf(sesh, "failed to start PTY: %v\n", err)
		_ = sesh.Exit(1)
		return
	}
	defer ptmx.Close()

	go func() {
		for win := range winCh {
			_ = pty.Setsize(ptmx, &pty.Winsize{Rows: uint16(win.Height), Cols: uint16(win.Width)})
		}
	}()

	go func() {
		buf := make([]byte, 32*1024)
		for {
			n, err := ptmx.Read(buf)
			if n > 0 {
				elements := make([]flowsink.Element, n)
				for i := 0; i < n; i++ {
					elements[i] = buf[i]
				}
				if yerr := writer.Yield(sesh.Context(), elements...); yerr != nil {
					slog.Debug("delegate.Terminal: yield failed", "session", terminal.ID(), "error", yerr)
					break
				}
			}
			if err != nil {
				if err != io.EOF {
					slog.Debug("delegate.Terminal: pty read error", "session", terminal.ID(), "error", err)
				}
				break
			}
		}
		writer.Finish()
	}()

	go io.Copy(ptmx, sesh)

	_ = cmd.Wait()
	sink.Finish()
}
