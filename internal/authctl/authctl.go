// Package authctl implements the operator commands of the authctl binary:
// account creation, activation toggles, forced logout and a manual sweep of
// expired refresh tokens.
package authctl

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dmitrijs2005/tokenkeeper/internal/common"
	"github.com/dmitrijs2005/tokenkeeper/internal/cryptox"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/models"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/services"
	"golang.org/x/term"
)

// MinPasswordLength matches the registration rule of the HTTP API.
const MinPasswordLength = 8

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

// ErrUsage is returned for unknown commands and missing arguments.
var ErrUsage = errors.New("usage error")

// Admin is the subset of services.Service the commands drive.
type Admin interface {
	Register(ctx context.Context, in services.RegisterInput) (*services.AuthResult, error)
	SetActive(ctx context.Context, email string, active bool) (*models.UserSummary, error)
	RevokeAllByEmail(ctx context.Context, email string) (int64, error)
	Reap(ctx context.Context) (int64, error)
}

const usage = `usage: authctl [-c config] [-d dsn] <command> [flags]

commands:
  create-user  -email E [-name N] [-password-stdin]
  deactivate   -email E
  activate     -email E
  revoke-all   -email E
  reap
`

// CLI dispatches one command against an Admin.
type CLI struct {
	admin Admin
	in    *bufio.Reader
	out   io.Writer
}

func New(admin Admin, in io.Reader, out io.Writer) *CLI {
	return &CLI{admin: admin, in: bufio.NewReader(in), out: out}
}

// Run executes the command named by args[0].
func (c *CLI) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		fmt.Fprint(c.out, usage)
		return ErrUsage
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "create-user":
		return c.createUser(ctx, rest)
	case "deactivate":
		return c.setActive(ctx, cmd, rest, false)
	case "activate":
		return c.setActive(ctx, cmd, rest, true)
	case "revoke-all":
		return c.revokeAll(ctx, rest)
	case "reap":
		return c.reap(ctx)
	case "help", "-h", "--help":
		fmt.Fprint(c.out, usage)
		return nil
	default:
		fmt.Fprintf(c.out, "unknown command %q\n", cmd)
		fmt.Fprint(c.out, usage)
		return ErrUsage
	}
}

func (c *CLI) flagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(c.out)
	return fs
}

func requireEmail(email string) (string, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return "", fmt.Errorf("%w: -email is required", ErrUsage)
	}
	return email, nil
}

func (c *CLI) createUser(ctx context.Context, args []string) error {
	fs := c.flagSet("create-user")
	email := fs.String("email", "", "account email")
	name := fs.String("name", "", "display name")
	fromStdin := fs.Bool("password-stdin", false, "read the password from stdin")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", ErrUsage, err)
	}

	addr, err := requireEmail(*email)
	if err != nil {
		return err
	}

	password, err := c.password(*fromStdin)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	if len(password) < MinPasswordLength {
		return fmt.Errorf("password must be at least %d characters", MinPasswordLength)
	}
	if len(password) > cryptox.MaxPasswordBytes {
		return fmt.Errorf("password must be at most %d bytes", cryptox.MaxPasswordBytes)
	}

	res, err := c.admin.Register(ctx, services.RegisterInput{Email: addr, Password: string(password), Name: *name})
	if err != nil {
		return err
	}

	fmt.Fprintf(c.out, "created user %d <%s>\n", res.User.ID, res.User.Email)
	return nil
}

// password reads a line from the input stream or prompts on the terminal
// without echo.
func (c *CLI) password(fromStdin bool) ([]byte, error) {
	if fromStdin {
		line, err := c.in.ReadString('\n')
		if err != nil && !(errors.Is(err, io.EOF) && len(line) > 0) {
			return nil, fmt.Errorf("read password: %w", err)
		}
		return []byte(strings.TrimRight(line, "\r\n")), nil
	}

	fmt.Fprint(c.out, "Enter password: ")
	pw, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(c.out)
	if err != nil {
		return nil, fmt.Errorf("read password: %w", err)
	}
	return pw, nil
}

func (c *CLI) setActive(ctx context.Context, cmd string, args []string, active bool) error {
	fs := c.flagSet(cmd)
	email := fs.String("email", "", "account email")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", ErrUsage, err)
	}

	addr, err := requireEmail(*email)
	if err != nil {
		return err
	}

	s, err := c.admin.SetActive(ctx, addr, active)
	if err != nil {
		return err
	}

	state := "deactivated"
	if s.IsActive {
		state = "activated"
	}
	fmt.Fprintf(c.out, "user %d <%s> %s\n", s.ID, s.Email, state)
	return nil
}

func (c *CLI) revokeAll(ctx context.Context, args []string) error {
	fs := c.flagSet("revoke-all")
	email := fs.String("email", "", "account email")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", ErrUsage, err)
	}

	addr, err := requireEmail(*email)
	if err != nil {
		return err
	}

	n, err := c.admin.RevokeAllByEmail(ctx, addr)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "revoked %d refresh token(s) of <%s>\n", n, addr)
	return nil
}

func (c *CLI) reap(ctx context.Context) error {
	n, err := c.admin.Reap(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "deleted %d expired refresh token(s)\n", n)
	return nil
}
