// Package tokenctl implements the operator CLI for signing secrets and
// tokens: generating a secret, minting a token for a subject and inspecting
// an existing token.
package tokenctl

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/auth"
	"github.com/dmitrijs2005/gophauth/internal/server/secrets"
	"github.com/dmitrijs2005/gophauth/internal/shared"
	"golang.org/x/term"
)

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

const usage = `usage: tokenctl <command> [flags]

commands:
  keygen  [-n bytes]                      print a new base64 signing secret
  issue   [-s secret] [-ttl d] <subject>  print an access token for subject
  inspect [-s secret] <token>             verify a token and print its claims
`

var errUsage = errors.New("usage")

// Run executes the command in args (without the program name) and returns
// the process exit code.
func Run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return 2
	}

	var err error
	switch args[0] {
	case "keygen":
		err = keygen(args[1:], stdout, stderr)
	case "issue":
		err = issue(args[1:], stdout, stderr)
	case "inspect":
		err = inspect(args[1:], stdout, stderr)
	case "help", "-h", "--help":
		fmt.Fprint(stdout, usage)
		return 0
	default:
		fmt.Fprintf(stderr, "unknown command %q\n%s", args[0], usage)
		return 2
	}

	switch {
	case err == nil:
		return 0
	case errors.Is(err, errUsage):
		fmt.Fprint(stderr, usage)
		return 2
	default:
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}
}

func newFlagSet(name string, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	return fs
}

func keygen(args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("keygen", stderr)
	size := fs.Int("n", auth.MinKeySize, "secret size in bytes")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %w", errUsage, err)
	}
	if *size < auth.MinKeySize {
		return auth.ErrWeakKey
	}

	secret, err := shared.MakeRandBase64String(*size)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(stdout, secret)
	return err
}

func issue(args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("issue", stderr)
	secret := fs.String("s", "", "base64 signing secret (prompted when empty)")
	ttl := fs.Duration("ttl", time.Hour, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %w", errUsage, err)
	}
	if fs.NArg() != 1 || fs.Arg(0) == "" {
		return errUsage
	}

	signer, err := loadSigner(*secret, stderr)
	if err != nil {
		return err
	}
	tok, err := signer.IssueAccessToken(fs.Arg(0), time.Now().Add(*ttl))
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(stdout, tok)
	return err
}

// inspect prints the claims even for expired tokens; the status line carries
// the failure kind and the exit code is non-zero.
func inspect(args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("inspect", stderr)
	secret := fs.String("s", "", "base64 signing secret (prompted when empty)")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %w", errUsage, err)
	}
	if fs.NArg() != 1 {
		return errUsage
	}

	signer, err := loadSigner(*secret, stderr)
	if err != nil {
		return err
	}

	claims, verr := signer.Verify(strings.TrimSpace(fs.Arg(0)))
	if claims != nil {
		subject := claims.Subject
		if subject == "" {
			subject = "(anonymous)"
		}
		fmt.Fprintf(stdout, "subject: %s\n", subject)
		fmt.Fprintf(stdout, "id:      %s\n", claims.ID)
		if claims.IssuedAt != nil {
			fmt.Fprintf(stdout, "issued:  %s\n", claims.IssuedAt.UTC().Format(time.RFC3339))
		}
		if claims.ExpiresAt != nil {
			fmt.Fprintf(stdout, "expires: %s\n", claims.ExpiresAt.UTC().Format(time.RFC3339))
		}
	}

	if verr != nil {
		fmt.Fprintf(stdout, "status:  %s\n", common.ErrorKind(verr))
		return verr
	}
	fmt.Fprintln(stdout, "status:  valid")
	return nil
}

func loadSigner(secret string, w io.Writer) (*auth.Signer, error) {
	var raw []byte
	if secret != "" {
		raw = []byte(secret)
	} else {
		var err error
		if raw, err = getSecret(w); err != nil {
			return nil, err
		}
		defer shared.WipeByteArray(raw)
	}

	key, err := secrets.DecodeKey(raw)
	if err != nil {
		return nil, err
	}
	defer shared.WipeByteArray(key)

	return auth.NewSigner(key)
}

// getSecret prompts on w and reads the secret from the terminal without echo.
func getSecret(w io.Writer) ([]byte, error) {
	if _, err := fmt.Fprint(w, "Enter signing secret: "); err != nil {
		return nil, err
	}
	secret, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(w)
	if err != nil {
		return nil, err
	}
	return secret, nil
}
