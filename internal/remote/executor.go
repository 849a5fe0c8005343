// Package remote is the Remote Executor (C2): SSH command execution and
// SFTP file transfer against load agents and target hosts, wrapped in the
// engine's retry policy. Every blocking call takes a *hscontext.Context so
// callers can bound it with a deadline or cancel it from a parent command.
package remote

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net"
	"os"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"

	"github.com/hailstorm-project/hailstorm/internal/hscontext"
	"github.com/hailstorm-project/hailstorm/internal/hserrors"
	"github.com/hailstorm-project/hailstorm/internal/metrics"
	"github.com/hailstorm-project/hailstorm/internal/util"
)

// Host identifies the machine an Executor talks to and how to authenticate.
type Host struct {
	Address     string // host:port, or bare host (Port fills in 22)
	Port        int
	UserName    string
	IdentityKey []byte // PEM-encoded private key
	Password    string // used only when IdentityKey is empty
}

func (h Host) addr() string {
	if h.Port == 0 {
		return net.JoinHostPort(h.Address, "22")
	}
	return net.JoinHostPort(h.Address, fmt.Sprintf("%d", h.Port))
}

// Executor runs commands and transfers files against one Host, retrying
// transient failures per policy.
type Executor struct {
	Host   Host
	Policy util.RetryPolicy

	clientConfig *ssh.ClientConfig
}

// NewExecutor builds an Executor for host using the default host retry
// policy.
func NewExecutor(host Host) (*Executor, error) {
	cfg, err := clientConfig(host)
	if err != nil {
		return nil, err
	}
	return &Executor{Host: host, Policy: util.DefaultHostRetryPolicy(), clientConfig: cfg}, nil
}

func clientConfig(host Host) (*ssh.ClientConfig, error) {
	var auth []ssh.AuthMethod
	if len(host.IdentityKey) > 0 {
		signer, err := ssh.ParsePrivateKey(host.IdentityKey)
		if err != nil {
			return nil, errors.Wrap(err, "parsing ssh identity key")
		}
		auth = append(auth, ssh.PublicKeys(signer))
	} else if host.Password != "" {
		auth = append(auth, ssh.Password(host.Password))
	} else {
		return nil, errors.New("host has neither an identity key nor a password")
	}
	return &ssh.ClientConfig{
		User:            host.UserName,
		Auth:            auth,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(), //nolint:gosec // agent fleets are ephemeral and unenrolled in a known_hosts store
		Timeout:         10 * time.Second,
	}, nil
}

func (e *Executor) dial() (*ssh.Client, error) {
	client, err := ssh.Dial("tcp", e.Host.addr(), e.clientConfig)
	if err != nil {
		if isTransient(err) {
			return nil, &hserrors.TransientHostError{Host: e.Host.Address, Op: "dial", Err: err}
		}
		return nil, errors.Wrapf(err, "dialing %s", e.Host.Address)
	}
	return client, nil
}

// isTransient classifies dial/exec failures: timeouts and connection
// refusals are worth retrying, auth failures are not.
func isTransient(err error) bool {
	if errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}
	if opErr, ok := errors.Cause(err).(*net.OpError); ok {
		return opErr.Timeout() || opErr.Temporary()
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// EnsureConnectivity dials the host and immediately closes the connection,
// classifying the outcome as transient or permanent.
func (e *Executor) EnsureConnectivity(ctx *hscontext.Context) error {
	return util.Retry(ctx, e.Policy, func() error {
		conn, err := net.DialTimeout("tcp", e.Host.addr(), 5*time.Second)
		if err != nil {
			return &hserrors.TransientHostError{Host: e.Host.Address, Op: "ensure_connectivity", Err: err}
		}
		return conn.Close()
	})
}

// Result is one command's captured output.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Exec runs command over a fresh SSH session, retrying transient dial and
// session-setup failures per policy. A non-zero exit code is not itself
// retried — the command ran, it just failed.
func (e *Executor) Exec(ctx *hscontext.Context, command string) (Result, error) {
	started := time.Now()
	defer func() { metrics.RemoteCallDurationSeconds.WithLabelValues("exec").Observe(time.Since(started).Seconds()) }()

	var result Result
	err := util.Retry(ctx, e.Policy, func() error {
		client, err := e.dial()
		if err != nil {
			return err
		}
		defer client.Close()

		session, err := client.NewSession()
		if err != nil {
			return &hserrors.TransientHostError{Host: e.Host.Address, Op: "new_session", Err: err}
		}
		defer session.Close()

		var stdout, stderr bytes.Buffer
		session.Stdout = &stdout
		session.Stderr = &stderr

		runErr := session.Run(command)
		result = Result{Stdout: stdout.String(), Stderr: stderr.String()}
		if exitErr, ok := runErr.(*ssh.ExitError); ok {
			result.ExitCode = exitErr.ExitStatus()
			return nil
		}
		if runErr != nil {
			return &hserrors.TransientHostError{Host: e.Host.Address, Op: command, Err: runErr}
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	ctx.Log.Debug().Str("host", e.Host.Address).Str("command", command).Int("exit_code", result.ExitCode).Msg("remote command finished")
	return result, nil
}

// contentHash returns the SHA-256 hex digest of a local file.
func contentHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", errors.Wrapf(err, "opening %s for hashing", path)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", errors.Wrapf(err, "hashing %s", path)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// remoteContentHash asks the host to hash remotePath itself, avoiding a
// full download just to compare content.
func (e *Executor) remoteContentHash(ctx *hscontext.Context, remotePath string) (string, error) {
	result, err := e.Exec(ctx, fmt.Sprintf("sha256sum %s 2>/dev/null || true", shellQuote(remotePath)))
	if err != nil {
		return "", err
	}
	if result.Stdout == "" {
		return "", nil // file absent
	}
	var sum string
	if _, err := fmt.Sscanf(result.Stdout, "%s", &sum); err != nil {
		return "", errors.Wrapf(err, "parsing sha256sum output %q", result.Stdout)
	}
	return sum, nil
}

func shellQuote(s string) string {
	return "'" + s + "'"
}

// Upload copies localPath to remotePath over SFTP, skipping the transfer
// when the remote file already has matching content, unless force is set
// (redeploy forces every file across regardless of content hash).
func (e *Executor) Upload(ctx *hscontext.Context, localPath, remotePath string, force bool) error {
	started := time.Now()
	defer func() { metrics.RemoteCallDurationSeconds.WithLabelValues("upload").Observe(time.Since(started).Seconds()) }()

	if !force {
		localHash, err := contentHash(localPath)
		if err != nil {
			return err
		}
		remoteHash, err := e.remoteContentHash(ctx, remotePath)
		if err != nil {
			return err
		}
		if remoteHash != "" && remoteHash == localHash {
			ctx.Log.Debug().Str("path", remotePath).Msg("upload skipped, content unchanged")
			return nil
		}
	}

	return util.Retry(ctx, e.Policy, func() error {
		client, err := e.dial()
		if err != nil {
			return err
		}
		defer client.Close()

		sc, err := sftp.NewClient(client)
		if err != nil {
			return &hserrors.TransientHostError{Host: e.Host.Address, Op: "sftp_new_client", Err: err}
		}
		defer sc.Close()

		src, err := os.Open(localPath)
		if err != nil {
			return errors.Wrapf(err, "opening %s", localPath)
		}
		defer src.Close()

		dst, err := sc.Create(remotePath)
		if err != nil {
			return &hserrors.TransientHostError{Host: e.Host.Address, Op: "sftp_create", Err: err}
		}
		defer dst.Close()

		if _, err := io.Copy(dst, src); err != nil {
			return &hserrors.TransientHostError{Host: e.Host.Address, Op: "sftp_copy", Err: err}
		}
		return nil
	})
}

// Download copies remotePath to localPath over SFTP, used to collect .jtl
// results and monitor sample files.
func (e *Executor) Download(ctx *hscontext.Context, remotePath, localPath string) error {
	started := time.Now()
	defer func() { metrics.RemoteCallDurationSeconds.WithLabelValues("download").Observe(time.Since(started).Seconds()) }()

	return util.Retry(ctx, e.Policy, func() error {
		client, err := e.dial()
		if err != nil {
			return err
		}
		defer client.Close()

		sc, err := sftp.NewClient(client)
		if err != nil {
			return &hserrors.TransientHostError{Host: e.Host.Address, Op: "sftp_new_client", Err: err}
		}
		defer sc.Close()

		src, err := sc.Open(remotePath)
		if err != nil {
			return &hserrors.TransientHostError{Host: e.Host.Address, Op: "sftp_open", Err: err}
		}
		defer src.Close()

		dst, err := os.Create(localPath)
		if err != nil {
			return errors.Wrapf(err, "creating %s", localPath)
		}
		defer dst.Close()

		if _, err := io.Copy(dst, src); err != nil {
			return &hserrors.TransientHostError{Host: e.Host.Address, Op: "sftp_copy", Err: err}
		}
		return nil
	})
}
