// Copyright (c) 2019 Jonas R. <joroec@gmx.net>
// Licensed under the MIT License. You have obtained a copy of the License at
// the "LICENSE" file in this repository.

// Package netssh is the Network & SSH Driver (C4): it discovers a domain's
// IPv4 address, validates the SSH private key file, executes remote
// commands with timeout/stdin/structured capture, and waits for SSH
// readiness.
package netssh

import (
	"bytes"
	"fmt"
	"io/ioutil"
	"os"
	"os/user"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/joroec/pvmctl/internal/config"
	"github.com/joroec/pvmctl/internal/errs"
)

// Result is the canonical SSH command result shape from §3 "SSH result".
type Result struct {
	Stdout        string
	Stderr        string
	ExitStatus    int
	Error         string
	ExecutionTime time.Duration
}

// Driver bundles the configuration a run's SSH operations share.
type Driver struct {
	cfg *config.Config
}

// New builds a Driver bound to cfg.
func New(cfg *config.Config) *Driver {
	return &Driver{cfg: cfg}
}

// ValidateKey resolves ~ in path, requires the file to exist and be a
// regular file, and warns (non-fatally) on stderr when any group/other
// permission bit (mask 0o077) is set.
func ValidateKey(path string) (string, error) {
	resolved, err := expandHome(path)
	if err != nil {
		return "", errs.NewConfigurationError(fmt.Sprintf("could not resolve SSH key path %q: %v", path, err), nil)
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return "", errs.NewConfigurationError(fmt.Sprintf("SSH key file %q does not exist", resolved),
			errs.Context{"key_path": resolved})
	}
	if !info.Mode().IsRegular() {
		return "", errs.NewConfigurationError(fmt.Sprintf("SSH key path %q is not a regular file", resolved),
			errs.Context{"key_path": resolved})
	}

	if info.Mode().Perm()&0o077 != 0 {
		// non-fatal: the warning goes to stderr and the resolved path is still returned.
		fmt.Fprintf(os.Stderr, "warning: SSH key file %s is group/other accessible (mode %o)\n",
			resolved, info.Mode().Perm())
	}

	return resolved, nil
}

func expandHome(path string) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return path, nil
	}
	u, err := user.Current()
	if err != nil {
		return "", err
	}
	return filepath.Join(u.HomeDir, strings.TrimPrefix(path, "~")), nil
}

// clientConfig builds the ssh.ClientConfig for host, using first-use-trust
// by default. When StrictHostKeyChecking is set, the caller must populate
// KnownHostsPath; this driver then delegates to a known_hosts callback.
func (drv *Driver) clientConfig(user, keyPath string) (*ssh.ClientConfig, error) {
	keyBytes, err := ioutil.ReadFile(keyPath)
	if err != nil {
		return nil, errs.NewSSHCommandError(fmt.Sprintf("could not read SSH key %q", keyPath), err, nil)
	}
	signer, err := ssh.ParsePrivateKey(keyBytes)
	if err != nil {
		return nil, errs.NewSSHCommandError(fmt.Sprintf("could not parse SSH key %q", keyPath), err, nil)
	}

	hostKeyCallback := ssh.InsecureIgnoreHostKey()
	if drv.cfg.StrictHostKeyChecking {
		cb, err := knownHostsCallback(drv.cfg.KnownHostsPath)
		if err != nil {
			return nil, errs.NewConfigurationError(fmt.Sprintf("could not load known_hosts %q", drv.cfg.KnownHostsPath), nil)
		}
		hostKeyCallback = cb
	}

	return &ssh.ClientConfig{
		User:            user,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: hostKeyCallback,
		Timeout:         drv.cfg.SSHConnectTimeout,
	}, nil
}

// RunCommand executes command on host as user with key, per §4.4's
// run-command contract. It never returns an error for a remote non-zero
// exit; only transport/auth/serialization failures produce SSHCommandError.
func (drv *Driver) RunCommand(host, user, keyPath, command string, stdin []byte, timeout time.Duration) (Result, error) {
	if timeout == 0 {
		timeout = drv.cfg.CommandTimeoutDefault
	}
	start := time.Now()

	ccfg, err := drv.clientConfig(user, keyPath)
	if err != nil {
		return Result{ExitStatus: -1, Error: err.Error(), ExecutionTime: time.Since(start)}, err
	}

	addr := fmt.Sprintf("%s:22", host)
	dialDone := make(chan struct {
		client *ssh.Client
		err    error
	}, 1)
	go func() {
		client, err := ssh.Dial("tcp", addr, ccfg)
		dialDone <- struct {
			client *ssh.Client
			err    error
		}{client, err}
	}()

	var client *ssh.Client
	select {
	case res := <-dialDone:
		if res.err != nil {
			wrapped := errs.NewSSHCommandError(fmt.Sprintf("could not connect/authenticate to %s@%s", user, host),
				res.err, errs.Context{"host": host, "user": user})
			return Result{ExitStatus: -1, Error: wrapped.Error(), ExecutionTime: time.Since(start)}, wrapped
		}
		client = res.client
	case <-time.After(drv.cfg.SSHConnectTimeout + drv.cfg.SSHAuthTimeout):
		wrapped := errs.NewNetworkError(fmt.Sprintf("timed out connecting to %s@%s", user, host), nil,
			errs.Context{"host": host, "user": user})
		return Result{ExitStatus: -1, Error: wrapped.Error(), ExecutionTime: time.Since(start)}, wrapped
	}
	defer client.Close()

	session, err := client.NewSession()
	if err != nil {
		wrapped := errs.NewSSHCommandError("could not open SSH session", err, errs.Context{"host": host})
		return Result{ExitStatus: -1, Error: wrapped.Error(), ExecutionTime: time.Since(start)}, wrapped
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	if stdin != nil {
		stdinPipe, err := session.StdinPipe()
		if err != nil {
			wrapped := errs.NewSSHCommandError("could not open stdin pipe", err, nil)
			return Result{ExitStatus: -1, Error: wrapped.Error(), ExecutionTime: time.Since(start)}, wrapped
		}
		go func() {
			stdinPipe.Write(stdin)
			stdinPipe.Close() // half-close: signal EOF to the remote command
		}()
	}

	runErr := make(chan error, 1)
	go func() { runErr <- session.Run(command) }()

	select {
	case err := <-runErr:
		result := Result{
			Stdout:        stdout.String(),
			Stderr:        stderr.String(),
			ExecutionTime: time.Since(start),
		}
		if err == nil {
			result.ExitStatus = 0
			return result, nil
		}
		if exitErr, ok := err.(*ssh.ExitError); ok {
			result.ExitStatus = exitErr.ExitStatus()
			return result, nil
		}
		// serialization/transport failure mid-command
		result.ExitStatus = -1
		result.Error = err.Error()
		return result, errs.NewSSHCommandError(fmt.Sprintf("command execution failed on %s@%s", user, host),
			err, errs.Context{"host": host, "command": command})

	case <-time.After(timeout + drv.cfg.CommandGrace):
		session.Signal(ssh.SIGKILL)
		result := Result{
			Stdout:        stdout.String(),
			Stderr:        stderr.String(),
			ExitStatus:    -1,
			Error:         fmt.Sprintf("command timed out after %s", timeout),
			ExecutionTime: time.Since(start),
		}
		return result, nil
	}
}
