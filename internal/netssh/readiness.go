// Copyright (c) 2019 Jonas R. <joroec@gmx.net>
// Licensed under the MIT License. You have obtained a copy of the License at
// the "LICENSE" file in this repository.

package netssh

import (
	"fmt"
	"io/ioutil"
	"os"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/joroec/pvmctl/internal/errs"
)

// WaitForReady polls an SSH dial+auth against host at a fixed interval
// until it succeeds, per §4.4. Authentication failure after a successful
// transport handshake is treated as "ready but misconfigured": the function
// prints a warning to stderr and returns nil, since the three-way handshake
// succeeded. Transport-level failures and timeouts keep retrying until the
// overall deadline, at which point NetworkError is raised.
func (drv *Driver) WaitForReady(host, user, keyPath string) error {
	keyBytes, err := ioutil.ReadFile(keyPath)
	if err != nil {
		return errs.NewSSHCommandError(fmt.Sprintf("could not read SSH key %q", keyPath), err, nil)
	}
	signer, err := ssh.ParsePrivateKey(keyBytes)
	if err != nil {
		return errs.NewSSHCommandError(fmt.Sprintf("could not parse SSH key %q", keyPath), err, nil)
	}

	ccfg := &ssh.ClientConfig{
		User:            user,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         drv.cfg.SSHConnectTimeout,
	}

	addr := fmt.Sprintf("%s:22", host)
	deadline := time.Now().Add(drv.cfg.ReadinessTimeout)

	for {
		client, err := ssh.Dial("tcp", addr, ccfg)
		if err == nil {
			client.Close()
			return nil
		}

		if isAuthFailure(err) {
			fmt.Fprintf(os.Stderr, "warning: SSH on %s is reachable but authentication as %q failed: %v\n",
				host, user, err)
			return nil
		}

		if time.Now().After(deadline) {
			return errs.NewNetworkError(
				fmt.Sprintf("timed out waiting for SSH readiness on %s after %s", host, drv.cfg.ReadinessTimeout),
				err, errs.Context{"host": host, "timeout": drv.cfg.ReadinessTimeout.String()})
		}

		time.Sleep(drv.cfg.ReadinessPollInterval)
	}
}

// isAuthFailure reports whether a dial error represents a successful
// transport handshake followed by an authentication rejection, as opposed
// to a transport-level failure (refused, unreachable, timed out).
func isAuthFailure(err error) bool {
	return strings.Contains(err.Error(), "unable to authenticate")
}
