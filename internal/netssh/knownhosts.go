// Copyright (c) 2019 Jonas R. <joroec@gmx.net>
// Licensed under the MIT License. You have obtained a copy of the License at
// the "LICENSE" file in this repository.

package netssh

import (
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// knownHostsCallback builds a host key callback from an OpenSSH-format
// known_hosts file, for use when StrictHostKeyChecking is enabled. The
// default driver configuration never calls this: disposable practice VMs
// are rebuilt from a fresh snapshot each run and have no stable host key to
// pin in advance.
func knownHostsCallback(path string) (ssh.HostKeyCallback, error) {
	return knownhosts.New(path)
}
