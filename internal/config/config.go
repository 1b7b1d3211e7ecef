// Copyright (c) 2019 Jonas R. <joroec@gmx.net>
// Licensed under the MIT License. You have obtained a copy of the License at
// the "LICENSE" file in this repository.

// Package config holds the engine-wide defaults that the Python original
// kept as module-level constants. The core never reaches for a singleton:
// every component that needs one of these values receives an explicit
// *Config at construction time.
package config

import "time"

// Config bundles every tunable default the engine components need. The CLI
// adapter is responsible for populating it from flags and passing it down;
// nothing in this package reads the environment or flag.CommandLine itself.
type Config struct {
	// HypervisorURI is the libvirt connection URI used by the gateway.
	HypervisorURI string

	// SSHConnectTimeout bounds the TCP+key-exchange phase of an SSH dial,
	// distinct from (and shorter than) CommandTimeout.
	SSHConnectTimeout time.Duration
	// SSHAuthTimeout bounds public-key authentication after transport.
	SSHAuthTimeout time.Duration
	// CommandTimeoutDefault is the default remote command timeout used when
	// a probe or setup step does not specify one.
	CommandTimeoutDefault time.Duration
	// CommandGrace is added to CommandTimeout before giving up on a
	// trailing exit-status delivery.
	CommandGrace time.Duration

	// ReadinessPollInterval is how often WaitForReady retries SSH dial.
	ReadinessPollInterval time.Duration
	// ReadinessTimeout is the overall deadline for WaitForReady.
	ReadinessTimeout time.Duration

	// ShutdownPollInterval is how often the controller re-checks domain
	// state while waiting for a graceful shutdown to land.
	ShutdownPollInterval time.Duration
	// ShutdownTimeout bounds the graceful-shutdown wait before a forceful
	// destroy is issued.
	ShutdownTimeout time.Duration

	// SnapshotKeepCount is the number of most-recent overlay files per base
	// disk retained by the stale-overlay garbage collector.
	SnapshotKeepCount int
	// SnapshotHashCollisionRetries bounds how many times a fresh overlay
	// hash is tried before giving up with a SnapshotOperationError.
	SnapshotHashCollisionRetries int

	// SSHKeyPermissionMask is the group/other mask (0o077) for a private key
	// file's mode; a non-zero AND is a non-fatal warning. netssh.ValidateKey
	// applies the literal 0o077 and does not read this field.
	SSHKeyPermissionMask uint32

	// DefaultChallengeScore is applied when a challenge document omits
	// `score`.
	DefaultChallengeScore int

	// PermissionRepairEnabled gates the chown/chmod/daemon-restart repair
	// path in the snapshot controller. On in Default(); set it to false to
	// disable the repair.
	PermissionRepairEnabled bool
	// HypervisorOwner is the user:group a repaired disk is chowned to.
	HypervisorOwner string
	// LibvirtdServiceName is restarted once, after a repair pass fixes at
	// least one file, to make the hypervisor daemon pick up the change.
	LibvirtdServiceName string

	// StrictHostKeyChecking, when true, substitutes a known_hosts based
	// policy for the default first-use-trust policy. Off by default: this
	// tool targets disposable one-shot practice VMs.
	StrictHostKeyChecking bool
	KnownHostsPath        string
}

// Default returns the engine defaults, grounded on the Python original's
// Config class constants.
func Default() *Config {
	return &Config{
		HypervisorURI:                "qemu:///system",
		SSHConnectTimeout:            10 * time.Second,
		SSHAuthTimeout:               10 * time.Second,
		CommandTimeoutDefault:        30 * time.Second,
		CommandGrace:                 5 * time.Second,
		ReadinessPollInterval:        5 * time.Second,
		ReadinessTimeout:             120 * time.Second,
		ShutdownPollInterval:         5 * time.Second,
		ShutdownTimeout:              120 * time.Second,
		SnapshotKeepCount:            5,
		SnapshotHashCollisionRetries: 3,
		SSHKeyPermissionMask:         0o077,
		DefaultChallengeScore:        100,
		PermissionRepairEnabled:      true,
		HypervisorOwner:              "libvirt-qemu:libvirt",
		LibvirtdServiceName:          "libvirtd",
		StrictHostKeyChecking:        false,
	}
}
