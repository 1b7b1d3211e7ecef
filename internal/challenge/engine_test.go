// Copyright (c) 2019 Jonas R. <joroec@gmx.net>
// Licensed under the MIT License. You have obtained a copy of the License at
// the "LICENSE" file in this repository.

package challenge

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestScoreResultZeroOnFailure(t *testing.T) {
	doc := &Document{Score: 100}
	score := scoreResult(doc, RunOptions{}, false)
	require.Equal(t, 0, score)
}

func TestScoreResultFullScoreNoHintsViewed(t *testing.T) {
	doc := &Document{Score: 100, Hints: []Hint{{Text: "h1", Cost: 20}}}
	score := scoreResult(doc, RunOptions{}, true)
	require.Equal(t, 100, score)
}

func TestScoreResultDeductsViewedHintCosts(t *testing.T) {
	doc := &Document{Score: 100, Hints: []Hint{{Text: "h1", Cost: 20}, {Text: "h2", Cost: 30}}}
	score := scoreResult(doc, RunOptions{HintIndexesViewed: []int{0, 1}}, true)
	require.Equal(t, 50, score)
}

func TestScoreResultFloorsAtZero(t *testing.T) {
	doc := &Document{Score: 10, Hints: []Hint{{Text: "h1", Cost: 50}}}
	score := scoreResult(doc, RunOptions{HintIndexesViewed: []int{0}}, true)
	require.Equal(t, 0, score)
}

func TestScoreResultIgnoresOutOfRangeHintIndex(t *testing.T) {
	doc := &Document{Score: 100, Hints: []Hint{{Text: "h1", Cost: 20}}}
	score := scoreResult(doc, RunOptions{HintIndexesViewed: []int{5, -1}}, true)
	require.Equal(t, 100, score)
}

func TestPackageInstallCommandDefaultsToApt(t *testing.T) {
	cmd := packageInstallCommand(SetupStep{Type: "ensure_package_installed", Package: "nmap"})
	require.Equal(t, "sudo apt-get install -y nmap", cmd)
}

func TestPackageInstallCommandAptWithCacheUpdate(t *testing.T) {
	cmd := packageInstallCommand(SetupStep{Package: "nmap", ManagerType: "apt", UpdateCache: true})
	require.Equal(t, "sudo apt-get update -y && sudo apt-get install -y nmap", cmd)
}

func TestPackageInstallCommandDnf(t *testing.T) {
	cmd := packageInstallCommand(SetupStep{Package: "httpd", ManagerType: "dnf"})
	require.Equal(t, "sudo dnf install -y httpd", cmd)
}

func TestPackageInstallCommandPacman(t *testing.T) {
	cmd := packageInstallCommand(SetupStep{Package: "nmap", ManagerType: "pacman"})
	require.Equal(t, "sudo pacman -S --noconfirm nmap", cmd)
}
