// Copyright (c) 2024 The Gandercoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package rpctest

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/btcsuite/btcd/rpcclient"
)

// nodeConfig contains all the args and data required to launch a
// gandercoind process and connect the rpc client to it.
type nodeConfig struct {
	rpcUser    string
	rpcPass    string
	p2pPort    int
	rpcPort    int
	dataDir    string
	debugLevel string
	extra      []string
	nodeDir    string

	exe string
}

// newConfig returns a nodeConfig with all default values.  The node binary
// is taken from customExePath when set, then from the GANDERCOIND
// environment variable, and finally looked up in PATH.
func newConfig(nodeDir string, extra []string, customExePath string) (*nodeConfig, error) {
	exe := customExePath
	if exe == "" {
		exe = os.Getenv("GANDERCOIND")
	}
	if exe == "" {
		var err error
		exe, err = exec.LookPath("gandercoind")
		if err != nil {
			return nil, fmt.Errorf("unable to find gandercoind: %w", err)
		}
	}

	n := &nodeConfig{
		rpcUser: "user",
		rpcPass: "pass",
		extra:   extra,
		nodeDir: nodeDir,
		exe:     exe,
	}
	n.dataDir = filepath.Join(n.nodeDir, "data")
	if err := os.MkdirAll(n.dataDir, 0700); err != nil {
		return nil, err
	}
	return n, nil
}

// arguments returns an array of arguments that be used to launch the
// gandercoind process.
func (n *nodeConfig) arguments() []string {
	args := []string{
		"-regtest",
		"-server",
		"-txindex",
		"-listenonion=0",
		"-fallbackfee=0.0002",
		"-printtoconsole=0",
	}
	if n.rpcUser != "" {
		args = append(args, fmt.Sprintf("-rpcuser=%s", n.rpcUser))
	}
	if n.rpcPass != "" {
		args = append(args, fmt.Sprintf("-rpcpassword=%s", n.rpcPass))
	}
	if n.p2pPort != 0 {
		args = append(args, fmt.Sprintf("-port=%d", n.p2pPort))
	}
	if n.rpcPort != 0 {
		args = append(args, fmt.Sprintf("-rpcport=%d", n.rpcPort))
	}
	if n.dataDir != "" {
		args = append(args, fmt.Sprintf("-datadir=%s", n.dataDir))
	}
	if n.debugLevel != "" {
		args = append(args, fmt.Sprintf("-debug=%s", n.debugLevel))
	}
	return append(args, n.extra...)
}

// command returns the exec.Cmd which will be used to start the gandercoind
// process.
func (n *nodeConfig) command() *exec.Cmd {
	return exec.Command(n.exe, n.arguments()...)
}

// rpcConnConfig returns the rpc connection config that can be used to
// connect to the process launched via start.  The node only speaks JSON-RPC
// over plain HTTP POST.
func (n *nodeConfig) rpcConnConfig() rpcclient.ConnConfig {
	return rpcclient.ConnConfig{
		Host:                 fmt.Sprintf("127.0.0.1:%d", n.rpcPort),
		User:                 n.rpcUser,
		Pass:                 n.rpcPass,
		HTTPPostMode:         true,
		DisableTLS:           true,
		DisableAutoReconnect: true,
	}
}

// String returns the string representation of this nodeConfig.
func (n *nodeConfig) String() string {
	return n.nodeDir
}

// node houses the necessary state required to configure, launch, and
// manage a gandercoind process.
type node struct {
	config *nodeConfig

	cmd     *exec.Cmd
	pidFile string

	dataDir string
}

// newNode creates a new node instance according to the passed config.
// dataDir will be used to hold a file recording the pid of the launched
// process.
func newNode(config *nodeConfig, dataDir string) *node {
	return &node{
		config:  config,
		dataDir: dataDir,
		cmd:     config.command(),
	}
}

// start creates a new gandercoind process and writes its pid in a file
// reserved for recording the pid of the launched process.  The process
// persists until stopped via stop, so a failing test must still call it.
func (n *node) start() error {
	if err := n.cmd.Start(); err != nil {
		return err
	}

	pid, err := os.Create(filepath.Join(n.dataDir, "gandercoind.pid"))
	if err != nil {
		return err
	}

	n.pidFile = pid.Name()
	if _, err = fmt.Fprintf(pid, "%d\n", n.cmd.Process.Pid); err != nil {
		return err
	}

	return pid.Close()
}

// stop interrupts the running process and waits until it exits.  On
// windows, interrupt is not supported, so a kill signal is used instead.
func (n *node) stop() error {
	if n.cmd == nil || n.cmd.Process == nil {
		return nil
	}
	defer n.cmd.Wait()
	if runtime.GOOS == "windows" {
		return n.cmd.Process.Signal(os.Kill)
	}
	return n.cmd.Process.Signal(os.Interrupt)
}

// shutdown terminates the running process and removes its pid file.
func (n *node) shutdown() error {
	if err := n.stop(); err != nil {
		return err
	}
	if n.pidFile != "" {
		if err := os.Remove(n.pidFile); err != nil {
			log.Warnf("Unable to remove file %s: %v", n.pidFile, err)
		}
	}
	return nil
}
