// Copyright (c) 2024 The Gandercoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package rpctest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/rpcclient"

	"github.com/gandercoin/chainfixture/chainctl"
	"github.com/gandercoin/chainfixture/poll"
)

const (
	// DefaultMaxConnectionRetries is the default number of times we re-try
	// to connect to the node after starting it.
	DefaultMaxConnectionRetries = 40

	// DefaultConnectionRetryTimeout is the default duration we wait
	// between two connection attempts.  The wait grows linearly with the
	// attempt number.
	DefaultConnectionRetryTimeout = 50 * time.Millisecond

	// walletName is the wallet created in every harness node.
	walletName = "fixture"
)

var (
	// testInstances tracks all active harnesses so TearDownAll can stop
	// them after a panic or failed test.
	testInstances = make(map[string]*Harness)

	// harnessStateMtx protects testInstances.
	harnessStateMtx sync.Mutex
)

// Harness fully encapsulates a running gandercoind regtest process and an
// RPCController connected to it.  The harness handles the initialization
// and teardown of the process along with any temporary directories created
// for it.  Several harnesses may run at the same time.
type Harness struct {
	// ActiveNet is the parameters of the blockchain the harness node
	// runs.  It is always the regression test network.
	ActiveNet *chaincfg.Params

	// MaxConnRetries is the maximum number of times we re-try to connect
	// to the node after starting it.
	MaxConnRetries int

	// ConnectionRetryTimeout is the base duration we wait between two
	// connection attempts.
	ConnectionRetryTimeout time.Duration

	// Controller drives the node.  It is set by SetUp.
	Controller *chainctl.RPCController

	node        *node
	ports       []int
	testNodeDir string
}

// New creates and initializes a new harness.  extraArgs are appended to the
// node's command line.  If customExePath is empty, the node binary is taken
// from the GANDERCOIND environment variable or PATH.
//
// NOTE: This function is safe for concurrent access.
func New(extraArgs []string, customExePath string) (*Harness, error) {
	testDir, err := baseDir()
	if err != nil {
		return nil, err
	}
	nodeTestData, err := os.MkdirTemp(testDir, "rpc-node")
	if err != nil {
		return nil, err
	}

	config, err := newConfig(nodeTestData, extraArgs, customExePath)
	if err != nil {
		os.RemoveAll(nodeTestData)
		return nil, err
	}

	h := &Harness{
		ActiveNet:              &chaincfg.RegressionNetParams,
		MaxConnRetries:         DefaultMaxConnectionRetries,
		ConnectionRetryTimeout: DefaultConnectionRetryTimeout,
		testNodeDir:            nodeTestData,
	}
	for _, port := range []*int{&config.p2pPort, &config.rpcPort} {
		*port, err = ReservePort()
		if err != nil {
			h.releasePorts()
			os.RemoveAll(nodeTestData)
			return nil, err
		}
		h.ports = append(h.ports, *port)
	}
	h.node = newNode(config, nodeTestData)

	harnessStateMtx.Lock()
	testInstances[h.testNodeDir] = h
	harnessStateMtx.Unlock()

	return h, nil
}

// SetUp starts the node, connects the controller once the node answers
// and creates the harness wallet.
//
// NOTE: This method and TearDown should always be called from the same
// goroutine as they are not concurrent safe.
func (h *Harness) SetUp() error {
	log.Debugf("Starting %s %v", h.node.config.exe,
		h.node.config.arguments())
	if err := h.node.start(); err != nil {
		return fmt.Errorf("error starting node: %w", err)
	}

	rpcConf := h.node.config.rpcConnConfig()
	client, err := rpcclient.New(&rpcConf, nil)
	if err != nil {
		return fmt.Errorf("error creating RPC client: %w", err)
	}
	h.Controller = chainctl.WrapClient(client, nil)

	if err := h.waitForRPC(client); err != nil {
		return fmt.Errorf("error connecting RPC client: %w", err)
	}

	// The node needs a loaded wallet for every wallet call the fixtures
	// make.
	name, err := json.Marshal(walletName)
	if err != nil {
		return err
	}
	_, err = client.RawRequest("createwallet", []json.RawMessage{name})
	if err != nil {
		return fmt.Errorf("error creating wallet: %w", err)
	}
	return nil
}

// waitForRPC polls the node until it answers requests.  While the node is
// starting, connections are refused or answered with a warmup error.
func (h *Harness) waitForRPC(client *rpcclient.Client) error {
	var lastErr error
	attempt := 0
	res := poll.Until(h.MaxConnRetries, func() (bool, error) {
		_, err := client.GetBlockCount()
		if err == nil {
			return true, nil
		}
		if rpcErr, ok := err.(*btcjson.RPCError); ok &&
			rpcErr.Code != btcjson.ErrRPCInWarmup {

			return false, err
		}
		lastErr = err
		return false, nil
	}, func() error {
		attempt++
		time.Sleep(time.Duration(attempt) * h.ConnectionRetryTimeout)
		return nil
	})
	if res.Outcome == poll.TimedOut {
		return fmt.Errorf("connection timeout, tried %d times with "+
			"timeout %v, last err: %v: %w", h.MaxConnRetries,
			h.ConnectionRetryTimeout, lastErr, res.Err)
	}
	return res.Err
}

// tearDown stops the running node, releases its ports and removes its
// temporary directories.
//
// This function MUST be called with the harness state mutex held.
func (h *Harness) tearDown() error {
	if h.Controller != nil {
		h.Controller.Shutdown()
	}
	if err := h.node.shutdown(); err != nil {
		return err
	}
	h.releasePorts()
	if err := os.RemoveAll(h.testNodeDir); err != nil {
		return err
	}
	delete(testInstances, h.testNodeDir)
	return nil
}

// TearDown stops the running node.  The process is killed and its
// temporary directories removed.
//
// NOTE: This method and SetUp should always be called from the same
// goroutine as they are not concurrent safe.
func (h *Harness) TearDown() error {
	harnessStateMtx.Lock()
	defer harnessStateMtx.Unlock()

	return h.tearDown()
}

// TearDownAll tears down every active harness.
func TearDownAll() error {
	harnessStateMtx.Lock()
	defer harnessStateMtx.Unlock()
	for _, h := range testInstances {
		if err := h.tearDown(); err != nil {
			return err
		}
	}
	return nil
}

// RPCConfig returns the harness' rpc configuration, so tests can connect
// further clients to the node.
func (h *Harness) RPCConfig() rpcclient.ConnConfig {
	return h.node.config.rpcConnConfig()
}

func (h *Harness) releasePorts() {
	for _, port := range h.ports {
		if err := ReleasePort(port); err != nil {
			log.Warnf("Unable to release port %d: %v", port, err)
		}
	}
	h.ports = nil
}

// baseDir is the directory path of the temp directory for all rpctest
// files.
func baseDir() (string, error) {
	dirPath := filepath.Join(os.TempDir(), "chainfixture", "rpctest")
	err := os.MkdirAll(dirPath, 0755)
	return dirPath, err
}
