// Copyright (c) 2024 The Gandercoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"errors"
	"fmt"
	"net"
	"os"
	"os/user"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/rpcclient"
	flags "github.com/jessevdk/go-flags"

	"github.com/gandercoin/chainfixture/internal/log"
)

const (
	defaultConfigFilename = "fixturectl.conf"
	defaultLogFilename    = "fixturectl.log"
	defaultLogLevel       = "info"
)

var (
	nodeHomeDir        = btcutil.AppDataDir("gandercoin", false)
	fixturectlHomeDir  = btcutil.AppDataDir("fixturectl", false)
	defaultConfigFile  = filepath.Join(fixturectlHomeDir, defaultConfigFilename)
	defaultLogDir      = filepath.Join(fixturectlHomeDir, "logs")
	defaultRPCServer   = "localhost"
	defaultRPCCertFile = filepath.Join(nodeHomeDir, "rpc.cert")

	// errShowVersion is returned by loadConfig when the version flag was
	// given.  The caller prints the version and exits.
	errShowVersion = errors.New("version requested")
)

// config defines the configuration options for fixturectl.
//
// See loadConfig for details on the configuration load process.
type config struct {
	ShowVersion   bool   `short:"V" long:"version" description:"Display version information and exit"`
	ConfigFile    string `short:"C" long:"configfile" description:"Path to configuration file"`
	RPCUser       string `short:"u" long:"rpcuser" description:"RPC username"`
	RPCPassword   string `short:"P" long:"rpcpass" default-mask:"-" description:"RPC password"`
	RPCCookie     string `long:"rpccookie" description:"Path to the node's RPC cookie file, used when no username is set"`
	RPCServer     string `short:"s" long:"rpcserver" description:"RPC server to connect to"`
	RPCCert       string `short:"c" long:"rpccert" description:"RPC server certificate chain for validation"`
	NoTLS         bool   `long:"notls" description:"Disable TLS"`
	Proxy         string `long:"proxy" description:"Connect via SOCKS5 proxy (eg. 127.0.0.1:9050)"`
	ProxyUser     string `long:"proxyuser" description:"Username for proxy server"`
	ProxyPass     string `long:"proxypass" default-mask:"-" description:"Password for proxy server"`
	RegTest       bool   `long:"regtest" description:"Connect to the regression test network"`
	TestNet       bool   `long:"testnet" description:"Connect to testnet"`
	MiningAddress string `long:"miningaddr" description:"Address receiving the coinbase of generated blocks; a wallet address when unset"`
	DebugLevel    string `short:"d" long:"debuglevel" description:"Logging level for all subsystems {trace, debug, info, warn, error, critical} -- You may also specify <subsystem>=<level>,<subsystem2>=<level>,... to set the log level for individual subsystems -- Use show to list available subsystems"`
	LogDir        string `long:"logdir" description:"Directory to log output"`
}

// normalizeAddress returns addr with the passed default port appended if
// there is not already a port specified.
func normalizeAddress(addr string, useTestNet, useRegTest bool) string {
	_, _, err := net.SplitHostPort(addr)
	if err != nil {
		var defaultPort string
		switch {
		case useTestNet:
			defaultPort = "19332"
		case useRegTest:
			defaultPort = "19443"
		default:
			defaultPort = "9332"
		}

		return net.JoinHostPort(addr, defaultPort)
	}
	return addr
}

// cleanAndExpandPath expands environment variables and leading ~ in the
// passed path, cleans the result, and returns it.
func cleanAndExpandPath(path string) string {
	// NOTE: The os.ExpandEnv doesn't work with Windows cmd.exe-style
	// %VARIABLE%, but the variables can still be expanded via POSIX-style
	// $VARIABLE.
	path = os.ExpandEnv(path)

	if !strings.HasPrefix(path, "~") {
		return filepath.Clean(path)
	}

	// Expand initial ~ to the current user's home directory, or ~otheruser
	// to otheruser's home directory.  On Windows, both forward and backward
	// slashes can be used.
	path = path[1:]

	var pathSeparators string
	if runtime.GOOS == "windows" {
		pathSeparators = string(os.PathSeparator) + "/"
	} else {
		pathSeparators = string(os.PathSeparator)
	}

	userName := ""
	if i := strings.IndexAny(path, pathSeparators); i != -1 {
		userName = path[:i]
		path = path[i:]
	}

	homeDir := ""
	var u *user.User
	var err error
	if userName == "" {
		u, err = user.Current()
	} else {
		u, err = user.Lookup(userName)
	}
	if err == nil {
		homeDir = u.HomeDir
	}
	// Fallback to CWD if user lookup fails or user has no home directory.
	if homeDir == "" {
		homeDir = "."
	}

	return filepath.Join(homeDir, path)
}

// fileExists reports whether the named file or directory exists.
func fileExists(name string) bool {
	if _, err := os.Stat(name); err != nil {
		if os.IsNotExist(err) {
			return false
		}
	}
	return true
}

// parseAndSetDebugLevels attempts to parse the specified debug level and
// set the levels accordingly.  An appropriate error is returned if anything
// is invalid.
func parseAndSetDebugLevels(debugLevel string) error {
	// When the specified string doesn't have any delimiters, treat it as
	// the log level for all subsystems.
	if !strings.Contains(debugLevel, ",") && !strings.Contains(debugLevel, "=") {
		if !log.ValidLogLevel(debugLevel) {
			str := "the specified debug level [%v] is invalid"
			return fmt.Errorf(str, debugLevel)
		}
		log.SetLogLevels(debugLevel)
		return nil
	}

	// Split the specified string into subsystem/level pairs while
	// detecting issues and update the log levels accordingly.
	for _, logLevelPair := range strings.Split(debugLevel, ",") {
		if !strings.Contains(logLevelPair, "=") {
			str := "the specified debug level contains an invalid " +
				"subsystem/level pair [%v]"
			return fmt.Errorf(str, logLevelPair)
		}

		fields := strings.Split(logLevelPair, "=")
		subsysID, logLevel := fields[0], fields[1]

		if _, exists := log.SubsystemLoggers[subsysID]; !exists {
			str := "the specified subsystem [%v] is invalid -- " +
				"supported subsystems %v"
			return fmt.Errorf(str, subsysID, log.SupportedSubsystems())
		}

		if !log.ValidLogLevel(logLevel) {
			str := "the specified debug level [%v] is invalid"
			return fmt.Errorf(str, logLevel)
		}

		log.SetLogLevel(subsysID, logLevel)
	}

	return nil
}

// loadConfig initializes and parses the config using a config file and
// command line options.
//
// The configuration proceeds as follows:
//  1. Start with a default config with sane settings
//  2. Pre-parse the command line to check for an alternative config file
//  3. Load configuration file overwriting defaults with any specified options
//  4. Parse CLI options and overwrite/add any specified options
//
// The above results in functioning properly without any config settings
// while still allowing the user to override settings with config files and
// command line options.  Command line options always take precedence.  The
// arguments left after the options are returned as the command and its
// arguments.
func loadConfig(args []string) (*config, []string, error) {
	// Default config.
	cfg := config{
		ConfigFile: defaultConfigFile,
		RPCServer:  defaultRPCServer,
		RPCCert:    defaultRPCCertFile,
		DebugLevel: defaultLogLevel,
		LogDir:     defaultLogDir,
	}

	// Pre-parse the command line options to see if an alternative config
	// file or the version flag was specified.  Any errors aside from the
	// help message error can be ignored here since they will be caught by
	// the final parse below.
	preCfg := cfg
	preParser := flags.NewParser(&preCfg, flags.HelpFlag|flags.PassDoubleDash)
	preParser.Options |= flags.PassAfterNonOption
	_, err := preParser.ParseArgs(args)
	if err != nil {
		if e, ok := err.(*flags.Error); ok && e.Type == flags.ErrHelp {
			return nil, nil, err
		}
	}
	if preCfg.ShowVersion {
		return nil, nil, errShowVersion
	}

	if preCfg.ConfigFile == defaultConfigFile && !fileExists(defaultConfigFile) {
		err := createDefaultConfigFile(defaultConfigFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating a default config "+
				"file: %v\n", err)
		}
	}

	// Load additional config from file.
	parser := flags.NewParser(&cfg, flags.HelpFlag|flags.PassDoubleDash)
	parser.Options |= flags.PassAfterNonOption
	err = flags.NewIniParser(parser).ParseFile(preCfg.ConfigFile)
	if err != nil {
		if _, ok := err.(*os.PathError); !ok {
			return nil, nil, fmt.Errorf("error parsing config "+
				"file: %w", err)
		}
	}

	// Parse command line options again to ensure they take precedence.
	remainingArgs, err := parser.ParseArgs(args)
	if err != nil {
		return nil, nil, err
	}

	// Multiple networks can't be selected simultaneously.
	if cfg.TestNet && cfg.RegTest {
		return nil, nil, errors.New("loadConfig: the testnet and " +
			"regtest params can't be used together -- choose one " +
			"of the two")
	}

	// Special show command to list supported subsystems and exit.
	if cfg.DebugLevel == "show" {
		fmt.Println("Supported subsystems", log.SupportedSubsystems())
		os.Exit(0)
	}
	if err := parseAndSetDebugLevels(cfg.DebugLevel); err != nil {
		return nil, nil, fmt.Errorf("loadConfig: %w", err)
	}

	// Handle environment variable expansion in paths.
	cfg.RPCCert = cleanAndExpandPath(cfg.RPCCert)
	cfg.LogDir = cleanAndExpandPath(cfg.LogDir)
	if cfg.RPCCookie != "" {
		cfg.RPCCookie = cleanAndExpandPath(cfg.RPCCookie)
	}

	// Add default port to RPC server based on --testnet and --regtest
	// flags if needed.
	cfg.RPCServer = normalizeAddress(cfg.RPCServer, cfg.TestNet,
		cfg.RegTest)

	return &cfg, remainingArgs, nil
}

// rpcConnConfig returns the connection settings for the node described by
// cfg.  The node is spoken to with HTTP POST requests.
func (cfg *config) rpcConnConfig() (*rpcclient.ConnConfig, error) {
	connCfg := &rpcclient.ConnConfig{
		Host:         cfg.RPCServer,
		User:         cfg.RPCUser,
		Pass:         cfg.RPCPassword,
		DisableTLS:   cfg.NoTLS,
		HTTPPostMode: true,
		Proxy:        cfg.Proxy,
		ProxyUser:    cfg.ProxyUser,
		ProxyPass:    cfg.ProxyPass,
	}
	if cfg.RPCUser == "" {
		connCfg.CookiePath = cfg.RPCCookie
	}
	if !cfg.NoTLS {
		certs, err := os.ReadFile(cfg.RPCCert)
		if err != nil {
			return nil, err
		}
		connCfg.Certificates = certs
	}
	return connCfg, nil
}

// createDefaultConfigFile creates a basic config file at the given
// destination path.  For this it tries to read the node's config file at
// its default path, and extract the RPC user and password from it.
func createDefaultConfigFile(destinationPath string) error {
	// Nothing to do when there is no existing node conf file at the
	// default path to extract the details from.
	nodeConfigPath := filepath.Join(nodeHomeDir, "gandercoin.conf")
	if !fileExists(nodeConfigPath) {
		return nil
	}
	content, err := os.ReadFile(nodeConfigPath)
	if err != nil {
		return err
	}

	userSubmatches := rpcUserRegexp.FindSubmatch(content)
	if userSubmatches == nil {
		return nil
	}
	passSubmatches := rpcPassRegexp.FindSubmatch(content)
	if passSubmatches == nil {
		return nil
	}

	err = os.MkdirAll(filepath.Dir(destinationPath), 0700)
	if err != nil {
		return err
	}
	dest, err := os.OpenFile(destinationPath,
		os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer dest.Close()

	_, err = fmt.Fprintf(dest, "rpcuser=%s\nrpcpass=%s\n",
		userSubmatches[1], passSubmatches[1])
	return err
}

// The node's config file names the password rpcpassword.
var (
	rpcUserRegexp = regexp.MustCompile(`(?m)^\s*rpcuser=([^\s]+)`)
	rpcPassRegexp = regexp.MustCompile(`(?m)^\s*rpcpassword=([^\s]+)`)
)
