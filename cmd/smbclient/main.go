package main

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mjwhitta/cli"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/term"

	"github.com/ineffectivecoder/gosmbclient/pkg/auth"
	"github.com/ineffectivecoder/gosmbclient/pkg/config"
	"github.com/ineffectivecoder/gosmbclient/pkg/debug"
	"github.com/ineffectivecoder/gosmbclient/pkg/metrics"
	promsmb "github.com/ineffectivecoder/gosmbclient/pkg/metrics/prometheus"
	"github.com/ineffectivecoder/gosmbclient/pkg/smbclient"
)

// Version info
const Version = "0.2.0"

// Global state
var (
	verbose       bool
	client        *smbclient.SMBClient
	currentTree   *smbclient.TreeAccessor
	currentPath   string
	currentUser   string
	currentDomain string
	queue         *smbclient.TransferQueue
	knownShares   []string
	stdout        io.Writer = os.Stdout
)

func main() {
	var (
		configPath  string
		target      string
		port        int
		username    string
		password    string
		hash        string
		domain      string
		share       string
		socks5      string
		execCmd     string
		logLevel    string
		metricsAddr string
		anonymous   bool
	)

	cli.Align = true
	cli.Banner = "smbclient [OPTIONS]"
	cli.Info(fmt.Sprintf("SMB2/3 file client with an interactive shell (v%s)", Version))

	cli.Flag(&configPath, "c", "config", "", "Config file (default: "+config.DefaultPath()+")")
	cli.Flag(&target, "t", "target", "", "Target server IP/hostname")
	cli.Flag(&port, "P", "port", 0, "Target port (default 445)")
	cli.Flag(&username, "u", "user", "", "Username")
	cli.Flag(&domain, "d", "domain", "", "Domain name")
	cli.Flag(&password, "p", "password", "", "Password")
	cli.Flag(&hash, "H", "hash", "", "NT hash (32 hex chars)")
	cli.Flag(&anonymous, "a", "anonymous", false, "Anonymous logon")
	cli.Flag(&share, "s", "share", "", "Share to connect after logon")
	cli.Flag(&socks5, "socks5", "", "SOCKS5 proxy (e.g., 127.0.0.1:1080 or user:pass@host:port)")
	cli.Flag(&execCmd, "x", "exec", "", "Execute command(s) and exit (semicolon separated)")
	cli.Flag(&logLevel, "l", "log-level", "", "Log level: none, error, notice, info, debug")
	cli.Flag(&metricsAddr, "metrics", "", "Serve Prometheus metrics on this address")
	cli.Flag(&verbose, "v", "verbose", false, "Verbose output")

	cli.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		error_("Failed to load config: %v", err)
		os.Exit(1)
	}
	applyFlags(cfg, target, port, username, domain, password, share, socks5, logLevel, metricsAddr)
	if verbose {
		cfg.Logging.Level = "debug"
	}
	if err := config.Validate(cfg); err != nil {
		error_("Invalid configuration: %v", err)
		os.Exit(1)
	}
	if err := debug.SetLevel(cfg.Logging.Level); err != nil {
		error_("%v", err)
		os.Exit(1)
	}

	if cfg.Server.Host == "" {
		error_("Missing target (-t)")
		cli.Usage(1)
	}

	creds := auth.Credentials{
		Username:    cfg.Auth.Username,
		Password:    cfg.Auth.Password,
		Domain:      cfg.Auth.Domain,
		Workstation: cfg.Auth.Workstation,
	}
	switch {
	case anonymous:
		creds = auth.Credentials{}
	case hash != "":
		creds.NTHash = parseHash(hash)
		creds.Password = ""
	case creds.Password == "":
		if creds.Username == "" {
			error_("Missing credentials (-u) or anonymous logon (-a)")
			cli.Usage(1)
		}
		creds.Password = promptPassword()
	}

	opts, err := cfg.ClientOptions()
	if err != nil {
		error_("%v", err)
		os.Exit(1)
	}
	if cfg.Metrics.Enabled {
		opts.Connection.Metrics = serveMetrics(cfg.Metrics.Listen)
	}
	if cfg.Server.Socks5 != "" {
		info_("Using SOCKS5 proxy: %s", cfg.Server.Socks5)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()

	client = smbclient.New(cfg.Address(), opts)
	client.OnDisconnect(func(err error) {
		warn_("Connection lost: %v", err)
	})

	currentUser = creds.Username
	currentDomain = creds.Domain
	if creds.IsAnonymous() {
		info_("Connecting to %s anonymously...", cfg.Address())
	} else {
		info_("Connecting to %s as %s\\%s...", cfg.Address(), creds.Domain, creds.Username)
	}
	if err := client.Login(ctx, creds); err != nil {
		error_("Logon failed: %s", describe(err))
		os.Exit(1)
	}
	sess := client.Session()
	success_("Authenticated! Dialect: %s", sess.Dialect())
	if sess.IsGuest() {
		warn_("Logged on as guest")
	}

	queue = smbclient.NewTransferQueue(cfg.Transfer.QueueDepth)

	if cfg.Server.Share != "" {
		executeCommand(ctx, "use", []string{cfg.Server.Share})
	}

	if execCmd != "" {
		for _, cmd := range strings.Split(execCmd, ";") {
			args := parseArgs(strings.TrimSpace(cmd))
			if len(args) == 0 {
				continue
			}
			if !executeCommand(ctx, strings.ToLower(args[0]), args[1:]) {
				break
			}
		}
	} else {
		runShell(ctx)
	}

	queue.Close()
	if client.IsConnected() {
		releaseTree(ctx)
		if err := client.Logoff(ctx); err != nil && !errors.Is(err, smbclient.ErrNotLoggedIn) {
			debug_("Logoff: %v", err)
		}
	}
}

// applyFlags overrides config values with the ones given on the command line.
func applyFlags(cfg *config.Config, target string, port int, username, domain, password, share, socks5, level, metricsAddr string) {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&cfg.Server.Host, target)
	set(&cfg.Server.Share, share)
	set(&cfg.Server.Socks5, socks5)
	set(&cfg.Auth.Username, username)
	set(&cfg.Auth.Domain, domain)
	set(&cfg.Auth.Password, password)
	set(&cfg.Logging.Level, level)
	if port != 0 {
		cfg.Server.Port = port
	}
	if metricsAddr != "" {
		cfg.Metrics.Enabled = true
		cfg.Metrics.Listen = metricsAddr
	}
	if cfg.Server.Socks5 != "" && !strings.HasPrefix(cfg.Server.Socks5, "socks5://") {
		cfg.Server.Socks5 = "socks5://" + cfg.Server.Socks5
	}
}

// serveMetrics exposes a fresh registry on addr and returns the recorder
// the connection reports into.
func serveMetrics(addr string) metrics.Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			error_("Metrics server: %v", err)
		}
	}()
	info_("Serving metrics on http://%s/metrics", addr)
	return promsmb.New(reg)
}

// waitQueue blocks until queued transfers have finished.
func waitQueue() {
	if queue == nil {
		return
	}
	if n := queue.Pending(); n > 0 {
		info_("Waiting for %d queued transfer(s)...", n)
	}
	done, err := queue.Submit(func() error { return nil })
	if err != nil {
		return
	}
	<-done
}

func promptPassword() string {
	fmt.Print("Password: ")
	passBytes, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		error_("Failed to read password: %v", err)
		os.Exit(1)
	}
	return string(passBytes)
}

// parseHash accepts an NT hash or an LM:NT pair.
func parseHash(hash string) []byte {
	hash = strings.TrimSpace(hash)
	if i := strings.IndexByte(hash, ':'); i >= 0 {
		hash = hash[i+1:]
	}
	b, err := hex.DecodeString(hash)
	if err != nil || len(b) != 16 {
		error_("Invalid hash (expected 32 hex chars)")
		os.Exit(1)
	}
	return b
}
