// Command rcon sends commands to digest-seed RCON servers.
//
// Servers are read from a TOML file (see -config) or given ad hoc with -host and -port. The
// password can be provided via:
//   - -password flag (least secure, visible in process list)
//   - password or password_env in the config file
//   - RCON_PASSWORD environment variable
//   - stdin prompt (if none of the above is set)
//
// Usage:
//
//	rcon [flags] [command...]
//
// With a command, it is sent once and the response printed. Without one, commands are read line
// by line from stdin until EOF or "exit".
//
// Examples:
//
//	rcon -host 127.0.0.1 -port 27015 status
//	rcon -config servers.toml -server lobby
//	rcon -config servers.toml -all "say restarting in 5 minutes"
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	rcon "github.com/schultz-is/digest-rcon"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

type options struct {
	configPath string
	server     string
	host       string
	port       int
	password   string
	bufferSize int
	all        bool
	timeout    time.Duration
	logLevel   string
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("rcon", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var opts options
	fs.StringVar(&opts.configPath, "config", "", "Path to a TOML file describing servers")
	fs.StringVar(&opts.server, "server", "", "Server name from the config file (default: the file's default)")
	fs.StringVar(&opts.host, "host", "", "Server hostname, overrides -server")
	fs.IntVar(&opts.port, "port", 0, "Server port, used with -host")
	fs.StringVar(&opts.password, "password", "", "Password (use "+EnvPassword+" env var instead)")
	fs.IntVar(&opts.bufferSize, "buffer-size", 0, "Read buffer size in bytes (default 256)")
	fs.BoolVar(&opts.all, "all", false, "Send the command to every configured server concurrently")
	fs.DurationVar(&opts.timeout, "timeout", 0, "Per command timeout, 0 to wait indefinitely")
	fs.StringVar(&opts.logLevel, "loglevel", "", "Log level: debug, info, warn, error (empty = no logging)")

	if err := fs.Parse(args); err != nil {
		return 2
	}

	bufferSizeSet := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "buffer-size" {
			bufferSizeSet = true
		}
	})
	if bufferSizeSet && opts.bufferSize <= 0 {
		fmt.Fprintln(stderr, "Error:", &rcon.ConfigError{
			Field:  "buffer size",
			Reason: fmt.Sprintf("must be a positive integer, got %d", opts.bufferSize),
		})
		return 2
	}

	logger, err := newLogger(opts.logLevel, stderr)
	if err != nil {
		fmt.Fprintln(stderr, "Error:", err)
		return 2
	}

	servers, err := selectServers(opts)
	if err != nil {
		fmt.Fprintln(stderr, "Error:", err)
		return 2
	}

	command := strings.Join(fs.Args(), " ")
	if opts.all && command == "" {
		fmt.Fprintln(stderr, "Error: -all requires a command")
		return 2
	}

	in := bufio.NewReader(stdin)
	for i := range servers {
		servers[i].Logger = logger
		if opts.bufferSize > 0 {
			servers[i].BufferSize = opts.bufferSize
		}
		switch {
		case opts.password != "":
			servers[i].Password = opts.password
		case servers[i].Password == "":
			servers[i].Password = promptPassword(servers[i].Name, stdin, in, stderr)
		}
	}

	ctx := context.Background()
	if opts.all {
		return broadcast(ctx, servers, command, opts.timeout, stdout, stderr)
	}

	s, err := rcon.Connect(ctx, servers[0].Config)
	if err != nil {
		fmt.Fprintln(stderr, "Error:", err)
		return 1
	}
	defer s.Close()

	if command != "" {
		resp, err := send(ctx, s, command, opts.timeout)
		if err != nil {
			fmt.Fprintln(stderr, "Error:", err)
			return 1
		}
		fmt.Fprintln(stdout, resp)
		return 0
	}

	return interactive(ctx, s, in, opts.timeout, stdout, stderr)
}

// selectServers returns the servers a run targets: an ad hoc server from -host, every configured
// server for -all, or the one chosen by -server or the file's default.
func selectServers(opts options) ([]serverConfig, error) {
	if opts.host != "" {
		sc := serverConfig{Name: opts.host, Config: rcon.Config{Host: opts.host, Port: opts.port}}
		if err := sc.Validate(); err != nil {
			return nil, err
		}
		return []serverConfig{sc}, nil
	}

	if opts.configPath == "" {
		return nil, errors.New("-host or -config is required")
	}
	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return nil, err
	}
	if len(cfg.Servers) == 0 {
		return nil, fmt.Errorf("no servers defined in %s", opts.configPath)
	}

	if opts.all {
		return cfg.Servers, nil
	}

	name := opts.server
	if name == "" {
		name = cfg.Default
	}
	if name == "" {
		return cfg.Servers[:1], nil
	}
	sc, ok := cfg.lookup(name)
	if !ok {
		return nil, fmt.Errorf("server %q is not defined in %s", name, opts.configPath)
	}
	return []serverConfig{sc}, nil
}

// promptPassword gets the password from the environment, or by prompting.
func promptPassword(server string, stdin io.Reader, in *bufio.Reader, stderr io.Writer) string {
	if envPass := os.Getenv(EnvPassword); envPass != "" {
		return envPass
	}

	fmt.Fprintf(stderr, "Password for %s: ", server)

	if f, ok := stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		passBytes, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(stderr)
		if err != nil {
			return ""
		}
		return string(passBytes)
	}

	// Not a terminal (piped input): read line
	line, err := in.ReadString('\n')
	if err != nil && line == "" {
		return ""
	}
	return strings.TrimRight(line, "\r\n")
}

func send(ctx context.Context, s *rcon.Session, command string, timeout time.Duration) (string, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return s.Send(ctx, command)
}

// interactive sends each line of in as a command until EOF, "exit", or "quit".
func interactive(ctx context.Context, s *rcon.Session, in io.Reader, timeout time.Duration, stdout, stderr io.Writer) int {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "exit", "quit":
			return 0
		}

		resp, err := send(ctx, s, line, timeout)
		if err != nil {
			fmt.Fprintln(stderr, "Error:", err)
			return 1
		}
		fmt.Fprintln(stdout, resp)
	}
	if err := scanner.Err(); err != nil {
		fmt.Fprintln(stderr, "Error:", err)
		return 1
	}
	return 0
}

// broadcast sends command to every server over independent sessions and prints the results in
// config order.
func broadcast(ctx context.Context, servers []serverConfig, command string, timeout time.Duration, stdout, stderr io.Writer) int {
	type result struct {
		resp string
		err  error
	}
	results := make([]result, len(servers))

	var g errgroup.Group
	for i, sc := range servers {
		i, sc := i, sc
		g.Go(func() error {
			s, err := rcon.Connect(ctx, sc.Config)
			if err != nil {
				results[i].err = err
				return nil
			}
			defer s.Close()

			results[i].resp, results[i].err = send(ctx, s, command, timeout)
			return nil
		})
	}
	_ = g.Wait()

	code := 0
	for i, r := range results {
		if r.err != nil {
			fmt.Fprintf(stderr, "[%s] Error: %s\n", servers[i].Name, r.err)
			code = 1
			continue
		}
		fmt.Fprintf(stdout, "[%s] %s\n", servers[i].Name, r.resp)
	}
	return code
}

func newLogger(level string, w io.Writer) (*slog.Logger, error) {
	if level == "" {
		return nil, nil
	}

	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid -loglevel %q: %w", level, err)
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})), nil
}
