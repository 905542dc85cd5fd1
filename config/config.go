// Package config holds the daemon configuration. Values are merged from the
// built-in defaults, an optional YAML file, the kernel command line and the
// command line flags, each source overriding the one before it.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultChannel is the virtio-serial port created by the library
	DefaultChannel = "/dev/virtio-ports/org.libguestfs.channel.0"

	// DefaultSysroot is where the guest root is mounted
	DefaultSysroot = "/sysroot"

	// DefaultCmdline is the kernel command line of the appliance
	DefaultCmdline = "/proc/cmdline"
)

// Config is the daemon configuration
type Config struct {
	// Channel is the transport to the library, see channel.Parse
	Channel string `yaml:"channel"`

	// Sysroot is the mount point of the guest root
	Sysroot string `yaml:"sysroot"`

	// Verbose enables debug logging and per call timing
	Verbose bool `yaml:"verbose"`

	// Foreground keeps the daemon attached to its terminal. The daemon
	// never forks itself, the flag is kept for command line compatibility.
	Foreground bool `yaml:"foreground"`

	Progress Progress `yaml:"progress"`

	// CaptureLimit bounds the captured stdout and stderr of each command
	CaptureLimit int64 `yaml:"capture_limit"`

	// Seccomp installs a filter in chroot children that denies leaving the
	// guest root
	Seccomp bool `yaml:"seccomp"`

	Env Env `yaml:"env"`
}

// Progress configures progress notifications
type Progress struct {
	// Delay is the quiet time after a call starts
	Delay time.Duration `yaml:"delay"`
	// Period is the minimum interval between two notifications
	Period time.Duration `yaml:"period"`
}

// Env is the environment external commands run with
type Env struct {
	Path  string `yaml:"path"`
	Shell string `yaml:"shell"`
	LCAll string `yaml:"lc_all"`
}

// Environ returns the environment as KEY=value pairs
func (e Env) Environ() []string {
	return []string{
		"PATH=" + e.Path,
		"SHELL=" + e.Shell,
		"LC_ALL=" + e.LCAll,
	}
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Channel: DefaultChannel,
		Sysroot: DefaultSysroot,
		Progress: Progress{
			Delay:  2 * time.Second,
			Period: 333 * time.Millisecond,
		},
		CaptureLimit: 4 << 20,
		Env: Env{
			Path:  "/usr/bin:/bin",
			Shell: "/bin/sh",
			LCAll: "C",
		},
	}
}

// LoadFile reads the YAML file at path over the defaults
func LoadFile(path string) (*Config, error) {
	c := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return c, nil
}

// ApplyCmdline applies the guestfs options of a kernel command line
func (c *Config) ApplyCmdline(cmdline string) {
	for _, opt := range strings.Fields(cmdline) {
		key, value, _ := strings.Cut(opt, "=")
		switch key {
		case "guestfs_verbose":
			c.Verbose = value == "1"
		case "guestfs_channel":
			if value != "" {
				c.Channel = value
			}
		case "guestfs":
			if _, _, err := net.SplitHostPort(value); err == nil {
				c.Channel = "tcp://" + value
			}
		}
	}
}

// Validate reports the first invalid value
func (c *Config) Validate() error {
	switch {
	case c.Channel == "":
		return errors.New("config: channel is empty")
	case !filepath.IsAbs(c.Sysroot):
		return fmt.Errorf("config: sysroot %q is not absolute", c.Sysroot)
	case c.Progress.Delay < 0:
		return errors.New("config: progress delay is negative")
	case c.Progress.Period <= 0:
		return errors.New("config: progress period must be positive")
	case c.CaptureLimit <= 0:
		return errors.New("config: capture limit must be positive")
	}
	return nil
}

// Load builds the configuration of a daemon started with args. cmdline is
// the content of the kernel command line.
func Load(name string, args []string, cmdline string) (*Config, error) {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	var (
		configFile = fs.String("config", "", "YAML configuration file")
		channel    = fs.String("channel", "", "channel to the library (path, tcp://host:port, unix://path or vsock://cid:port)")
		host       = fs.String("host", "", "legacy TCP host of the library")
		port       = fs.StringP("port", "p", "", "legacy TCP port of the library")
		sysroot    = fs.String("sysroot", "", "mount point of the guest root")
		verbose    = fs.BoolP("verbose", "v", false, "verbose messages")
		foreground = fs.BoolP("foreground", "f", false, "stay in the foreground")
		seccomp    = fs.Bool("seccomp", false, "confine chroot children with seccomp")
	)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected argument %q", fs.Arg(0))
	}

	c := Default()
	if *configFile != "" {
		var err error
		if c, err = LoadFile(*configFile); err != nil {
			return nil, err
		}
	}

	c.ApplyCmdline(cmdline)

	switch {
	case fs.Changed("channel"):
		c.Channel = *channel
	case fs.Changed("host") || fs.Changed("port"):
		if *host == "" || *port == "" {
			return nil, errors.New("--host and --port must be given together")
		}
		c.Channel = "tcp://" + net.JoinHostPort(*host, *port)
	}

	if fs.Changed("sysroot") {
		c.Sysroot = *sysroot
	}
	if fs.Changed("verbose") {
		c.Verbose = *verbose
	}
	if fs.Changed("foreground") {
		c.Foreground = *foreground
	}
	if fs.Changed("seccomp") {
		c.Seccomp = *seccomp
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// ReadCmdline returns the kernel command line at path, empty if it does not
// exist
func ReadCmdline(path string) (string, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return string(b), nil
}
