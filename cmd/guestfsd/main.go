// Command guestfsd is the appliance daemon serving the library over its
// channel.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/criyle/go-guestfsd/actions"
	"github.com/criyle/go-guestfsd/channel"
	"github.com/criyle/go-guestfsd/chroot"
	"github.com/criyle/go-guestfsd/command"
	"github.com/criyle/go-guestfsd/config"
	"github.com/criyle/go-guestfsd/daemon"
	"github.com/criyle/go-guestfsd/sysroot"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"golang.org/x/sys/unix"
)

func init() {
	chroot.Init()
}

func main() {
	cmdline, err := config.ReadCmdline(config.DefaultCmdline)
	if err != nil {
		fmt.Fprintf(os.Stderr, "guestfsd: %s: %v\n", config.DefaultCmdline, err)
	}
	cfg, err := config.Load(os.Args[0], os.Args[1:], cmdline)
	if errors.Is(err, pflag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "guestfsd: %v\n", err)
		os.Exit(2)
	}

	logrus.SetOutput(os.Stderr)
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if cfg.Verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}
	log := logrus.WithField("subsystem", "guestfsd")

	if err := setup(cfg); err != nil {
		log.WithError(err).Fatal("process setup failed")
	}
	if err := run(cfg); err != nil {
		log.WithError(err).Fatal("daemon stopped")
	}
}

// setup prepares the process environment external commands inherit
func setup(cfg *config.Config) error {
	signal.Ignore(syscall.SIGPIPE)
	for _, kv := range []struct{ k, v string }{
		{"PATH", cfg.Env.Path},
		{"SHELL", cfg.Env.Shell},
		{"LC_ALL", cfg.Env.LCAll},
	} {
		if err := os.Setenv(kv.k, kv.v); err != nil {
			return err
		}
	}
	unix.Umask(0o022)
	return nil
}

func newDaemon(cfg *config.Config) *actions.Daemon {
	root := sysroot.New(cfg.Sysroot)
	exec := &command.Exec{
		CaptureLimit: cfg.CaptureLimit,
		Log:          logrus.WithField("subsystem", "command"),
	}
	return &actions.Daemon{
		Sysroot: root,
		Command: exec,
		Sandbox: &command.Sandbox{
			Sysroot: root,
			Runner:  exec,
			Log:     logrus.WithField("subsystem", "sandbox"),
		},
		Guest: &actions.ChrootGuest{
			Runner: &chroot.Runner{
				Seccomp: cfg.Seccomp,
				Log:     logrus.WithField("subsystem", "chroot"),
			},
			Sysroot: root,
		},
		Log: logrus.WithField("subsystem", "actions"),
	}
}

func run(cfg *config.Config) error {
	log := logrus.WithField("subsystem", "guestfsd")

	d := newDaemon(cfg)
	if err := d.RefreshMounted(); err != nil {
		log.WithError(err).Warn("cannot read the mount table")
	}

	ch, err := channel.Parse(cfg.Channel)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), unix.SIGTERM, unix.SIGINT)
	defer stop()

	conn, err := channel.Open(ctx, ch)
	if err != nil {
		return err
	}
	defer conn.Close()
	log.WithField("channel", ch).Debug("connected")

	s := &daemon.Server{
		Procedures:     d.Procedures(),
		Verbose:        cfg.Verbose,
		ProgressDelay:  cfg.Progress.Delay,
		ProgressPeriod: cfg.Progress.Period,
		Log:            logrus.WithField("subsystem", "daemon"),
	}
	// a blocked read only returns once the channel is closed
	go func() {
		<-ctx.Done()
		conn.Close()
	}()
	err = s.Serve(ctx, conn)
	if ctx.Err() != nil {
		log.Info("terminated by signal")
		return nil
	}
	return err
}
