// Copyright 2026 nbchat contributors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Command chatserver runs the chat server multiplexer.
//
// Grounded on xtaci-kcptun's client/server main.go for the urfave/cli
// flag-table-plus-Action shape and docker-compose/containerd's use of
// logrus field-based logging.
package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	"github.com/nbchat/chatmux/chatserver"
)

// VERSION is injected by build flags.
var VERSION = "SELFBUILD"

func main() {
	app := cli.NewApp()
	app.Name = "chatserver"
	app.Usage = "multi-user chat server"
	app.Version = VERSION
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "addr",
			Value: "127.0.0.1:8787",
			Usage: "address to listen on",
		},
		cli.StringFlag{
			Name:  "log-level",
			Value: "info",
			Usage: "panic, fatal, error, warn, info, or debug",
		},
	}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		logrus.WithError(err).Fatal("chatserver: exiting")
	}
}

func run(c *cli.Context) error {
	log := logrus.StandardLogger()
	level, err := logrus.ParseLevel(c.String("log-level"))
	if err != nil {
		return errors.Wrap(err, "parse log-level")
	}
	log.SetLevel(level)

	addr := c.String("addr")
	srv, err := chatserver.New(addr, log)
	if err != nil {
		return errors.Wrapf(err, "bind %s", addr)
	}
	defer srv.Close()

	log.WithField("addr", srv.Addr()).Info("chatserver: listening")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	done := make(chan error, 1)
	go func() { done <- srv.Run() }()

	select {
	case err := <-done:
		return errors.Wrap(err, "serve")
	case s := <-sig:
		log.WithField("signal", s).Info("chatserver: shutting down")
		return srv.Close()
	}
}
