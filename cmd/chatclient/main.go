// Copyright 2026 nbchat contributors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Command chatclient is an interactive, non-GUI chat client: it logs in
// with a username, reads lines from stdin and sends them as chat messages,
// and prints every message it receives.
//
// Grounded on rust_chat_client/src/lib.rs's run_app — the username prompt,
// the "send whatever's typed" loop, and the println-each-received-message
// behavior — translated from its single-threaded blocking read_line into a
// goroutine feeding a channel, so stdin never blocks the receive side
// (application/mod.rs's eframe/egui GUI chain is out of scope and is not
// ported).
package main

import (
	"bufio"
	"fmt"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	"github.com/nbchat/chatmux/chatclient"
)

var VERSION = "SELFBUILD"

// tickInterval bounds how long a line typed at the prompt waits before it's
// actually sent, and how stale a received message can be before it prints.
const tickInterval = 20 * time.Millisecond

func main() {
	app := cli.NewApp()
	app.Name = "chatclient"
	app.Usage = "interactive chat client"
	app.Version = VERSION
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "addr",
			Value: "127.0.0.1:8787",
			Usage: "server address to connect to",
		},
		cli.StringFlag{
			Name:  "username",
			Usage: "nickname to log in with (prompted if omitted)",
		},
		cli.StringFlag{
			Name:  "log-level",
			Value: "warn",
			Usage: "panic, fatal, error, warn, info, or debug",
		},
	}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		logrus.WithError(err).Fatal("chatclient: exiting")
	}
}

func run(c *cli.Context) error {
	log := logrus.StandardLogger()
	level, err := logrus.ParseLevel(c.String("log-level"))
	if err != nil {
		return errors.Wrap(err, "parse log-level")
	}
	log.SetLevel(level)

	stdin := bufio.NewScanner(os.Stdin)

	username := c.String("username")
	if username == "" {
		fmt.Print("Enter nickname: ")
		if !stdin.Scan() {
			return errors.New("no nickname given")
		}
		username = stdin.Text()
	}

	addr := c.String("addr")
	client, err := chatclient.Dial(addr, username, log)
	if err != nil {
		return errors.Wrapf(err, "connect to %s", addr)
	}
	fmt.Printf("Connected to %s as %s. Type a message and press enter.\n", addr, username)

	lines := make(chan string)
	go func() {
		defer close(lines)
		for stdin.Scan() {
			lines <- stdin.Text()
		}
	}()

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			client.Say(line)
		case <-ticker.C:
		}

		for _, msg := range client.Tick() {
			fmt.Printf("%s: %s\n", msg.Username, msg.Text)
		}
		if !client.Connected() {
			return errors.Wrap(client.CloseErr(), "disconnected")
		}
	}
}
