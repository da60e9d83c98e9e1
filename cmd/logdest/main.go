// Command logdest listens on a local port and logs every request it
// receives. Point the bundler's remaps at it to see the outbound requests.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/akamensky/argparse"
	"github.com/sirupsen/logrus"

	"github.com/andesco/bundler/handlers"
	"github.com/andesco/bundler/pkg/logging"
)

func main() {
	parser := argparse.NewParser("logdest", "Logs and acknowledges every request it receives")

	address := parser.String("a", "address", &argparse.Options{
		Required: false,
		Default:  "127.0.0.1",
		Help:     "Address to listen on",
	})
	port := parser.Int("p", "port", &argparse.Options{
		Required: false,
		Default:  9009,
		Help:     "Port to listen on",
	})

	if err := parser.Parse(os.Args); err != nil {
		fmt.Print(parser.Usage(err))
		os.Exit(1)
	}

	cfg := logging.DefaultConfig()
	cfg.AllowInfoFile = false
	cfg.AllowErrFile = false
	log, closer, err := logging.New(cfg, os.Stdout, false)
	if err != nil {
		logrus.WithError(err).Fatal("failed to set up logging")
	}
	defer closer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := handlers.NewEchoApp(log)
	go func() {
		<-ctx.Done()
		_ = app.Shutdown()
	}()

	listen := net.JoinHostPort(*address, strconv.Itoa(*port))
	log.WithField("address", listen).Info("logdest listening")
	if err := app.Listen(listen); err != nil {
		log.WithError(err).Error("logdest stopped")
	}
}
