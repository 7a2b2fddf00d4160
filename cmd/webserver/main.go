package main

import (
	"flag"
	"strconv"

	"github.com/johnietre/webserver"
	"github.com/sirupsen/logrus"
)

func main() {
	flag.Parse()

	port := uint64(8080)
	if arg := flag.Arg(0); arg != "" {
		var err error
		port, err = strconv.ParseUint(arg, 10, 16)
		if err != nil {
			logrus.WithField("arg", arg).Fatal("invalid port number")
		}
	}

	srvr := webserver.New(uint16(port))
	if err := srvr.Listen(); err != nil {
		logrus.WithField("err", err).Fatal("failed to start server")
	}
	logrus.WithField("port", port).Info("server started")
	if err := srvr.Serve(); err != nil {
		logrus.WithField("err", err).Fatal("server stopped")
	}
}
