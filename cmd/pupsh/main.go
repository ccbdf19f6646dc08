package main

//go-build: CGO_ENABLED=0

import (
	"flag"
	"log"

	"github.com/robotalks/pupsensor/pkg/cli/sh"
	"github.com/robotalks/pupsensor/pkg/config"
	"github.com/robotalks/pupsensor/pkg/framework"
	"github.com/robotalks/pupsensor/pkg/hub"
	"github.com/robotalks/pupsensor/pkg/link"
	"github.com/robotalks/pupsensor/pkg/serial"

	hubcmds "github.com/robotalks/pupsensor/pkg/cli/cmds/hub"
)

var (
	simulate bool
	hubSpeed int
)

func init() {
	config.SetupFlags()
	flag.BoolVar(&simulate, "sim", simulate, "Pair with a simulated hub instead of a serial port.")
	flag.IntVar(&hubSpeed, "sim-speed", hubSpeed, "Speed requested by the simulated hub, 0 keeps 2400.")
}

func main() {
	flag.Parse()

	conf := config.NewConfig()
	if err := conf.Validate(!simulate); err != nil {
		log.Fatalln(err)
	}
	dev, err := conf.LoadDevice()
	if err != nil {
		log.Fatalln(err)
	}

	runner := framework.NewRunner()

	var l *link.Link
	var peer *hub.Peer
	if simulate {
		lb := hub.NewLoopback(nil)
		lb.Peer.Speed = hubSpeed
		l = link.New(lb, dev)
		lb.DeviceRx = l.Receive
		peer = lb.Peer
		runner.Go(framework.NamedRun("hub", peer))
	} else {
		port, err := serial.Open(&conf.Serial)
		if err != nil {
			log.Fatalf("open %s: %v", conf.Serial.Device, err)
		}
		l = link.New(port, dev)
		if l.Tx, l.Rx, err = serial.Pins(port, &conf.Serial, l.Timing); err != nil {
			log.Fatalln(err)
		}
		runner.Go(serial.NewPump(port, l))
	}
	runner.Go(framework.NamedRun("link", l))

	s := sh.New(dev, l)
	if peer != nil {
		hubcmds.Attach(s, peer)
	}
	s.Run(flag.Args()...)

	runner.Stop()
	if err := runner.Wait(); err != nil {
		log.Fatalln(err)
	}
}
