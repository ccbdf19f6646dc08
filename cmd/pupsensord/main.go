package main

//go-build: CGO_ENABLED=0

import (
	"context"
	"flag"
	"log"

	"github.com/golang/glog"

	"github.com/robotalks/pupsensor/pkg/api"
	"github.com/robotalks/pupsensor/pkg/config"
	"github.com/robotalks/pupsensor/pkg/framework"
	"github.com/robotalks/pupsensor/pkg/link"
	"github.com/robotalks/pupsensor/pkg/publish/mqtt"
	"github.com/robotalks/pupsensor/pkg/serial"
)

func init() {
	config.SetupFlags()
}

func logEvent(ctx context.Context, evt link.Event) {
	glog.Infof("event: %s", evt)
}

func main() {
	flag.Parse()

	conf := config.NewConfig()
	if err := conf.Validate(true); err != nil {
		log.Fatalln(err)
	}
	dev, err := conf.LoadDevice()
	if err != nil {
		log.Fatalln(err)
	}
	port, err := serial.Open(&conf.Serial)
	if err != nil {
		log.Fatalf("open %s: %v", conf.Serial.Device, err)
	}
	l := link.New(port, dev)
	if l.Tx, l.Rx, err = serial.Pins(port, &conf.Serial, l.Timing); err != nil {
		log.Fatalln(err)
	}
	events := (&link.EventMux{}).Add(link.HandleEventFunc(logEvent))
	l.Handler = events

	runner := framework.NewRunner().HandleSignals()
	if conf.MQTTBrokerURL != "" {
		pub, err := mqtt.NewPublisher(conf.MQTTBrokerURL, conf.ID, dev)
		if err != nil {
			log.Fatalf("create MQTT publisher error: %v", err)
		}
		events.Add(pub)
		l.Notifier = pub
		runner.Go(pub)
	}
	if conf.HTTPAddr != "" {
		srv := api.NewServer(conf.HTTPAddr, dev, l)
		events.Add(srv)
		runner.Go(srv)
	}
	runner.Go(serial.NewPump(port, l), framework.NamedRun("link", l))
	if err := runner.Wait(); err != nil {
		log.Fatalln(err)
	}
}
