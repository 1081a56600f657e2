package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/fermlab/fermentd/cmd/app"
	modbusact "github.com/fermlab/fermentd/internal/actuators/modbus"
	"github.com/fermlab/fermentd/internal/batch"
	httpctrl "github.com/fermlab/fermentd/internal/controllers/http"
	mqttctrl "github.com/fermlab/fermentd/internal/controllers/mqtt"
	"github.com/fermlab/fermentd/internal/store"
)

type runnable interface {
	Run(ctx context.Context) error
}

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "config.yaml", "path to config file (.yaml/.yml/.json)")
	flag.Parse()

	cfg, err := app.LoadConfig(configPath)
	if err != nil {
		log.Fatal(err)
	}
	logger := cfg.Logger()

	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		log.Fatal(err)
	}
	defer st.Close()

	reg, err := batch.NewRegistry(st, cfg.Settings(), logger)
	if err != nil {
		log.Fatal(err)
	}

	switches := make(map[string]*modbusact.Switch, len(cfg.Actuators))
	for id, ac := range cfg.Actuators {
		sw, err := modbusact.New(ac.Modbus(), logger)
		if err != nil {
			log.Fatalf("actuator %s: %v", id, err)
		}
		defer sw.Close()
		switches[id] = sw
	}
	lookup := func(id string) batch.ActuatorSwitch {
		if sw, ok := switches[id]; ok {
			return sw
		}
		return nil
	}

	var runners []runnable
	var publisher batch.DecisionPublisher

	if cfg.Controllers.MQTT.Enabled {
		mq, err := mqttctrl.New(reg, cfg.MQTT(), logger)
		if err != nil {
			log.Fatal(err)
		}
		publisher = mq
		runners = append(runners, mq)
	}
	if cfg.Controllers.HTTP.Enabled {
		runners = append(runners, httpctrl.New(reg, reg, cfg.Controllers.HTTP.Addr))
	}
	runners = append(runners, batch.NewRunner(reg, cfg.Control.Interval, lookup, publisher, logger))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger.Info("fermentd starting",
		"http", cfg.Controllers.HTTP.Enabled,
		"mqtt", cfg.Controllers.MQTT.Enabled,
		"actuators", len(switches),
		"store", cfg.Store.Path,
	)

	var wg sync.WaitGroup
	for _, r := range runners {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := r.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("component exited", "err", err)
				cancel()
			}
		}()
	}
	wg.Wait()
	logger.Info("fermentd stopped")
}
