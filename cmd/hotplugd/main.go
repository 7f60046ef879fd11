/*
Copyright 2025 The llm-d Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"context"
	"errors"
	"flag"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
	"k8s.io/utils/clock"
	ctrl "sigs.k8s.io/controller-runtime"
	ctrlmetrics "sigs.k8s.io/controller-runtime/pkg/metrics"

	"github.com/llm-d/llm-d-cpu-hotplug/internal/actuator"
	"github.com/llm-d/llm-d-cpu-hotplug/internal/collector"
	"github.com/llm-d/llm-d-cpu-hotplug/internal/config"
	"github.com/llm-d/llm-d-cpu-hotplug/internal/controller"
	"github.com/llm-d/llm-d-cpu-hotplug/internal/engines/oracle"
	"github.com/llm-d/llm-d-cpu-hotplug/internal/logging"
	"github.com/llm-d/llm-d-cpu-hotplug/internal/metrics"
	pkgconfig "github.com/llm-d/llm-d-cpu-hotplug/pkg/config"
)

const shutdownTimeout = 5 * time.Second

var setupLog = ctrl.Log.WithName("setup")

func main() {
	if err := run(); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			os.Exit(0)
		}
		setupLog.Error(err, "hotplugd failed")
		os.Exit(1)
	}
}

func run() error {
	fs := config.NewFlagSet("hotplugd")
	logOpts := &logging.Options{}
	zapFlags := flag.NewFlagSet("zap", flag.ContinueOnError)
	logOpts.BindFlags(zapFlags)
	fs.AddGoFlagSet(zapFlags)

	opts, err := config.Load(fs, os.Args[1:])
	if err != nil {
		return err
	}
	ctrl.SetLogger(logging.NewLogger(logOpts))
	log := setupLog.WithValues("instance", opts.InstanceID)

	provider, err := actuator.NewSysfsProvider(opts.SysfsRoot)
	if err != nil {
		return err
	}
	online, err := provider.Online()
	if err != nil {
		return err
	}
	log.Info("Discovered cores", "possible", provider.Possible().String(), "online", online.String())

	table, err := pkgconfig.LoadThresholdTable(opts.ThresholdFile)
	if err != nil {
		return err
	}
	strategy, err := oracle.ParseStrategy(opts.OracleStrategy)
	if err != nil {
		return err
	}
	o, err := oracle.NewOracle(strategy, oracle.Config{
		Table:    table,
		Possible: provider.Possible(),
		Online:   online,
		Clock:    clock.RealClock{},
		URL:      opts.RemoteURL,
		Timeout:  opts.RemoteTimeout,
	})
	if err != nil {
		return err
	}

	emitter, err := metrics.NewEmitter(ctrlmetrics.Registry, opts.InstanceID)
	if err != nil {
		return err
	}
	engine, err := controller.NewEngine(controller.EngineOptions{
		InstanceID: opts.InstanceID,
		Provider:   provider,
		Oracle:     o,
		OracleName: strategy.String(),
		Source:     collector.NewProcLoadSource(opts.ProcRoot, opts.LoadSmoothing),
		Config:     opts.Engine,
		Enabled:    opts.Enabled,
		Metrics:    emitter,
	})
	if err != nil {
		return err
	}
	if err := metrics.RegisterCollectors(ctrlmetrics.Registry, engine.LatencyReader(), engine, opts.InstanceID, ctrl.Log.WithName("metrics")); err != nil {
		return err
	}

	ctx := ctrl.LoggerInto(ctrl.SetupSignalHandler(), ctrl.Log.WithValues("instance", opts.InstanceID))
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return engine.Start(gCtx)
	})

	if opts.AdminAddr != "" {
		srv := &http.Server{
			Addr:              opts.AdminAddr,
			Handler:           controller.NewAdminHandler(engine, ctrlmetrics.Registry),
			ReadHeaderTimeout: shutdownTimeout,
			BaseContext:       func(_ net.Listener) context.Context { return gCtx },
		}
		g.Go(func() error {
			log.Info("Serving admin API", "addr", opts.AdminAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gCtx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	log.Info("Starting hotplugd",
		"oracle", strategy.String(),
		"enabled", opts.Enabled,
		"config", opts.Engine)
	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("hotplugd stopped")
	return nil
}
