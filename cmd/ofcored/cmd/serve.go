package cmd

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/flowbridge/ofcore/controller"
	"github.com/flowbridge/ofcore/hostrt"
)

func runServe(_ *cobra.Command, _ []string) error {
	hostrt.SetOutput(parseLogLevel(viper.GetString("log_level")))
	log := hostrt.GetLogger("ofcored")

	metrics := controller.NewMetrics(prometheus.DefaultRegisterer)

	metricsAddr := viper.GetString("metrics_addr")
	metricsSrv := &http.Server{Addr: metricsAddr, Handler: promhttp.Handler()}
	go func() {
		log.Infof("metrics listening on %s", metricsAddr)
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorf("metrics server: %s", err)
		}
	}()

	rt := hostrt.NewRuntime()
	registry := controller.NewRegistry()

	nexus := controller.NewBasicNexus()
	arbiter := controller.ArbiterFunc(func(c *controller.Connection) (controller.Nexus, bool) {
		return nexus, true
	})

	cfg := controller.Config{
		Name:    viper.GetString("name"),
		Address: viper.GetString("address"),
		Port:    viper.GetInt("port"),
		PcapDir: viper.GetString("pcap_dir"),
	}

	srv, err := registry.Launch(cfg, arbiter, rt, metrics)
	if err != nil {
		return err
	}
	if srv == nil {
		log.Errorf("launch: component name %q is already in use, exiting", cfg.Name)
		return nil
	}

	rt.GoingUp()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	serveDone := make(chan error, 1)
	go func() { serveDone <- srv.ListenAndServe(ctx) }()

	log.Infof("%s is running, press Ctrl+C to stop", srv.Name)

	select {
	case <-sig:
		signal.Stop(sig)
		log.Infof("shutdown signal received")
		rt.GoingDown()
		cancel()
		<-serveDone
	case err := <-serveDone:
		if err != nil {
			log.Errorf("listener exited: %s", err)
		}
	}

	return metricsSrv.Close()
}
