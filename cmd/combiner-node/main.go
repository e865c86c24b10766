package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/zmlAEQ/threshold-combiner/internal/api"
	"github.com/zmlAEQ/threshold-combiner/internal/audit"
	"github.com/zmlAEQ/threshold-combiner/internal/combiner"
	"github.com/zmlAEQ/threshold-combiner/internal/config"
	"github.com/zmlAEQ/threshold-combiner/internal/monitoring"
	"github.com/zmlAEQ/threshold-combiner/internal/tbls"
	"github.com/zmlAEQ/threshold-combiner/pkg/bus"
	"github.com/zmlAEQ/threshold-combiner/pkg/lifecycle"
	"github.com/zmlAEQ/threshold-combiner/pkg/logger"
)

func main() {
	var (
		cfgPath      string
		apiAddr      string
		monAddr      string
		signersFlag  string
		fanoutMS     int
		auditWebhook string
		domainMode   bool
	)
	flag.StringVar(&cfgPath, "config", "combiner.yaml", "Path to the node configuration file")
	flag.StringVar(&apiAddr, "api", "", "Override the API listen address")
	flag.StringVar(&monAddr, "monitoring", "", "Override the monitoring listen address")
	flag.StringVar(&signersFlag, "signers", "", "Override the signer set (comma-separated index=url)")
	flag.IntVar(&fanoutMS, "fanout-timeout-ms", 0, "Override the fan-out timeout in milliseconds")
	flag.StringVar(&auditWebhook, "audit-webhook", "", "Override the audit webhook URL")
	flag.BoolVar(&domainMode, "domain-restricted", false, "Use the domain-restricted response validator")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Error(err.Error())
		os.Exit(1)
	}
	if apiAddr != "" {
		cfg.APIAddr = apiAddr
	}
	if cfg.APIAddr == "" {
		cfg.APIAddr = "127.0.0.1:4700"
	}
	if monAddr != "" {
		cfg.MonitoringAddr = monAddr
	}
	if cfg.MonitoringAddr == "" {
		cfg.MonitoringAddr = "127.0.0.1:4720"
	}
	if signersFlag != "" {
		signers, err := config.ParseSigners(signersFlag)
		if err != nil {
			logger.Error(err.Error())
			os.Exit(1)
		}
		cfg.Signers = signers
		if err := cfg.Validate(); err != nil {
			logger.Error(err.Error())
			os.Exit(1)
		}
	}
	if fanoutMS > 0 {
		cfg.FanoutTimeoutMS = fanoutMS
	}
	if auditWebhook != "" {
		cfg.AuditWebhook = auditWebhook
	}

	epoch, err := cfg.Epoch()
	if err != nil {
		logger.Error(err.Error())
		os.Exit(1)
	}

	b := bus.New(256)
	comb := combiner.New(epoch, tbls.NewScheme(), cfg.Endpoints())
	comb.SetClient(&http.Client{Timeout: 10 * time.Second})
	if cfg.FanoutTimeoutMS > 0 {
		comb.SetTimeout(time.Duration(cfg.FanoutTimeoutMS) * time.Millisecond)
	}
	if domainMode {
		comb.SetValidator(combiner.DomainSigValidator{})
	}
	comb.SetBus(b)

	m := lifecycle.New()
	m.Add(api.New(cfg.APIAddr, epoch, comb))
	m.Add(monitoring.New(cfg.MonitoringAddr))
	if cfg.AuditWebhook != "" {
		m.Add(audit.New(b.Subscribe(), audit.WebhookSink{URL: cfg.AuditWebhook}))
	}

	if err := m.StartAll(ctx); err != nil {
		logger.Error(err.Error())
		os.Exit(1)
	}
	<-ctx.Done()
	_ = m.StopAll(context.Background())
}
