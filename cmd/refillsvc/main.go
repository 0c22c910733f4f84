// Copyright 2018 The klaytn Authors
// This file is part of the klaytn library.
//
// The klaytn library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The klaytn library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the klaytn library. If not, see <http://www.gnu.org/licenses/>.
//
// This file is derived from cmd/kcn/main.go (2018/06/04).
// Modified and improved for the refill automation service.

package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gopkg.in/urfave/cli.v1"

	"net/http"

	"github.com/groundx/refillsvc/admission"
	"github.com/groundx/refillsvc/alert"
	"github.com/groundx/refillsvc/catalog"
	"github.com/groundx/refillsvc/cmd/utils"
	"github.com/groundx/refillsvc/config"
	"github.com/groundx/refillsvc/envelope"
	"github.com/groundx/refillsvc/health"
	"github.com/groundx/refillsvc/httpapi"
	"github.com/groundx/refillsvc/log"
	"github.com/groundx/refillsvc/monitor"
	"github.com/groundx/refillsvc/node"
	"github.com/groundx/refillsvc/orchestrator"
	"github.com/groundx/refillsvc/provider"
	"github.com/groundx/refillsvc/query"
)

var logger = log.NewModuleLogger(log.CMDRefillsvc)

// gitCommit is set by the release build's -ldflags.
var gitCommit = "dev"

var (
	configFileFlag = cli.StringFlag{
		Name:  "config",
		Usage: "path to the service's TOML configuration file",
		Value: "refillsvc.toml",
	}
	secretsFileFlag = cli.StringFlag{
		Name:  "secrets",
		Usage: "path to the TOML file holding database and provider credentials",
		Value: "secrets.toml",
	}
	metricsPortFlag = cli.IntFlag{
		Name:  "metrics-port",
		Usage: "port to serve /metrics on (0 disables)",
		Value: 9090,
	}
)

func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "refillsvc"
	app.Usage = "Hot wallet refill automation service"
	app.Version = gitCommit
	app.Flags = []cli.Flag{configFileFlag, secretsFileFlag, metricsPortFlag}
	app.Action = run
	sort.Sort(cli.FlagsByName(app.Flags))
	return app
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		utils.Fatalf("%v", err)
	}
}

func run(ctx *cli.Context) error {
	cfg, err := config.Load(ctx.String(configFileFlag.Name))
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	secrets, err := config.LoadSecrets(ctx.String(secretsFileFlag.Name))
	if err != nil {
		return fmt.Errorf("loading secrets: %w", err)
	}

	store, err := catalog.Open(secrets.ChainDB.DSN())
	if err != nil {
		return fmt.Errorf("opening chain database: %w", err)
	}
	defer store.Close()

	registry, err := buildProviderRegistry(cfg, secrets, store)
	if err != nil {
		return fmt.Errorf("initializing provider registry: %w", err)
	}

	env, err := buildEnvelope(cfg)
	if err != nil {
		return fmt.Errorf("configuring signed envelope: %w", err)
	}

	admissionPipeline := admission.New(store, registry)
	orch := orchestrator.New(store)
	querySurface := query.New(store)
	healthChecker := health.New(store, gitCommit)

	server := httpapi.New(fmt.Sprintf(":%d", cfg.ServerPort), env, admissionPipeline, orch, querySurface, healthChecker)

	stack := node.New()
	stack.Register(server)

	var mon *monitor.Monitor
	if cfg.CronEnabled {
		var notifier monitor.Notifier
		if cfg.SlackWebhookURL != "" {
			notifier = alert.NewSlackNotifier(cfg.SlackWebhookURL)
		}
		mon = monitor.New(monitor.Config{
			Interval:       cfg.CronInterval(),
			AlertThreshold: cfg.AlertThreshold(),
		}, store, registry, notifier)
		stack.Register(mon)
		registerMetrics(ctx.Int(metricsPortFlag.Name), mon)
	}

	utils.StartNode(stack)
	stack.Wait()
	return nil
}

// buildProviderRegistry instantiates exactly one client per distinct
// provider name referenced by any active asset (§4.2), drawing credentials
// for that name from the secrets file.
func buildProviderRegistry(cfg config.Config, secrets config.Secrets, store *catalog.Store) (*provider.Registry, error) {
	active, err := store.GetActiveProviderNames()
	if err != nil {
		return nil, fmt.Errorf("loading active provider names: %w", err)
	}

	var clients []provider.Provider
	for _, name := range active {
		creds, ok := secrets.ProviderCredentials[name]
		if !ok {
			return nil, fmt.Errorf("no credentials configured for active provider %q", name)
		}

		var client provider.Provider
		switch name {
		case provider.Liminal:
			client = provider.NewLiminalClient(cfg.Providers[provider.Liminal]["api_base_url"])
		case provider.Fireblocks:
			client = provider.NewFireblocksClient(cfg.Providers[provider.Fireblocks]["api_base_url"])
		default:
			return nil, fmt.Errorf("active asset references unsupported provider %q", name)
		}

		if err := client.Init(creds); err != nil {
			return nil, err
		}
		clients = append(clients, client)
	}

	return provider.NewRegistry(clients...), nil
}

func buildEnvelope(cfg config.Config) (*envelope.Envelope, error) {
	if !cfg.AuthEnabled {
		return envelope.New(false, nil, nil, cfg.JWTMaxLifetime()), nil
	}

	pub, err := envelope.ParsePublicKey(cfg.AuthPublicKey)
	if err != nil {
		return nil, fmt.Errorf("parsing auth public key: %w", err)
	}
	priv, err := envelope.ParsePrivateKey(cfg.CallbackPrivateKey)
	if err != nil {
		return nil, fmt.Errorf("parsing callback private key: %w", err)
	}
	return envelope.New(true, pub, priv, cfg.JWTMaxLifetime()), nil
}

func registerMetrics(port int, mon *monitor.Monitor) {
	if port == 0 {
		return
	}
	registry := prometheus.NewRegistry()
	for _, c := range mon.Collectors() {
		registry.MustRegister(c)
	}
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		if err := http.ListenAndServe(fmt.Sprintf(":%d", port), mux); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server stopped unexpectedly", "err", err)
		}
	}()
}
