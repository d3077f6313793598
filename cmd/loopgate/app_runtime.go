package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"

	"github.com/loopgate/loopgate/internal/config"
	"github.com/loopgate/loopgate/internal/dispatch"
	"github.com/loopgate/loopgate/internal/hostsfile"
	"github.com/loopgate/loopgate/internal/lifecycle"
	"github.com/loopgate/loopgate/internal/metrics"
	"github.com/loopgate/loopgate/internal/netutil"
	"github.com/loopgate/loopgate/internal/provision"
	"github.com/loopgate/loopgate/internal/region"
	"github.com/loopgate/loopgate/internal/relay"
	"github.com/loopgate/loopgate/internal/state"
)

type loopgateApp struct {
	fileCfg *config.File
	envCfg  *config.EnvConfig

	units      []*region.Unit
	redirector *hostsfile.Redirector
	guard      *hostsfile.Guard
	journal    *state.Journal
	pipeline   *provision.Pipeline
	metricsSrv *metrics.Server

	mu        sync.Mutex
	scheduler *provision.Scheduler
}

func run() error {
	fileCfg, err := loadConfig()
	if err != nil {
		return err
	}
	envCfg, err := config.LoadEnvConfig()
	if err != nil {
		return err
	}
	if fileCfg.Verbose {
		log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	}

	app := &loopgateApp{fileCfg: fileCfg, envCfg: envCfg}

	mx := metrics.New()
	if fileCfg.MetricsListen != "" {
		srv, err := metrics.StartServer(fileCfg.MetricsListen, mx)
		if err != nil {
			return err
		}
		app.metricsSrv = srv
	}

	// Inspection modules load once at startup; an unreadable directory is
	// fatal, a single bad module is not.
	var inspectors []dispatch.Inspector
	if fileCfg.ModuleDir != "" {
		inspectors, err = dispatch.LoadModules(fileCfg.ModuleDir)
		if err != nil {
			return err
		}
	}

	app.units = region.Resolve(fileCfg, region.DefaultRegistry())
	for _, u := range app.units {
		log.Printf("[topology] region %s: bind %s, locator %v", u.Code, u.BindHost, u.Locator.URLs())
	}

	app.journal, err = state.Open(envCfg.StateDir)
	if err != nil {
		return err
	}
	if err := app.recoverJournal(); err != nil {
		return err
	}

	// Apply-before-listen, deliberately: a failed redirection means the
	// proxy cannot be reached under the names clients resolve, so starting
	// listeners would be useless.
	if err := app.applyHostsOverrides(); err != nil {
		return err
	}

	app.pipeline = &provision.Pipeline{
		Engine:              dispatch.NewBridge(envCfg.DialTimeout, inspectors),
		Metrics:             mx,
		Downloader:          netutil.NewDirectDownloader(envCfg.FetchTimeout, envCfg.UserAgent),
		RosterCacheTTL:      envCfg.RosterCacheTTL,
		DialTimeout:         envCfg.DialTimeout,
		MaxConnsPerListener: envCfg.MaxConnsPerListener,
	}

	provCtx, provCancel := context.WithCancel(context.Background())
	coordinator := app.buildCoordinator(provCancel)
	coordinator.ForceExitAfter = envCfg.ShutdownTimeout
	coordinator.Arm(lifecycle.Signals())

	app.pipeline.ProvisionAll(provCtx, app.units)
	log.Println("Provisioning complete")

	if fileCfg.RefreshSchedule != "" {
		scheduler, err := provision.NewScheduler(app.pipeline, app.units, fileCfg.RefreshSchedule)
		if err != nil {
			coordinator.Shutdown("invalid refresh schedule")
			return fmt.Errorf("config: refreshSchedule: %w", err)
		}
		// A signal during provisioning may have already run the teardown
		// steps; do not start a scheduler nobody will stop.
		select {
		case <-coordinator.Done():
			scheduler.Stop()
		default:
			app.mu.Lock()
			app.scheduler = scheduler
			app.mu.Unlock()
			scheduler.Start()
		}
	}

	log.Println("loopgate running; press Ctrl-C to stop")
	<-coordinator.Done()
	if coordinator.Failed() {
		return errors.New("shutdown completed with errors")
	}
	return nil
}

// loadConfig loads the config file and merges command-line flags over it.
func loadConfig() (*config.File, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, err
	}
	if flagNoHostsEdit {
		cfg.NoHostsEdit = true
	}
	if flagHostsPath != "" {
		cfg.HostsPath = flagHostsPath
	}
	if flagMetricsListen != "" {
		cfg.MetricsListen = flagMetricsListen
	}
	if flagVerbose {
		cfg.Verbose = true
	}
	if cfg.HostsPath == "" {
		cfg.HostsPath = hostsfile.DefaultPath()
	}
	return cfg, nil
}

// recoverJournal rolls back overrides journaled by a previous run that
// exited without reverting. Runs before this run's apply so stale entries
// never mix with fresh ones.
func (a *loopgateApp) recoverJournal() error {
	pending, err := a.journal.Pending()
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		return nil
	}

	log.Printf("[hosts] found %d override(s) from an unclean previous run, restoring", len(pending))
	byPath := make(map[string][]hostsfile.Applied)
	for _, p := range pending {
		byPath[p.HostsPath] = append(byPath[p.HostsPath], p.Applied)
	}
	for path, applied := range byPath {
		if err := hostsfile.RevertApplied(path, applied); err != nil {
			return fmt.Errorf("restore previous run's overrides: %w", err)
		}
	}
	return a.journal.Clear()
}

func (a *loopgateApp) applyHostsOverrides() error {
	if a.fileCfg.NoHostsEdit {
		log.Println("[hosts] editing disabled, clients must resolve redirected names themselves")
		return nil
	}

	overrides := collectOverrides(a.units)
	if len(overrides) == 0 {
		log.Println("[hosts] no redirect names to apply")
		return nil
	}

	a.redirector = hostsfile.NewRedirector(a.fileCfg.HostsPath)
	applied, err := a.redirector.Apply(overrides, func(applied []hostsfile.Applied) error {
		return a.journal.Record(a.fileCfg.HostsPath, applied)
	})
	if err != nil {
		var werr *hostsfile.WriteError
		if errors.As(err, &werr) {
			fmt.Fprintln(os.Stderr, werr.Remediation())
		}
		return err
	}
	log.Printf("[hosts] applied %d override(s) to %s", len(applied), a.fileCfg.HostsPath)

	a.guard = hostsfile.NewGuard(a.redirector)
	a.guard.Start()
	return nil
}

// collectOverrides maps every unit's redirect names (game and auxiliary)
// to its bind host.
func collectOverrides(units []*region.Unit) []hostsfile.Override {
	var overrides []hostsfile.Override
	for _, u := range units {
		for _, name := range u.RedirectNames {
			overrides = append(overrides, hostsfile.Override{Name: name, Addr: u.BindHost})
		}
		if u.Aux != nil {
			overrides = append(overrides, hostsfile.Override{Name: u.Aux.Name, Addr: u.BindHost})
		}
	}
	return overrides
}

// buildCoordinator registers the shutdown steps in teardown order. All
// steps are armed before provisioning starts, so a trigger that fires
// mid-provisioning still closes everything opened so far.
func (a *loopgateApp) buildCoordinator(cancelProvision context.CancelFunc) *lifecycle.Coordinator {
	c := lifecycle.NewCoordinator()

	c.AddStep("cancel in-flight provisioning", func() error {
		cancelProvision()
		return nil
	})
	c.AddStep("stop refresh scheduler", func() error {
		a.mu.Lock()
		scheduler := a.scheduler
		a.mu.Unlock()
		if scheduler != nil {
			scheduler.Stop()
		}
		return nil
	})
	c.AddStep("stop hosts guard", func() error {
		if a.guard != nil {
			a.guard.Stop()
		}
		return nil
	})
	c.AddStep("close listeners", func() error {
		for _, u := range a.units {
			u.Listeners.Range(func(_ int, l *relay.Listener) bool {
				_ = l.Close()
				return true
			})
			if u.Passthrough != nil {
				_ = u.Passthrough.Close()
			}
		}
		return nil
	})
	c.AddStep("close directory clients", func() error {
		var errs []error
		for _, u := range a.units {
			if u.Client != nil {
				errs = append(errs, u.Client.Close())
			}
		}
		return errors.Join(errs...)
	})
	c.AddStep("revert hosts table", func() error {
		if a.redirector == nil {
			return nil
		}
		if err := a.redirector.Revert(); err != nil {
			return err
		}
		return a.journal.Clear()
	})
	c.AddStep("close journal", func() error {
		return a.journal.Close()
	})
	c.AddStep("stop metrics server", func() error {
		if a.metricsSrv == nil {
			return nil
		}
		return a.metricsSrv.Close()
	})
	return c
}
