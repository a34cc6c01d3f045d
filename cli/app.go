// Package cli implements repolex's command-line surface (spec.md
// section 6's "out of scope, external collaborator" layer): a
// verb-noun cobra command tree over the groups {repository, graph,
// export, query, system}, wired to the engine components through
// viper-driven configuration the way the teacher's cli/root.go wires
// its own server flags to viper, minus the HTTP server this domain has
// no use for.
package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/repolex-dev/repolex/common"
	"github.com/repolex-dev/repolex/config"
	"github.com/repolex-dev/repolex/export"
	"github.com/repolex-dev/repolex/forge"
	"github.com/repolex-dev/repolex/graphbuilder"
	"github.com/repolex-dev/repolex/graphmanager"
	"github.com/repolex-dev/repolex/metrics"
	"github.com/repolex-dev/repolex/rdfstore"
	"github.com/repolex-dev/repolex/repomanager"
	"github.com/repolex-dev/repolex/repostore"
	"github.com/repolex-dev/repolex/sourceparse"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// app bundles every engine dependency one CLI invocation needs. It is
// built once in the root command's PersistentPreRunE and torn down in
// PersistentPostRun.
type app struct {
	cfg *config.Config

	store     *rdfstore.BoltStore
	repoStore *repostore.Store

	repos  *repomanager.Manager
	graphs *graphmanager.Manager
	export *export.Exporter

	metrics *metrics.Collectors
	log     *common.ContextLogger

	requestID string
}

// newApp loads configuration from cfgPath (v already carrying any bound
// persistent flags) and wires every engine component against it.
func newApp(cfgPath string, v *viper.Viper) (*app, error) {
	cfg, err := config.Load(cfgPath, v)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(cfg.StorageRoot, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root %s: %w", cfg.StorageRoot, err)
	}

	storeDir := filepath.Join(cfg.StorageRoot, "store")
	if err := os.MkdirAll(storeDir, 0o755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}

	level, _ := logrus.ParseLevel(string(cfg.LogLevel))
	common.Logger.SetLevel(level)

	requestID := uuid.NewString()
	log := common.OperationLogger("repolex", "cli", requestID)

	store, err := rdfstore.Open(filepath.Join(storeDir, "triples.db"), logrus.NewEntry(common.Logger).WithField("request_id", requestID))
	if err != nil {
		return nil, err
	}

	repoStore, err := repostore.New(filepath.Join(cfg.StorageRoot, "repos"))
	if err != nil {
		store.Close()
		return nil, err
	}

	var forgeClient forge.Client
	if cfg.ForgeBaseURL != "" {
		gitea, err := forge.NewGiteaClient(cfg.ForgeBaseURL, cfg.AuthToken)
		if err != nil {
			store.Close()
			return nil, err
		}
		forgeClient = gitea
	}

	collectors := metrics.NewWithRegistry(prometheus.NewRegistry())
	store.SetMetrics(collectors)

	repos := repomanager.New(store, repoStore, forgeClient)
	repos.Metrics = collectors

	builder := graphbuilder.New(store, sourceparse.NewGoSourceParser(), nil)
	graphs := graphmanager.New(store, repoStore, builder)
	graphs.Metrics = collectors
	graphs.ParseOptions = sourceparse.Options{
		MaxFileSizeMB:        cfg.MaxFileSizeMB,
		MaxConcurrentParsers: cfg.MaxConcurrentParsers,
	}

	exporter := export.New(store, 0)

	return &app{
		cfg: cfg, store: store, repoStore: repoStore,
		repos: repos, graphs: graphs, export: exporter,
		metrics: collectors, log: log, requestID: requestID,
	}, nil
}

func (a *app) close() {
	if a.store != nil {
		a.store.Close()
	}
}
