package main

import (
	"net/http"
	"os"

	"github.com/alicebob/miniredis/v2"
	"github.com/ethereum/go-ethereum/log"
	"github.com/pbnjay/memory"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"

	wrappedLevelDB "github.com/bnb-chain/cbor-smt/database/leveldb"
	wrappedRedis "github.com/bnb-chain/cbor-smt/database/redis"
	"github.com/bnb-chain/cbor-smt/metrics"
	"github.com/bnb-chain/cbor-smt/metrics/prometheus"
	"github.com/bnb-chain/cbor-smt/storage"
)

const (
	nodesNamespace = "nodes"
	rootsNamespace = "roots"
)

// collector is set once the metrics endpoint is up.
var collector metrics.Metrics

// defaultCacheSize takes 1/64 of system memory, between 16MB and 1GB.
func defaultCacheSize() int {
	mb := int(memory.TotalMemory() / 1024 / 1024 / 64)
	switch {
	case mb < 16:
		return 16
	case mb > 1024:
		return 1024
	}
	return mb
}

func setup(ctx *cli.Context) error {
	log.Root().SetHandler(log.LvlFilterHandler(
		log.Lvl(ctx.Int(verbosityFlag.Name)),
		log.StreamHandler(os.Stderr, log.TerminalFormat(true)),
	))

	addr := ctx.String(metricsAddrFlag.Name)
	if addr == "" || collector != nil {
		return nil
	}
	collector = prometheus.NewCollector()
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Error("Metrics server stopped", "addr", addr, "err", err)
		}
	}()
	log.Info("Serving metrics", "addr", addr)
	return nil
}

// openRepository opens the engine selected by the global flags. The returned
// function closes everything that was opened.
func openRepository(ctx *cli.Context) (*storage.Repository, func(), error) {
	var opts []storage.Option
	if collector != nil {
		opts = append(opts, storage.EnableMetrics(collector))
	}

	switch {
	case ctx.Bool(redisEmbeddedFlag.Name):
		server, err := miniredis.Run()
		if err != nil {
			return nil, nil, errors.Wrap(err, "start embedded redis")
		}
		log.Warn("Using an embedded redis server, nothing outlives this command", "addr", server.Addr())
		repo, closeDB, err := openRedis(server.Addr(), opts)
		if err != nil {
			server.Close()
			return nil, nil, err
		}
		return repo, func() { closeDB(); server.Close() }, nil

	case ctx.String(redisAddrFlag.Name) != "":
		return openRedis(ctx.String(redisAddrFlag.Name), opts)
	}

	dir := ctx.String(dataDirFlag.Name)
	db, err := wrappedLevelDB.New(dir, ctx.Int(cacheFlag.Name), ctx.Int(handlesFlag.Name), false)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "open leveldb at %s", dir)
	}
	repo, err := storage.NewRepository(
		wrappedLevelDB.WrapWithNamespace(db, nodesNamespace),
		wrappedLevelDB.WrapWithNamespace(db, rootsNamespace),
		opts...,
	)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	log.Debug("Opened leveldb", "dir", dir, "cache", ctx.Int(cacheFlag.Name))
	return repo, func() {
		if err := db.Close(); err != nil {
			log.Error("Failed to close leveldb", "err", err)
		}
	}, nil
}

func openRedis(addr string, opts []storage.Option) (*storage.Repository, func(), error) {
	db, err := wrappedRedis.New(wrappedRedis.DefaultConfig(addr))
	if err != nil {
		return nil, nil, errors.Wrapf(err, "connect redis at %s", addr)
	}
	repo, err := storage.NewRepository(
		wrappedRedis.WrapWithNamespace(db, nodesNamespace),
		wrappedRedis.WrapWithNamespace(db, rootsNamespace),
		opts...,
	)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	return repo, func() {
		if err := db.Close(); err != nil {
			log.Error("Failed to close redis", "err", err)
		}
	}, nil
}
