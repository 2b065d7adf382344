// Copyright 2022 bnb-chain. All Rights Reserved.
//
// Distributed under MIT license.
// See file LICENSE for detail or copy at https://opensource.org/licenses/MIT

package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

var (
	dataDirFlag = cli.StringFlag{
		Name:  "datadir",
		Usage: "leveldb directory holding nodes and roots",
		Value: "smtdata",
	}
	cacheFlag = cli.IntFlag{
		Name:  "cache",
		Usage: "leveldb cache size in megabytes",
		Value: defaultCacheSize(),
	}
	handlesFlag = cli.IntFlag{
		Name:  "handles",
		Usage: "number of open files leveldb may keep",
		Value: 256,
	}
	redisAddrFlag = cli.StringFlag{
		Name:  "redis.addr",
		Usage: "store the tree in the redis server at this address instead of leveldb",
	}
	redisEmbeddedFlag = cli.BoolFlag{
		Name:  "redis.embedded",
		Usage: "store the tree in an in-process redis server that lives as long as the command",
	}
	verbosityFlag = cli.IntFlag{
		Name:  "verbosity",
		Usage: "log level: 0=crit, 1=error, 2=warn, 3=info, 4=debug, 5=trace",
		Value: 3,
	}
	metricsAddrFlag = cli.StringFlag{
		Name:  "metrics.addr",
		Usage: "serve prometheus metrics on this address",
	}
	atVersionFlag = cli.Uint64Flag{
		Name:  "at",
		Usage: "read the root recorded for this version instead of the latest",
	}
	retainFlag = cli.IntFlag{
		Name:  "retain",
		Usage: "number of latest versions whose nodes survive collection",
		Value: 1,
	}
	auditRetainFlag = cli.IntFlag{
		Name:  "retain",
		Usage: "audit only the latest N versions, as left by gc --retain N",
	}
	workersFlag = cli.IntFlag{
		Name:  "workers",
		Usage: "number of goroutines marking reachable nodes",
		Value: 4,
	}
)

var commands = []*cli.Command{
	&PutCmd,
	&GetCmd,
	&DeleteCmd,
	&ProofCmd,
	&RootsCmd,
	&StatsCmd,
	&CheckCmd,
	&GCCmd,
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "smt",
		Usage: "inspect and maintain a versioned sparse Merkle tree",
		Flags: []cli.Flag{
			&dataDirFlag,
			&cacheFlag,
			&handlesFlag,
			&redisAddrFlag,
			&redisEmbeddedFlag,
			&verbosityFlag,
			&metricsAddrFlag,
		},
		Before:   setup,
		Commands: commands,
	}
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
