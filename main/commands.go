package main

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/log"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	bsmt "github.com/bnb-chain/cbor-smt"
	"github.com/bnb-chain/cbor-smt/storage"
)

var errEmptyTree = errors.New("refusing to delete the last key: an empty tree has no root to record")

var PutCmd = cli.Command{
	Action:    doPut,
	Name:      "put",
	Usage:     "store a value and record the new root as the next version",
	ArgsUsage: "<key> <value>",
}

var GetCmd = cli.Command{
	Action:    doGet,
	Name:      "get",
	Usage:     "print the value stored under a key",
	ArgsUsage: "<key>",
	Flags: []cli.Flag{
		&atVersionFlag,
	},
}

var DeleteCmd = cli.Command{
	Action:    doDelete,
	Name:      "delete",
	Usage:     "remove a key and record the new root as the next version",
	ArgsUsage: "<key>",
}

var ProofCmd = cli.Command{
	Action:    doProof,
	Name:      "proof",
	Usage:     "print and verify the inclusion or non-inclusion proof of a key",
	ArgsUsage: "<key>",
	Flags: []cli.Flag{
		&atVersionFlag,
	},
}

var RootsCmd = cli.Command{
	Action: doRoots,
	Name:   "roots",
	Usage:  "list every recorded version and its root",
}

var StatsCmd = cli.Command{
	Action: doStats,
	Name:   "stats",
	Usage:  "print the number and total size of stored nodes",
}

var CheckCmd = cli.Command{
	Action: doCheck,
	Name:   "check",
	Usage:  "audit roots and reference counts against the stored nodes",
	Flags: []cli.Flag{
		&auditRetainFlag,
	},
}

var GCCmd = cli.Command{
	Action: doGC,
	Name:   "gc",
	Usage:  "delete every node unreachable from the latest versions",
	Flags: []cli.Flag{
		&retainFlag,
		&workersFlag,
	},
}

// parseBytes reads 0x-prefixed arguments as hex and anything else as text.
func parseBytes(arg string) ([]byte, error) {
	if strings.HasPrefix(arg, "0x") || strings.HasPrefix(arg, "0X") {
		b, err := hexutil.Decode("0x" + arg[2:])
		if err != nil {
			return nil, errors.Wrapf(err, "decode %q", arg)
		}
		return b, nil
	}
	return []byte(arg), nil
}

func parseArgs(ctx *cli.Context, names ...string) ([][]byte, error) {
	if ctx.Args().Len() != len(names) {
		return nil, errors.Errorf("expected arguments %s", strings.Join(names, " "))
	}
	ret := make([][]byte, len(names))
	for i := range names {
		b, err := parseBytes(ctx.Args().Get(i))
		if err != nil {
			return nil, err
		}
		ret[i] = b
	}
	return ret, nil
}

// latestVersion returns 0 and no root for a fresh store.
func latestVersion(repo *storage.Repository) (bsmt.Version, *storage.RootHashKey, error) {
	version, root, err := repo.GetLatestRoot()
	if errors.Is(err, storage.ErrRootNotFound) {
		return 0, nil, nil
	}
	if err != nil {
		return 0, nil, err
	}
	return version, &root, nil
}

// mutate applies fn to the latest tree in one batch and records the result
// under the next version.
func mutate(ctx *cli.Context, fn func(tree *bsmt.Tree) error) error {
	repo, closeRepo, err := openRepository(ctx)
	if err != nil {
		return err
	}
	defer closeRepo()

	version, latest, err := latestVersion(repo)
	if err != nil {
		return err
	}
	batch := repo.CreateBatchContext()
	defer batch.Release()

	opts := []bsmt.Option{bsmt.WithEmptyCommitments(repo.EmptyCommitments())}
	if latest != nil {
		opts = append(opts, bsmt.WithRoot(latest.Hash()))
	}
	tree, err := bsmt.NewSparseMerkleTree(batch.NodeStore(true), opts...)
	if err != nil {
		return err
	}
	if err := fn(tree); err != nil {
		return err
	}
	root, ok := tree.Root()
	if !ok {
		return errEmptyTree
	}
	if err := batch.Commit(); err != nil {
		return err
	}
	next := version + 1
	if err := repo.PutRoot(next, storage.RootHashKeyFromHash(root)); err != nil {
		return err
	}
	log.Info("Recorded root", "version", next, "root", root)
	fmt.Fprintf(ctx.App.Writer, "%d %s\n", next, root)
	return nil
}

// readTree opens the tree recorded for --at, or the latest one.
func readTree(ctx *cli.Context, repo *storage.Repository) (*bsmt.Tree, error) {
	opts := []bsmt.Option{bsmt.WithEmptyCommitments(repo.EmptyCommitments())}
	if ctx.IsSet(atVersionFlag.Name) {
		root, err := repo.GetRootByVersion(bsmt.Version(ctx.Uint64(atVersionFlag.Name)))
		if err != nil {
			return nil, err
		}
		opts = append(opts, bsmt.WithRoot(root.Hash()))
	} else {
		_, latest, err := latestVersion(repo)
		if err != nil {
			return nil, err
		}
		if latest != nil {
			opts = append(opts, bsmt.WithRoot(latest.Hash()))
		}
	}
	return bsmt.NewSparseMerkleTree(repo.NodeStore(false), opts...)
}

func doPut(ctx *cli.Context) error {
	args, err := parseArgs(ctx, "<key>", "<value>")
	if err != nil {
		return err
	}
	return mutate(ctx, func(tree *bsmt.Tree) error {
		return tree.Put(args[0], args[1])
	})
}

func doDelete(ctx *cli.Context) error {
	args, err := parseArgs(ctx, "<key>")
	if err != nil {
		return err
	}
	return mutate(ctx, func(tree *bsmt.Tree) error {
		return tree.Delete(args[0])
	})
}

func doGet(ctx *cli.Context) error {
	args, err := parseArgs(ctx, "<key>")
	if err != nil {
		return err
	}
	repo, closeRepo, err := openRepository(ctx)
	if err != nil {
		return err
	}
	defer closeRepo()

	tree, err := readTree(ctx, repo)
	if err != nil {
		return err
	}
	value, found, err := tree.Get(args[0])
	if err != nil {
		return err
	}
	if !found {
		return errors.Errorf("key %s not found", hexutil.Encode(args[0]))
	}
	fmt.Fprintln(ctx.App.Writer, hexutil.Encode(value))
	return nil
}

func doProof(ctx *cli.Context) error {
	args, err := parseArgs(ctx, "<key>")
	if err != nil {
		return err
	}
	repo, closeRepo, err := openRepository(ctx)
	if err != nil {
		return err
	}
	defer closeRepo()

	tree, err := readTree(ctx, repo)
	if err != nil {
		return err
	}
	value, found, err := tree.Get(args[0])
	if err != nil {
		return err
	}
	proof, err := tree.GetProof(args[0])
	if err != nil {
		return err
	}
	raw, err := proof.MarshalBinary()
	if err != nil {
		return err
	}
	if !tree.VerifyProof(args[0], value, found, proof) {
		return errors.Errorf("%s proof of key %s does not verify against %s",
			proof.Type, hexutil.Encode(args[0]), tree.Commitment())
	}
	fmt.Fprintf(ctx.App.Writer, "root: %s\ntype: %s\nproof: %s\n", tree.Commitment(), proof.Type, hexutil.Encode(raw))
	return nil
}

func doRoots(ctx *cli.Context) error {
	repo, closeRepo, err := openRepository(ctx)
	if err != nil {
		return err
	}
	defer closeRepo()

	roots, err := repo.GetAllRoots()
	if err != nil {
		return err
	}
	for _, root := range roots {
		fmt.Fprintf(ctx.App.Writer, "%d %s\n", root.Version, root.Root)
	}
	return nil
}

func doStats(ctx *cli.Context) error {
	repo, closeRepo, err := openRepository(ctx)
	if err != nil {
		return err
	}
	defer closeRepo()

	count, err := repo.GetTotalNodeCount()
	if err != nil {
		return err
	}
	size, err := repo.GetTotalDataSize()
	if err != nil {
		return err
	}
	fmt.Fprintf(ctx.App.Writer, "nodes: %d\nsize: %s\n", count, common.StorageSize(size))
	return nil
}

func doCheck(ctx *cli.Context) error {
	repo, closeRepo, err := openRepository(ctx)
	if err != nil {
		return err
	}
	defer closeRepo()

	var opts []storage.CheckOption
	if ctx.IsSet(auditRetainFlag.Name) {
		opts = append(opts, storage.CheckRetainingLatest(ctx.Int(auditRetainFlag.Name)))
	}
	issues, err := repo.PerformConsistencyCheck(opts...)
	if err != nil {
		return err
	}
	for _, issue := range issues {
		fmt.Fprintln(ctx.App.Writer, issue)
	}
	if len(issues) > 0 {
		return errors.Errorf("found %d consistency issues", len(issues))
	}
	return nil
}

func doGC(ctx *cli.Context) error {
	repo, closeRepo, err := openRepository(ctx)
	if err != nil {
		return err
	}
	defer closeRepo()

	gc, err := storage.NewGarbageCollector(repo,
		storage.Workers(ctx.Int(workersFlag.Name)),
		storage.WithReporter(storage.NewThrottledReporter(storage.NewLoggingReporter("gc"), 10)),
	)
	if err != nil {
		return err
	}
	ret, err := gc.CollectRetainingLatest(ctx.Int(retainFlag.Name))
	if err != nil {
		return err
	}
	fmt.Fprintf(ctx.App.Writer, "run: %s\nretained roots: %d\nreachable: %d\ndeleted: %d\nfreed: %s\n",
		ret.ID, ret.RetainedRoots, ret.Reachable, ret.Deleted, common.StorageSize(ret.FreedBytes))
	return nil
}
