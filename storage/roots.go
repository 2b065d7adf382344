package storage

import (
	"github.com/ethereum/go-ethereum/log"
	"github.com/pkg/errors"

	bsmt "github.com/bnb-chain/cbor-smt"
	"github.com/bnb-chain/cbor-smt/database"
	"github.com/bnb-chain/cbor-smt/utils"
)

// VersionedRoot is one entry of the root index.
type VersionedRoot struct {
	Version bsmt.Version
	Root    RootHashKey
}

func versionKey(version bsmt.Version) []byte {
	return utils.Uint64ToBytes(uint64(version))
}

func decodeRootEntry(key, value []byte) (VersionedRoot, error) {
	version, ok := utils.BytesToUint64(key)
	if !ok {
		return VersionedRoot{}, errors.Wrapf(ErrMalformedEntry, "root index key %x", key)
	}
	root, err := NewRootHashKey(value)
	if err != nil {
		return VersionedRoot{}, errors.Wrapf(ErrMalformedEntry, "root of version %d: %v", version, err)
	}
	return VersionedRoot{Version: bsmt.Version(version), Root: root}, nil
}

// PutRoot records root under version, replacing an earlier entry of the same
// version.
func (r *Repository) PutRoot(version bsmt.Version, root RootHashKey) error {
	if r.empties.IsEmpty(0, root.Hash()) {
		return errors.Wrapf(ErrEmptyRoot, "put root %d", version)
	}
	if err := r.roots.Set(versionKey(version), root.Bytes()); err != nil {
		return errors.Wrapf(err, "put root %d %s", version, root)
	}
	log.Debug("Recorded tree root", "version", version, "root", root)
	if r.metrics != nil {
		r.metrics.Version(uint64(version))
	}
	return nil
}

// GetRootByVersion returns the root recorded under version, or ErrRootNotFound.
func (r *Repository) GetRootByVersion(version bsmt.Version) (RootHashKey, error) {
	value, err := r.roots.Get(versionKey(version))
	if err != nil {
		if errors.Is(err, database.ErrDatabaseNotFound) {
			return RootHashKey{}, errors.Wrapf(ErrRootNotFound, "get root %d", version)
		}
		return RootHashKey{}, errors.Wrapf(err, "get root %d", version)
	}
	entry, err := decodeRootEntry(versionKey(version), value)
	if err != nil {
		return RootHashKey{}, err
	}
	return entry.Root, nil
}

// GetAllRoots returns every entry of the root index in ascending version order.
func (r *Repository) GetAllRoots() ([]VersionedRoot, error) {
	it := r.roots.NewIterator(nil)
	defer it.Release()

	var roots []VersionedRoot
	for it.Next() {
		entry, err := decodeRootEntry(it.Key(), it.Value())
		if err != nil {
			return nil, err
		}
		roots = append(roots, entry)
	}
	if err := it.Error(); err != nil {
		return nil, errors.Wrap(err, "get all roots")
	}
	return roots, nil
}

// GetLatestRoot returns the entry with the highest version, or
// ErrRootNotFound when the index is empty.
func (r *Repository) GetLatestRoot() (bsmt.Version, RootHashKey, error) {
	roots, err := r.GetAllRoots()
	if err != nil {
		return 0, RootHashKey{}, err
	}
	if len(roots) == 0 {
		return 0, RootHashKey{}, errors.Wrap(ErrRootNotFound, "get latest root")
	}
	latest := roots[len(roots)-1]
	return latest.Version, latest.Root, nil
}

// DeleteRoot always fails: the root index keeps every recorded version.
// Unwanted versions are dropped by leaving them out of a GC retention set.
func (r *Repository) DeleteRoot(version bsmt.Version) error {
	return errors.Wrapf(ErrUnsupportedOperation, "delete root %d", version)
}
