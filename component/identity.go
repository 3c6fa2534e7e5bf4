package component

import (
	"hash/fnv"
	"strconv"
)

// PathSeparator joins ancestor names in a node's full path.
const PathSeparator = "->"

// ID is a node's stable identity. It is the FNV-1a 32-bit hash of the full
// path, so the same tree built twice yields the same identities.
type ID uint32

// NoID is never assigned to a node.
const NoID ID = 0

// IdentityOf returns the identity for a full path. A hash of zero is remapped
// to one so that NoID stays free.
func IdentityOf(fullPath string) ID {
	h := fnv.New32a()
	_, _ = h.Write([]byte(fullPath))
	id := ID(h.Sum32())
	if id == NoID {
		return 1
	}
	return id
}

func (id ID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}
