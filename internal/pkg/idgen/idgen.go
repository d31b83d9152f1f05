// Package idgen hands out ids for room nodes, live instances, hostiles and runs
package idgen

import (
	"strconv"
	"sync/atomic"

	"github.com/google/uuid"
)

// Generator returns a fresh id on every call
type Generator interface {
	Generate() string
}

func join(prefix, body string) string {
	if prefix == "" {
		return body
	}
	return prefix + "_" + body
}

// SequentialGenerator counts up from 1. Two generators with the same prefix
// produce the same sequence, which is what keeps regenerated floors stable.
type SequentialGenerator struct {
	prefix string
	next   atomic.Uint64
}

// NewSequential returns a counter that yields prefix_1, prefix_2, ...
func NewSequential(prefix string) *SequentialGenerator {
	return &SequentialGenerator{prefix: prefix}
}

func (g *SequentialGenerator) Generate() string {
	return join(g.prefix, strconv.FormatUint(g.next.Add(1), 10))
}

// UUIDGenerator yields random v4 ids
type UUIDGenerator struct {
	prefix string
}

// NewUUID returns a generator of prefix_<uuid> ids
func NewUUID(prefix string) *UUIDGenerator {
	return &UUIDGenerator{prefix: prefix}
}

func (g *UUIDGenerator) Generate() string {
	return join(g.prefix, uuid.NewString())
}

// FloorNodes names the nodes of one floor: f<floor>_room_<n>
func FloorNodes(floor int) *SequentialGenerator {
	return NewSequential("f" + strconv.Itoa(floor) + "_room")
}
