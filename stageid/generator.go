// Package stageid generates StageId values (spec sec 3.1): a
// Snowflake-style id, monotonic per Play node, seeded from the node's
// serverId, built on github.com/bwmarrin/snowflake the way
// homveloper-boss-raid-game and nabbar-golib in the example pack use it
// for the same purpose.
//
// The spec's nominal bit layout is 42 bits epoch-ms + 12 bits node + 10
// bits sequence (64 bits). bwmarrin/snowflake reserves its top bit as a
// sign bit and budgets exactly 63 usable bits across timestamp/node/step,
// so node bits + step bits + timestamp bits cannot sum past 63. This
// package keeps the spec's 12/10 node/sequence split and gives the
// timestamp the remaining 41 bits (63-12-10) rather than the nominal 42 —
// one bit short of the spec's nominal budget, which only matters after
// ~69 years from the epoch instead of ~139.
package stageid

import (
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
)

// Epoch is 2020-01-01T00:00:00Z in Unix milliseconds (spec sec 3.1).
var Epoch = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli()

var configureOnce sync.Once

func configure() {
	configureOnce.Do(func() {
		snowflake.Epoch = Epoch
		snowflake.NodeBits = 12
		snowflake.StepBits = 10
	})
}

// Generator issues StageId values for a single Play node. Not safe to
// share across nodes with the same node id; each Play node owns exactly
// one Generator, seeded from its own serverId (spec sec 3.1: "unique per
// Play node").
type Generator struct {
	node *snowflake.Node
}

// NewGenerator builds a Generator seeded from serverId, masked into the
// 12 bits this package's Epoch/NodeBits/StepBits configuration allots to
// the node component.
func NewGenerator(serverId uint32) (*Generator, error) {
	configure()
	n, err := snowflake.NewNode(int64(serverId & 0xFFF))
	if err != nil {
		return nil, fmt.Errorf("stageid: %w", err)
	}
	return &Generator{node: n}, nil
}

// Next returns the next StageId. It is monotonic for the lifetime of the
// Generator; bwmarrin/snowflake rejects backwards clock motion by
// panicking inside Generate when NextID is asked to produce an id for a
// timestamp earlier than its last-seen one — this package lets that
// panic surface as the spec's "fatal: clock going backwards" case (spec
// sec 7) rather than silently producing a colliding id.
func (g *Generator) Next() (id int64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("stageid: clock moved backwards: %v", r)
		}
	}()
	return int64(g.node.Generate()), nil
}
