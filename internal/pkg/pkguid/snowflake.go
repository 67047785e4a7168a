package pkguid

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/bwmarrin/snowflake"
)

// Epoch is the custom snowflake epoch, 2024-01-01T00:00:00Z in milliseconds.
// Dataset ids minted before and after a restart compare in creation order.
const Epoch int64 = 1704067200000

var setEpoch sync.Once

// Snowflake generates numeric IDs using the Snowflake algorithm.
type Snowflake struct {
	node *snowflake.Node
}

func generateRandomNodeID() (int64, error) {
	var nodeID int64
	err := binary.Read(rand.Reader, binary.BigEndian, &nodeID)
	if err != nil {
		return 0, err
	}

	return nodeID & (1<<snowflake.NodeBits - 1), nil
}

// NewSnowflake constructs a Snowflake generator for nodeID. A negative nodeID
// picks a random node, which is fine for a single instance but may collide
// when several instances share a database.
func NewSnowflake(nodeID int64) (*Snowflake, error) {
	if nodeID < 0 {
		id, err := generateRandomNodeID()
		if err != nil {
			return nil, err
		}
		nodeID = id
	}

	setEpoch.Do(func() { snowflake.Epoch = Epoch })

	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, fmt.Errorf("snowflake node %d: %w", nodeID, err)
	}

	return &Snowflake{node: node}, nil
}

// Generate returns a new unique numeric ID.
func (s *Snowflake) Generate() int64 {
	return s.node.Generate().Int64()
}
