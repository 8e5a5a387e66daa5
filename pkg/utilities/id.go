package utilities

import (
	"os"
	"strconv"

	"github.com/bwmarrin/snowflake"
	"github.com/segmentio/ksuid"
)

// NewKSUID generates a new globally unique KSUID string.
func NewKSUID() string {
	return ksuid.New().String()
}

// UserIDAllocator hands out snowflake user IDs from a fixed node.
type UserIDAllocator struct {
	node *snowflake.Node
}

// NewUserIDAllocator initializes a snowflake node. The node ID comes from
// the SNOWFLAKE_NODE environment variable and defaults to 1 when unset or
// unparseable.
func NewUserIDAllocator() (*UserIDAllocator, error) {
	nodeID := int64(1)
	if v := os.Getenv("SNOWFLAKE_NODE"); v != "" {
		if parsed, err := strconv.ParseInt(v, 10, 64); err == nil {
			nodeID = parsed
		}
	}
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, err
	}
	return &UserIDAllocator{node: node}, nil
}

// Next returns a new unique user ID.
func (a *UserIDAllocator) Next() int64 {
	return a.node.Generate().Int64()
}
