// Package domain contains the core domain types for the chain context.
package domain

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// BlockState is the slice of a block header the safety checks reason about.
type BlockState struct {
	Number     uint64
	Hash       common.Hash
	ParentHash common.Hash
	BaseFee    *big.Int
	Timestamp  time.Time
	GasLimit   uint64
	GasUsed    uint64
}

// Extends reports whether b is the direct child of parent.
func (b *BlockState) Extends(parent *BlockState) bool {
	return parent != nil && b.Number == parent.Number+1 && b.ParentHash == parent.Hash
}

// ConnectionState represents the state of a chain connection.
type ConnectionState string

const (
	StateDisconnected ConnectionState = "disconnected"
	StateConnecting   ConnectionState = "connecting"
	StateConnected    ConnectionState = "connected"
	StateReconnecting ConnectionState = "reconnecting"
)

// ConnectionStatus contains detailed connection information.
type ConnectionStatus struct {
	State      ConnectionState
	LastBlock  uint64
	Reconnects int
	UsingHTTP  bool
}
