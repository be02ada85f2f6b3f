package model

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// PoolState is an immutable snapshot of the pool fields the range calculation reads.
type PoolState struct {
	Address      common.Address
	Token0       common.Address
	Token1       common.Address
	Fee          uint32
	SqrtPriceX96 *uint256.Int
	Tick         int32
	TickSpacing  int32
	BlockNumber  uint64
}
