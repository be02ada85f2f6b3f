package model

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// MintParams is the request handed to the liquidity-minting collaborator.
type MintParams struct {
	Token0         common.Address
	Token1         common.Address
	Fee            uint32
	TickLower      int32
	TickUpper      int32
	Amount0Desired *uint256.Int
	Amount1Desired *uint256.Int
	Amount0Min     *uint256.Int
	Amount1Min     *uint256.Int
	Recipient      common.Address
	Deadline       uint64
}

// MintResult is what the minting collaborator reports back.
type MintResult struct {
	PositionID *uint256.Int
	Liquidity  *uint256.Int
	Amount0    *uint256.Int
	Amount1    *uint256.Int
}
