package dex

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"ranger/internal/model"
)

// mintParamsTuple mirrors INonfungiblePositionManager.MintParams for ABI packing.
type mintParamsTuple struct {
	Token0         common.Address
	Token1         common.Address
	Fee            *big.Int
	TickLower      *big.Int
	TickUpper      *big.Int
	Amount0Desired *big.Int
	Amount1Desired *big.Int
	Amount0Min     *big.Int
	Amount1Min     *big.Int
	Recipient      common.Address
	Deadline       *big.Int
}

// MintCalldata encodes a NonfungiblePositionManager mint call for the given params.
func MintCalldata(params model.MintParams) ([]byte, error) {
	managerABI, err := PositionManagerABI()
	if err != nil {
		return nil, fmt.Errorf("parse position manager abi: %w", err)
	}
	if params.Amount0Desired == nil || params.Amount1Desired == nil || params.Amount0Min == nil || params.Amount1Min == nil {
		return nil, fmt.Errorf("mint amounts are required")
	}

	tuple := mintParamsTuple{
		Token0:         params.Token0,
		Token1:         params.Token1,
		Fee:            new(big.Int).SetUint64(uint64(params.Fee)),
		TickLower:      big.NewInt(int64(params.TickLower)),
		TickUpper:      big.NewInt(int64(params.TickUpper)),
		Amount0Desired: params.Amount0Desired.ToBig(),
		Amount1Desired: params.Amount1Desired.ToBig(),
		Amount0Min:     params.Amount0Min.ToBig(),
		Amount1Min:     params.Amount1Min.ToBig(),
		Recipient:      params.Recipient,
		Deadline:       new(big.Int).SetUint64(params.Deadline),
	}

	data, err := managerABI.Pack("mint", tuple)
	if err != nil {
		return nil, fmt.Errorf("pack mint: %w", err)
	}
	return data, nil
}
