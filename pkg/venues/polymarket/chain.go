package polymarket

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"
)

// Polygon mainnet settlement contracts.
const (
	USDCAddress = "0x2791Bca1f2de4661ED88A30C99A7a9449Aa84174"
	CTFAddress  = "0x4D97DCd97eC945f40cF65F87097ACe5EA0476045"
)

// Function selectors for the two balance reads.
var (
	erc20BalanceOfSelector   = []byte{0x70, 0xa0, 0x82, 0x31} // balanceOf(address)
	erc1155BalanceOfSelector = []byte{0x00, 0xfd, 0xd5, 0x8e} // balanceOf(address,uint256)
)

// ChainReader reads on-chain balances for the funder wallet: USDC collateral
// and conditional-token positions. Read-only, no transactions.
type ChainReader struct {
	client *ethclient.Client
	funder ethcommon.Address
	usdc   ethcommon.Address
	ctf    ethcommon.Address
}

func NewChainReader(rpcURL, funder string) (*ChainReader, error) {
	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial rpc: %w", err)
	}
	return &ChainReader{
		client: client,
		funder: ethcommon.HexToAddress(funder),
		usdc:   ethcommon.HexToAddress(USDCAddress),
		ctf:    ethcommon.HexToAddress(CTFAddress),
	}, nil
}

// CollateralBalance returns the funder's USDC balance in whole dollars.
func (r *ChainReader) CollateralBalance(ctx context.Context) (float64, error) {
	data := append([]byte{}, erc20BalanceOfSelector...)
	data = append(data, ethcommon.LeftPadBytes(r.funder.Bytes(), 32)...)

	raw, err := r.client.CallContract(ctx, ethereum.CallMsg{To: &r.usdc, Data: data}, nil)
	if err != nil {
		return 0, fmt.Errorf("usdc balance: %w", err)
	}
	return scaleAmount(raw), nil
}

// OutcomeBalance returns the funder's holding of one outcome token in shares.
func (r *ChainReader) OutcomeBalance(ctx context.Context, tokenID string) (float64, error) {
	id, ok := new(big.Int).SetString(tokenID, 10)
	if !ok {
		return 0, fmt.Errorf("invalid token id %q", tokenID)
	}
	data := append([]byte{}, erc1155BalanceOfSelector...)
	data = append(data, ethcommon.LeftPadBytes(r.funder.Bytes(), 32)...)
	data = append(data, ethcommon.LeftPadBytes(id.Bytes(), 32)...)

	raw, err := r.client.CallContract(ctx, ethereum.CallMsg{To: &r.ctf, Data: data}, nil)
	if err != nil {
		return 0, fmt.Errorf("token balance: %w", err)
	}
	return scaleAmount(raw), nil
}

// Close releases the RPC connection.
func (r *ChainReader) Close() {
	r.client.Close()
}

// scaleAmount converts a raw 6-decimal uint256 into a float.
func scaleAmount(raw []byte) float64 {
	v := new(big.Int).SetBytes(raw)
	f, _ := decimal.NewFromBigInt(v, -amountDecimals).Float64()
	return f
}
