package polymarket

import (
	"crypto/ecdsa"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// Exchange contracts on Polygon mainnet. Orders on markets with negative-risk
// conversion settle through a separate exchange and must be signed against it.
const (
	ChainID                = 137
	ExchangeAddress        = "0x4bFb41d5B3570DeFd03C39a9A4D8dE6Bd8B8982E"
	NegRiskExchangeAddress = "0xC5d563A36AE78145C45a50134d48A1215220f80a"
)

// Signature types understood by the exchange.
const (
	SignatureEOA        = 0
	SignaturePolyProxy  = 1
	SignatureGnosisSafe = 2
)

const (
	sideBuy  = "BUY"
	sideSell = "SELL"
)

const clobAuthMessage = "This message attests that I control the given wallet"

// Signer produces EIP-712 signatures for CLOB orders and the L1 auth
// handshake from a single private key.
type Signer struct {
	key     *ecdsa.PrivateKey
	address ethcommon.Address
	sigType int
	funder  ethcommon.Address
}

// NewSigner parses a hex private key. funder is the address holding the
// collateral; for an EOA wallet it equals the signing address and may be left
// empty.
func NewSigner(privateKeyHex string, funder string, sigType int) (*Signer, error) {
	key, err := crypto.HexToECDSA(trimHexPrefix(privateKeyHex))
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	s := &Signer{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
		sigType: sigType,
	}
	if funder != "" {
		s.funder = ethcommon.HexToAddress(funder)
	} else {
		s.funder = s.address
	}
	return s, nil
}

// Address is the signing (EOA) address.
func (s *Signer) Address() string { return s.address.Hex() }

// Funder is the collateral-holding address used as the order maker.
func (s *Signer) Funder() string { return s.funder.Hex() }

// SignedOrder is the wire form of an EIP-712 signed order.
type SignedOrder struct {
	Salt          int64  `json:"salt"`
	Maker         string `json:"maker"`
	Signer        string `json:"signer"`
	Taker         string `json:"taker"`
	TokenID       string `json:"tokenId"`
	MakerAmount   string `json:"makerAmount"`
	TakerAmount   string `json:"takerAmount"`
	Expiration    string `json:"expiration"`
	Nonce         string `json:"nonce"`
	FeeRateBps    string `json:"feeRateBps"`
	Side          string `json:"side"`
	SignatureType int    `json:"signatureType"`
	Signature     string `json:"signature"`
}

// SignOrder builds and signs an exchange order for the given token. side is
// sideBuy or sideSell, price and size are decimal, expiration zero means no
// expiry.
func (s *Signer) SignOrder(tokenID, side string, price, size float64, expiration int64, negRisk bool) (SignedOrder, error) {
	salt, err := rand.Int(rand.Reader, big.NewInt(1<<62))
	if err != nil {
		return SignedOrder{}, err
	}
	maker, taker := makerTakerAmounts(side, price, size)

	sideCode := "0"
	if side == sideSell {
		sideCode = "1"
	}

	exchange := ExchangeAddress
	if negRisk {
		exchange = NegRiskExchangeAddress
	}

	order := SignedOrder{
		Salt:          salt.Int64(),
		Maker:         s.funder.Hex(),
		Signer:        s.address.Hex(),
		Taker:         ethcommon.Address{}.Hex(),
		TokenID:       tokenID,
		MakerAmount:   maker.String(),
		TakerAmount:   taker.String(),
		Expiration:    fmt.Sprintf("%d", expiration),
		Nonce:         "0",
		FeeRateBps:    "0",
		Side:          side,
		SignatureType: s.sigType,
	}

	typed := apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": {
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
				{Name: "verifyingContract", Type: "address"},
			},
			"Order": {
				{Name: "salt", Type: "uint256"},
				{Name: "maker", Type: "address"},
				{Name: "signer", Type: "address"},
				{Name: "taker", Type: "address"},
				{Name: "tokenId", Type: "uint256"},
				{Name: "makerAmount", Type: "uint256"},
				{Name: "takerAmount", Type: "uint256"},
				{Name: "expiration", Type: "uint256"},
				{Name: "nonce", Type: "uint256"},
				{Name: "feeRateBps", Type: "uint256"},
				{Name: "side", Type: "uint8"},
				{Name: "signatureType", Type: "uint8"},
			},
		},
		PrimaryType: "Order",
		Domain: apitypes.TypedDataDomain{
			Name:              "Polymarket CTF Exchange",
			Version:           "1",
			ChainId:           math.NewHexOrDecimal256(ChainID),
			VerifyingContract: exchange,
		},
		Message: apitypes.TypedDataMessage{
			"salt":          fmt.Sprintf("%d", order.Salt),
			"maker":         order.Maker,
			"signer":        order.Signer,
			"taker":         order.Taker,
			"tokenId":       order.TokenID,
			"makerAmount":   order.MakerAmount,
			"takerAmount":   order.TakerAmount,
			"expiration":    order.Expiration,
			"nonce":         order.Nonce,
			"feeRateBps":    order.FeeRateBps,
			"side":          sideCode,
			"signatureType": fmt.Sprintf("%d", s.sigType),
		},
	}

	sig, err := s.signTypedData(typed)
	if err != nil {
		return SignedOrder{}, err
	}
	order.Signature = sig
	return order, nil
}

// SignClobAuth signs the L1 authentication attestation used to derive or
// create API credentials. Returns the signature and the timestamp it covers.
func (s *Signer) SignClobAuth(nonce uint64) (signature, timestamp string, err error) {
	ts := fmt.Sprintf("%d", time.Now().Unix())
	typed := apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": {
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
			},
			"ClobAuth": {
				{Name: "address", Type: "address"},
				{Name: "timestamp", Type: "string"},
				{Name: "nonce", Type: "uint256"},
				{Name: "message", Type: "string"},
			},
		},
		PrimaryType: "ClobAuth",
		Domain: apitypes.TypedDataDomain{
			Name:    "ClobAuthDomain",
			Version: "1",
			ChainId: math.NewHexOrDecimal256(ChainID),
		},
		Message: apitypes.TypedDataMessage{
			"address":   s.address.Hex(),
			"timestamp": ts,
			"nonce":     fmt.Sprintf("%d", nonce),
			"message":   clobAuthMessage,
		},
	}
	sig, err := s.signTypedData(typed)
	if err != nil {
		return "", "", err
	}
	return sig, ts, nil
}

func (s *Signer) signTypedData(typed apitypes.TypedData) (string, error) {
	hash, _, err := apitypes.TypedDataAndHash(typed)
	if err != nil {
		return "", fmt.Errorf("hash typed data: %w", err)
	}
	sig, err := crypto.Sign(hash, s.key)
	if err != nil {
		return "", fmt.Errorf("sign typed data: %w", err)
	}
	// Ethereum expects the recovery id offset by 27.
	sig[64] += 27
	return hexutil.Encode(sig), nil
}

func trimHexPrefix(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}
