package signer

import (
	"crypto/ecdsa"
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Signature is the (r, s, v) triple the exchange expects, hex-encoded
// per spec.md §4.5 step 7.
type Signature struct {
	R string `json:"r"`
	S string `json:"s"`
	V byte   `json:"v"`
}

// Signer holds the account key used to sign exchange actions.
type Signer struct {
	key        *ecdsa.PrivateKey
	sourceTag  string // "a" for mainnet, "b" for testnet
}

// New constructs a Signer from a hex-encoded secp256k1 private key.
// testnet selects the Agent struct's network tag per spec.md §4.5 step 5.
func New(privateKeyHex string, testnet bool) (*Signer, error) {
	key, err := crypto.HexToECDSA(trim0x(privateKeyHex))
	if err != nil {
		return nil, fmt.Errorf("parsing private key: %w", err)
	}
	source := "a"
	if testnet {
		source = "b"
	}
	return &Signer{key: key, sourceTag: source}, nil
}

func trim0x(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}

var (
	domainTypeHash = crypto.Keccak256([]byte("EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)"))
	agentTypeHash  = crypto.Keccak256([]byte("Agent(string source,bytes32 connectionId)"))

	domainName    = crypto.Keccak256([]byte("Exchange"))
	domainVersion = crypto.Keccak256([]byte("1"))

	chainID              = big.NewInt(1337)
	zeroVerifyingAddress = make([]byte, 20)
)

func word32(b []byte) []byte {
	out := make([]byte, 32)
	copy(out[32-len(b):], b)
	return out
}

// domainSeparator builds the EIP-712 domain separator for the
// "Exchange" / "1" / chainId 1337 / zero-address domain, per spec.md
// §4.5 step 4.
func domainSeparator() []byte {
	buf := make([]byte, 0, 128)
	buf = append(buf, domainTypeHash...)
	buf = append(buf, domainName...)
	buf = append(buf, domainVersion...)
	buf = append(buf, word32(chainID.Bytes())...)
	buf = append(buf, word32(zeroVerifyingAddress)...)
	return crypto.Keccak256(buf)
}

// agentStructHash hashes the Agent struct carrying the action hash as
// its connectionId field, per spec.md §4.5 step 5.
func (s *Signer) agentStructHash(actionHash []byte) []byte {
	sourceHash := crypto.Keccak256([]byte(s.sourceTag))
	buf := make([]byte, 0, 96)
	buf = append(buf, agentTypeHash...)
	buf = append(buf, sourceHash...)
	buf = append(buf, word32(actionHash)...)
	return crypto.Keccak256(buf)
}

// actionHash implements spec.md §4.5 steps 1-3: canonical msgpack
// encode, append the nonce as 8 big-endian bytes plus one zero byte
// (null vault address), then Keccak-256.
func actionHash(action Action, nonce uint64) ([]byte, error) {
	payload, err := EncodeCanonical(action)
	if err != nil {
		return nil, fmt.Errorf("encoding action: %w", err)
	}

	buf := make([]byte, len(payload)+9)
	n := copy(buf, payload)
	binary.BigEndian.PutUint64(buf[n:], nonce)
	buf[n+8] = 0 // null vault address marker

	return crypto.Keccak256(buf), nil
}

// digest implements spec.md §4.5 step 6: keccak256(0x1901 ||
// domainSeparator || structHash).
func digest(structHash []byte) []byte {
	buf := make([]byte, 0, 2+32+32)
	buf = append(buf, 0x19, 0x01)
	buf = append(buf, domainSeparator()...)
	buf = append(buf, structHash...)
	return crypto.Keccak256(buf)
}

// Sign implements spec.md §4.5 end to end and returns the (r, s, v)
// signature over the given action/nonce pair.
func (s *Signer) Sign(action Action, nonce uint64) (Signature, error) {
	ah, err := actionHash(action, nonce)
	if err != nil {
		return Signature{}, err
	}

	structHash := s.agentStructHash(ah)
	d := digest(structHash)

	sig, err := crypto.Sign(d, s.key)
	if err != nil {
		return Signature{}, fmt.Errorf("ecdsa sign: %w", err)
	}

	r := sig[:32]
	sBytes := sig[32:64]
	recID := sig[64]

	return Signature{
		R: "0x" + common.Bytes2Hex(r),
		S: "0x" + common.Bytes2Hex(sBytes),
		V: recID + 27,
	}, nil
}

// ActionHash exposes the raw action hash for callers building the
// outer request envelope (used by the tests and the integration-test
// command; Sign computes it internally).
func ActionHash(action Action, nonce uint64) ([]byte, error) {
	return actionHash(action, nonce)
}
