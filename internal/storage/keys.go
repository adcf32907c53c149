// keys.go - Key prefixes and key construction.

package storage

import (
	"encoding/binary"
	"fmt"

	"privatepay/internal/types"
)

// Key prefixes. Each component owns a disjoint range so the ledger, the proof
// cache and the orchestrator can share one database.
const (
	// custody ledger
	CodeBalance        byte = 10
	CodeAuthorized     byte = 11
	CodeExecution      byte = 12
	CodeExecutionCount byte = 13
	CodeLedgerStats    byte = 14
	CodePayout         byte = 16

	// proof acceptance cache
	CodeVerdict    byte = 20
	CodeProofStats byte = 21

	// orchestrator
	CodeVaultBalance   byte = 30
	CodeCommitment     byte = 31
	CodeProfile        byte = 32
	CodeGlobalStats    byte = 33
	CodeNoise          byte = 34
	CodeProfileSummary byte = 35
)

// MakeKey builds a key from a prefix code and its parts.
func MakeKey(code byte, parts ...interface{}) []byte {
	key := []byte{code}
	for _, part := range parts {
		key = append(key, b(part)...)
	}
	return key
}

func b(v interface{}) []byte {
	switch i := v.(type) {
	case uint8:
		return []byte{i}
	case uint32:
		var buf [4]byte
		binary.BigEndian.PutUint32(buf[:], i)
		return buf[:]
	case uint64:
		var buf [8]byte
		binary.BigEndian.PutUint64(buf[:], i)
		return buf[:]
	case types.Address:
		return i[:]
	case types.Hash:
		return i[:]
	case []byte:
		return i
	case string:
		return []byte(i)
	default:
		panic(fmt.Sprintf("unsupported type to convert (%T)", v))
	}
}
