// codec.go - Deterministic CBOR encoding of stored values.

package storage

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Values are CBOR encoded with the deterministic core profile so equal records
// always produce equal bytes.
var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("could not build cbor encoder: %v", err))
	}
	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("could not build cbor decoder: %v", err))
	}
}

func encode(entity interface{}) ([]byte, error) {
	val, err := encMode.Marshal(entity)
	if err != nil {
		return nil, fmt.Errorf("could not encode entity: %w", err)
	}
	return val, nil
}

func decode(val []byte, entity interface{}) error {
	if err := decMode.Unmarshal(val, entity); err != nil {
		return fmt.Errorf("could not decode entity: %w", err)
	}
	return nil
}
