package statemachine

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

const (
	fieldOpKind  = 1
	fieldOpKey   = 2
	fieldOpValue = 3
)

// EncodeOp is the Entry.Payload format client requests are expected to
// submit for EntryNormal entries targeting this state machine.
func EncodeOp(op Op) []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldOpKind, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(op.Kind))
	b = protowire.AppendTag(b, fieldOpKey, protowire.BytesType)
	b = protowire.AppendBytes(b, op.Key)
	if op.Kind == OpSet {
		b = protowire.AppendTag(b, fieldOpValue, protowire.BytesType)
		b = protowire.AppendBytes(b, op.Value)
	}
	return b
}

// DecodeOp parses a payload produced by EncodeOp.
func DecodeOp(b []byte) (Op, error) {
	var op Op
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return op, fmt.Errorf("statemachine: bad op tag: %w", protowire.ParseError(n))
		}
		b = b[n:]
		switch num {
		case fieldOpKind:
			v, n := protowire.ConsumeVarint(b)
			op.Kind, b = OpKind(v), b[n:]
		case fieldOpKey:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return op, fmt.Errorf("statemachine: bad op.key: %w", protowire.ParseError(n))
			}
			op.Key, b = append([]byte(nil), v...), b[n:]
		case fieldOpValue:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return op, fmt.Errorf("statemachine: bad op.value: %w", protowire.ParseError(n))
			}
			op.Value, b = append([]byte(nil), v...), b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return op, fmt.Errorf("statemachine: bad op field %d: %w", num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return op, nil
}
