package storage

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/typedb/typedb-sub004/codec"
	"github.com/typedb/typedb-sub004/ir"
	"github.com/typedb/typedb-sub004/schema"
)

func doubleBits(f float64) uint64 { return math.Float64bits(f) }
func bitsDouble(b uint64) float64 { return math.Float64frombits(b) }

// Key tags. Each schema/data record lives under its own single-byte
// namespace so range scans never cross record kinds.
const (
	tagTypeByLabel byte = 'L' // L85(kind) 0 L85(scope) 0 L85(name) -> Type
	tagSuper       byte = 'S' // typeKey -> superTypeKey
	tagSubEdge     byte = 'U' // superTypeKey 0 subTypeKey -> ()
	tagOwns        byte = 'O' // ownerKey 0 attrKey -> ()
	tagOwnsRev     byte = 'o' // attrKey 0 ownerKey -> ()
	tagPlays       byte = 'P' // playerKey 0 roleKey -> ()
	tagPlaysRev    byte = 'p' // roleKey 0 playerKey -> ()
	tagRelates     byte = 'R' // relationKey 0 roleKey -> ()
	tagRelatesRev  byte = 'r' // roleKey 0 relationKey -> ()
	tagValueType   byte = 'V' // attrKey -> byte(ValueType)
	tagAnnotation  byte = 'N' // typeKey 0 L85(name) -> string(value)
	tagOrdering    byte = 'D' // roleKey -> byte(Ordering)

	tagThingType    byte = 't' // thingID -> typeKey
	tagAttrValue    byte = 'a' // thingID -> encoded ir.Value
	tagRolePlayer   byte = 'x' // relationID 0 roleKey 0 playerID -> ()
	tagTypeInstance byte = 'i' // typeKey 0 thingID -> () ; reverse of tagThingType, drives Isa scans
	tagPlayerRole   byte = 'y' // playerID 0 roleKey 0 relationID -> () ; reverse of tagRolePlayer
	tagHas          byte = 'h' // ownerID 0 attrID -> ()
	tagHasRev       byte = 'H' // attrID 0 ownerID -> ()
)

const sep = 0x00

func join(parts ...[]byte) []byte {
	var buf bytes.Buffer
	for i, p := range parts {
		if i > 0 {
			buf.WriteByte(sep)
		}
		buf.Write(p)
	}
	return buf.Bytes()
}

// typeKey is the canonical, sortable encoding of an ir.Type used as a
// key component throughout this package.
func typeKey(t ir.Type) []byte {
	return join([]byte(codec.Encode([]byte{byte(t.Kind)})), []byte(codec.Encode([]byte(t.Label.Scope))), []byte(codec.Encode([]byte(t.Label.Name))))
}

func labelLookupKey(kind ir.TypeKind, label ir.Label) schema.Key {
	return schema.Key(join([]byte{tagTypeByLabel}, []byte(codec.Encode([]byte{byte(kind)})), []byte(codec.Encode([]byte(label.Scope))), []byte(codec.Encode([]byte(label.Name)))))
}

func decodeTypeValue(val []byte) (ir.Type, error) {
	parts := bytes.Split(val, []byte{sep})
	if len(parts) != 3 {
		return ir.Type{}, fmt.Errorf("storage: malformed type record")
	}
	kind, err := codec.Decode(string(parts[0]))
	if err != nil || len(kind) != 1 {
		return ir.Type{}, fmt.Errorf("storage: malformed type record")
	}
	scope, err := codec.Decode(string(parts[1]))
	if err != nil {
		return ir.Type{}, err
	}
	name, err := codec.Decode(string(parts[2]))
	if err != nil {
		return ir.Type{}, err
	}
	return ir.Type{Kind: ir.TypeKind(kind[0]), Label: ir.Label{Scope: string(scope), Name: string(name)}}, nil
}

func superKey(t ir.Type) schema.Key    { return schema.Key(join([]byte{tagSuper}, typeKey(t))) }
func subEdgePrefix(super ir.Type) []byte { return join([]byte{tagSubEdge}, typeKey(super)) }
func subEdgeKey(super, sub ir.Type) schema.Key {
	return schema.Key(join([]byte{tagSubEdge}, typeKey(super), typeKey(sub)))
}

func ownsKey(owner, attr ir.Type) schema.Key {
	return schema.Key(join([]byte{tagOwns}, typeKey(owner), typeKey(attr)))
}
func ownsPrefix(owner ir.Type) []byte { return join([]byte{tagOwns}, typeKey(owner)) }
func ownsRevKey(attr, owner ir.Type) schema.Key {
	return schema.Key(join([]byte{tagOwnsRev}, typeKey(attr), typeKey(owner)))
}
func ownsRevPrefix(attr ir.Type) []byte { return join([]byte{tagOwnsRev}, typeKey(attr)) }

func playsKey(player, role ir.Type) schema.Key {
	return schema.Key(join([]byte{tagPlays}, typeKey(player), typeKey(role)))
}
func playsPrefix(player ir.Type) []byte { return join([]byte{tagPlays}, typeKey(player)) }
func playsRevKey(role, player ir.Type) schema.Key {
	return schema.Key(join([]byte{tagPlaysRev}, typeKey(role), typeKey(player)))
}
func playsRevPrefix(role ir.Type) []byte { return join([]byte{tagPlaysRev}, typeKey(role)) }

func relatesKey(relation, role ir.Type) schema.Key {
	return schema.Key(join([]byte{tagRelates}, typeKey(relation), typeKey(role)))
}
func relatesPrefix(relation ir.Type) []byte { return join([]byte{tagRelates}, typeKey(relation)) }
func relatesRevKey(role, relation ir.Type) schema.Key {
	return schema.Key(join([]byte{tagRelatesRev}, typeKey(role), typeKey(relation)))
}
func relatesRevPrefix(role ir.Type) []byte { return join([]byte{tagRelatesRev}, typeKey(role)) }

func valueTypeKey(attr ir.Type) schema.Key {
	return schema.Key(join([]byte{tagValueType}, typeKey(attr)))
}

func annotationPrefix(t ir.Type) []byte { return join([]byte{tagAnnotation}, typeKey(t)) }
func annotationKey(t ir.Type, name string) schema.Key {
	return schema.Key(join([]byte{tagAnnotation}, typeKey(t), []byte(codec.Encode([]byte(name)))))
}

func orderingKey(role ir.Type) schema.Key {
	return schema.Key(join([]byte{tagOrdering}, typeKey(role)))
}

func thingTypeKey(id schema.ThingID) schema.Key {
	return schema.Key(join([]byte{tagThingType}, []byte(id)))
}

func attrValueKey(id schema.ThingID) schema.Key {
	return schema.Key(join([]byte{tagAttrValue}, []byte(id)))
}

func rolePlayerKey(relation schema.ThingID, role ir.Type, player schema.ThingID) schema.Key {
	return schema.Key(join([]byte{tagRolePlayer}, []byte(relation), typeKey(role), []byte(player)))
}
func rolePlayerPrefix(relation schema.ThingID) []byte {
	return join([]byte{tagRolePlayer}, []byte(relation))
}

// playerRoleKey is the reverse of rolePlayerKey, letting RelationsPlayed
// scan by player instead of by relation.
func playerRoleKey(player schema.ThingID, role ir.Type, relation schema.ThingID) schema.Key {
	return schema.Key(join([]byte{tagPlayerRole}, []byte(player), typeKey(role), []byte(relation)))
}
func playerRolePrefix(player schema.ThingID) []byte {
	return join([]byte{tagPlayerRole}, []byte(player))
}

// playerRoleFromKey decodes the role type and relation id following
// prefix within a playerRoleKey, mirroring rolePlayerFromKey.
func playerRoleFromKey(key schema.Key, prefix []byte) (ir.Type, schema.ThingID, error) {
	tokens := bytes.Split([]byte(key), []byte{sep})
	offset := len(bytes.Split(prefix, []byte{sep}))
	role, err := typeFromTokens(tokens, offset)
	if err != nil {
		return ir.Type{}, nil, err
	}
	if offset+3 >= len(tokens) {
		return ir.Type{}, nil, fmt.Errorf("storage: malformed player-role key, missing relation id")
	}
	return role, schema.ThingID(tokens[offset+3]), nil
}

func hasKey(owner, attr schema.ThingID) schema.Key {
	return schema.Key(join([]byte{tagHas}, []byte(owner), []byte(attr)))
}
func hasPrefix(owner schema.ThingID) []byte { return join([]byte{tagHas}, []byte(owner)) }

func hasRevKey(attr, owner schema.ThingID) schema.Key {
	return schema.Key(join([]byte{tagHasRev}, []byte(attr), []byte(owner)))
}
func hasRevPrefix(attr schema.ThingID) []byte { return join([]byte{tagHasRev}, []byte(attr)) }

func typeInstanceKey(t ir.Type, thing schema.ThingID) schema.Key {
	return schema.Key(join([]byte{tagTypeInstance}, typeKey(t), []byte(thing)))
}
func typeInstancePrefix(t ir.Type) []byte {
	return join([]byte{tagTypeInstance}, typeKey(t))
}

// thingIDFromKey recovers the raw thing id trailing prefix within key.
// Unlike trailingTypeFromKey this does not re-split on sep: thing ids are
// minted via NewThingID (codec.Encode of a counter) specifically so they
// never contain a sep byte, but they are still read back as one opaque
// suffix rather than additional sep-delimited tokens.
func thingIDFromKey(key schema.Key, prefix []byte) schema.ThingID {
	return schema.ThingID(append([]byte(nil), []byte(key)[len(prefix)+1:]...))
}

// rolePlayerFromKey decodes the role type and player id following
// prefix within a rolePlayerKey.
func rolePlayerFromKey(key schema.Key, prefix []byte) (ir.Type, schema.ThingID, error) {
	tokens := bytes.Split([]byte(key), []byte{sep})
	offset := len(bytes.Split(prefix, []byte{sep}))
	role, err := typeFromTokens(tokens, offset)
	if err != nil {
		return ir.Type{}, nil, err
	}
	if offset+3 >= len(tokens) {
		return ir.Type{}, nil, fmt.Errorf("storage: malformed role-player key, missing player id")
	}
	return role, schema.ThingID(tokens[offset+3]), nil
}

// encodeValue serializes an ir.Value into a self-describing byte payload.
func encodeValue(v ir.Value) []byte {
	switch v.Type {
	case ir.ValueTypeBoolean:
		b := byte(0)
		if v.Bool {
			b = 1
		}
		return []byte{byte(v.Type), b}
	case ir.ValueTypeLong:
		buf := make([]byte, 9)
		buf[0] = byte(v.Type)
		binary.BigEndian.PutUint64(buf[1:], uint64(v.Long))
		return buf
	case ir.ValueTypeDouble:
		buf := make([]byte, 9)
		buf[0] = byte(v.Type)
		binary.BigEndian.PutUint64(buf[1:], doubleBits(v.Double))
		return buf
	default:
		return append([]byte{byte(v.Type)}, []byte(v.Str)...)
	}
}

// typeFromTokens decodes the ir.Type occupying tokens[offset:offset+3]
// of a key previously split on sep.
func typeFromTokens(tokens [][]byte, offset int) (ir.Type, error) {
	if offset+3 > len(tokens) {
		return ir.Type{}, fmt.Errorf("storage: malformed composite key, missing type at offset %d", offset)
	}
	kind, err := codec.Decode(string(tokens[offset]))
	if err != nil || len(kind) != 1 {
		return ir.Type{}, fmt.Errorf("storage: malformed composite key, bad kind byte")
	}
	scope, err := codec.Decode(string(tokens[offset+1]))
	if err != nil {
		return ir.Type{}, err
	}
	name, err := codec.Decode(string(tokens[offset+2]))
	if err != nil {
		return ir.Type{}, err
	}
	return ir.Type{Kind: ir.TypeKind(kind[0]), Label: ir.Label{Scope: string(scope), Name: string(name)}}, nil
}

// trailingTypeFromKey decodes the ir.Type immediately following prefix
// within key, both encoded with join/typeKey's uniform sep-delimited
// token scheme.
func trailingTypeFromKey(key schema.Key, prefix []byte) (ir.Type, error) {
	tokens := bytes.Split([]byte(key), []byte{sep})
	offset := len(bytes.Split(prefix, []byte{sep}))
	return typeFromTokens(tokens, offset)
}

// annotationNameFromKey decodes the L85-encoded annotation name
// following prefix within key.
func annotationNameFromKey(key schema.Key, prefix []byte) (string, error) {
	tokens := bytes.Split([]byte(key), []byte{sep})
	offset := len(bytes.Split(prefix, []byte{sep}))
	if offset >= len(tokens) {
		return "", fmt.Errorf("storage: malformed annotation key")
	}
	name, err := codec.Decode(string(tokens[offset]))
	if err != nil {
		return "", err
	}
	return string(name), nil
}

func decodeValue(data []byte) (ir.Value, error) {
	if len(data) == 0 {
		return ir.Value{}, fmt.Errorf("storage: empty value record")
	}
	vt := ir.ValueType(data[0])
	switch vt {
	case ir.ValueTypeBoolean:
		return ir.Value{Type: vt, Bool: data[1] != 0}, nil
	case ir.ValueTypeLong:
		return ir.Value{Type: vt, Long: int64(binary.BigEndian.Uint64(data[1:]))}, nil
	case ir.ValueTypeDouble:
		return ir.Value{Type: vt, Double: bitsDouble(binary.BigEndian.Uint64(data[1:]))}, nil
	default:
		return ir.Value{Type: vt, Str: string(data[1:])}, nil
	}
}
