package expr

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"reflect"
	"time"

	"github.com/dchest/siphash"
	"github.com/google/uuid"
)

// Key is a 128-bit structural hash of a query.
type Key struct {
	Lo, Hi uint64
}

// String returns the key as 32 hex digits.
func (k Key) String() string {
	var b [16]byte
	binary.BigEndian.PutUint64(b[:8], k.Hi)
	binary.BigEndian.PutUint64(b[8:], k.Lo)
	return hex.EncodeToString(b[:])
}

const (
	hashK0 = 0x736f6d6570736575
	hashK1 = 0x646f72616e646f6d
)

// Hasher accumulates a canonical encoding of query trees. Captured and
// context values contribute their names only, so two executions of the same
// query shape with different parameter values hash equally.
type Hasher struct {
	buf []byte
}

// Hash returns the structural key of q.
func Hash(q Query) Key {
	var h Hasher
	h.WriteQuery(q)
	return h.Sum()
}

// Sum returns the key of everything written so far.
func (h *Hasher) Sum() Key {
	lo, hi := siphash.Hash128(hashK0, hashK1, h.buf)
	return Key{Lo: lo, Hi: hi}
}

func (h *Hasher) tag(t byte) {
	h.buf = append(h.buf, t)
}

// writeString writes a length-prefixed string.
func (h *Hasher) writeString(s string) {
	h.buf = binary.AppendUvarint(h.buf, uint64(len(s)))
	h.buf = append(h.buf, s...)
}

// writeInt writes an integer.
func (h *Hasher) writeInt(v int64) {
	h.buf = binary.AppendVarint(h.buf, v)
}

// writeBool writes a flag.
func (h *Hasher) writeBool(b bool) {
	if b {
		h.tag(1)
	} else {
		h.tag(0)
	}
}

// WriteValue writes a runtime value with its dynamic type.
func (h *Hasher) WriteValue(v any) {
	switch v := v.(type) {
	case nil:
		h.tag('n')
	case bool:
		h.tag('b')
		h.writeBool(v)
	case int:
		h.tag('i')
		h.writeInt(int64(v))
	case int32:
		h.tag('I')
		h.writeInt(int64(v))
	case int64:
		h.tag('l')
		h.writeInt(v)
	case float64:
		h.tag('f')
		h.buf = binary.BigEndian.AppendUint64(h.buf, math.Float64bits(v))
	case string:
		h.tag('s')
		h.writeString(v)
	case time.Time:
		h.tag('t')
		h.writeInt(v.UnixNano())
	case uuid.UUID:
		h.tag('g')
		h.buf = append(h.buf, v[:]...)
	case []any:
		h.tag('[')
		h.writeInt(int64(len(v)))
		for _, e := range v {
			h.WriteValue(e)
		}
	default:
		h.tag('?')
		h.writeString(fmt.Sprintf("%T:%v", v, v))
	}
}

// WriteKind writes the dynamic Go type of v without its value.
func (h *Hasher) WriteKind(v any) {
	if v == nil {
		h.writeString("<nil>")
		return
	}
	h.writeString(reflect.TypeOf(v).String())
}

// WriteQuery writes a query tree.
func (h *Hasher) WriteQuery(q Query) {
	if q == nil {
		h.tag(0)
		return
	}
	switch n := q.(type) {
	case *Source:
		h.tag('S')
		h.writeString(n.Name)
		h.writeString(n.FilterScope)
	case *FromSQL:
		h.tag('R')
		h.writeString(n.Name)
		h.writeString(n.SQL)
		h.scalars(n.Args)
	case *CollectionRef:
		h.tag('C')
		h.WriteScalar(n.Collection)
	case *Where:
		h.tag('W')
		h.WriteQuery(n.Source)
		h.lambda(n.Predicate)
	case *Select:
		h.tag('P')
		h.WriteQuery(n.Source)
		h.lambda(n.Selector)
	case *SelectMany:
		h.tag('M')
		h.WriteQuery(n.Source)
		h.lambda(n.Collection)
		h.lambda(n.Result)
	case *Join:
		h.tag('J')
		h.WriteQuery(n.Outer)
		h.WriteQuery(n.Inner)
		h.lambda(n.OuterKey)
		h.lambda(n.InnerKey)
		h.lambda(n.Result)
	case *GroupJoin:
		h.tag('G')
		h.WriteQuery(n.Outer)
		h.WriteQuery(n.Inner)
		h.lambda(n.OuterKey)
		h.lambda(n.InnerKey)
		h.lambda(n.Result)
	case *GroupBy:
		h.tag('B')
		h.WriteQuery(n.Source)
		h.lambda(n.Key)
		h.lambda(n.Element)
	case *SetOp:
		h.tag('U')
		h.writeInt(int64(n.Kind))
		h.WriteQuery(n.Left)
		h.WriteQuery(n.Right)
	case *OrderBy:
		h.tag('O')
		h.WriteQuery(n.Source)
		h.lambda(n.Key)
		h.writeBool(n.Descending)
		h.writeBool(n.ThenBy)
	case *Skip:
		h.tag('K')
		h.WriteQuery(n.Source)
		h.WriteScalar(n.Count)
	case *Take:
		h.tag('T')
		h.WriteQuery(n.Source)
		h.WriteScalar(n.Count)
	case *Distinct:
		h.tag('D')
		h.WriteQuery(n.Source)
	case *DefaultIfEmpty:
		h.tag('E')
		h.WriteQuery(n.Source)
	case *OfType:
		h.tag('Y')
		h.WriteQuery(n.Source)
		h.writeString(n.Type)
	case *Include:
		h.tag('N')
		h.WriteQuery(n.Source)
		h.lambda(n.Path)
		h.writeBool(n.Then)
	case *Option:
		h.tag('X')
		h.WriteQuery(n.Source)
		h.writeInt(int64(n.Kind))
	case *Temporal:
		h.tag('H')
		h.WriteQuery(n.Source)
		h.writeInt(int64(n.Mode))
		h.WriteScalar(n.From)
		h.WriteScalar(n.To)
	case *Terminal:
		h.tag('Z')
		h.WriteQuery(n.Source)
		h.writeInt(int64(n.Op))
		h.lambda(n.Arg)
	default:
		panic(fmt.Sprintf("expr: unhandled query node %T", q))
	}
}

// WriteScalar writes a scalar tree.
func (h *Hasher) WriteScalar(s Scalar) {
	if s == nil {
		h.tag(0)
		return
	}
	switch n := s.(type) {
	case *Param:
		h.tag('p')
		h.writeString(n.Name)
	case *Member:
		h.tag('m')
		h.WriteScalar(n.Target)
		h.writeString(n.Name)
	case *Constant:
		h.tag('c')
		h.WriteValue(n.Value)
	case *Captured:
		h.tag('@')
		h.writeString(n.Name)
	case *ContextValue:
		h.tag('x')
		h.writeString(n.Name)
	case *Binary:
		h.tag('b')
		h.writeInt(int64(n.Op))
		h.WriteScalar(n.Left)
		h.WriteScalar(n.Right)
	case *Unary:
		h.tag('u')
		h.writeInt(int64(n.Op))
		h.WriteScalar(n.Operand)
	case *Conditional:
		h.tag('?')
		h.WriteScalar(n.Test)
		h.WriteScalar(n.Then)
		h.WriteScalar(n.Else)
	case *Call:
		h.tag('(')
		h.WriteScalar(n.Target)
		h.writeString(n.Method)
		h.scalars(n.Args)
	case *New:
		h.tag('{')
		h.writeInt(int64(len(n.Members)))
		for _, m := range n.Members {
			h.writeString(m.Name)
			h.WriteScalar(m.Value)
		}
	case *QueryRef:
		h.tag('q')
		h.WriteQuery(n.Query)
	case *Lambda:
		h.lambda(n)
	default:
		panic(fmt.Sprintf("expr: unhandled scalar node %T", s))
	}
}

func (h *Hasher) lambda(l *Lambda) {
	if l == nil {
		h.tag(0)
		return
	}
	h.tag('L')
	h.writeInt(int64(len(l.Params)))
	for _, p := range l.Params {
		h.writeString(p)
	}
	h.WriteScalar(l.Body)
}

func (h *Hasher) scalars(ss []Scalar) {
	h.writeInt(int64(len(ss)))
	for _, s := range ss {
		h.WriteScalar(s)
	}
}
