package expr

// Scalar is a value-producing node inside a lambda body.
type Scalar interface {
	scalarNode()
}

// BinaryOp is a binary operator.
type BinaryOp int

const (
	Equal BinaryOp = iota
	NotEqual
	LessThan
	LessThanOrEqual
	GreaterThan
	GreaterThanOrEqual
	AndAlso
	OrElse
	Add
	Subtract
	Multiply
	Divide
	Modulo
	Coalesce
)

var binaryNames = [...]string{
	Equal:              "==",
	NotEqual:           "!=",
	LessThan:           "<",
	LessThanOrEqual:    "<=",
	GreaterThan:        ">",
	GreaterThanOrEqual: ">=",
	AndAlso:            "&&",
	OrElse:             "||",
	Add:                "+",
	Subtract:           "-",
	Multiply:           "*",
	Divide:             "/",
	Modulo:             "%",
	Coalesce:           "??",
}

func (op BinaryOp) String() string {
	if int(op) < len(binaryNames) {
		return binaryNames[op]
	}
	return "?"
}

// IsComparison reports whether op compares its operands.
func (op BinaryOp) IsComparison() bool {
	return op <= GreaterThanOrEqual
}

// IsLogical reports whether op combines boolean operands.
func (op BinaryOp) IsLogical() bool {
	return op == AndAlso || op == OrElse
}

// UnaryOp is a unary operator.
type UnaryOp int

const (
	Not UnaryOp = iota
	Negate
)

func (op UnaryOp) String() string {
	if op == Not {
		return "!"
	}
	return "-"
}

// Param references a lambda parameter.
type Param struct {
	Name string
}

// Member accesses a property, navigation or owned navigation of Target.
type Member struct {
	Target Scalar
	Name   string
}

// Constant is a literal embedded in the query. It stays inline in the SQL.
type Constant struct {
	Value any
}

// Captured is a closure value supplied at execution time. It becomes a parameter.
type Captured struct {
	Name string
}

// ContextValue is a member of the filter context. It becomes a parameter.
type ContextValue struct {
	Name string
}

type Binary struct {
	Op    BinaryOp
	Left  Scalar
	Right Scalar
}

type Unary struct {
	Op      UnaryOp
	Operand Scalar
}

type Conditional struct {
	Test Scalar
	Then Scalar
	Else Scalar
}

// Call invokes Method on Target with Args. A nil Target is a free function.
type Call struct {
	Target Scalar
	Method string
	Args   []Scalar
}

// NamedScalar is one member of an anonymous projection.
type NamedScalar struct {
	Name  string
	Value Scalar
}

// New builds an anonymous record with ordered named members.
type New struct {
	Members []NamedScalar
}

// QueryRef embeds a query as a value: a collection, or a single value when
// the query ends with a terminal operator.
type QueryRef struct {
	Query Query
}

type Lambda struct {
	Params []string
	Body   Scalar
}

func (*Param) scalarNode()        {}
func (*Member) scalarNode()       {}
func (*Constant) scalarNode()     {}
func (*Captured) scalarNode()     {}
func (*ContextValue) scalarNode() {}
func (*Binary) scalarNode()       {}
func (*Unary) scalarNode()        {}
func (*Conditional) scalarNode()  {}
func (*Call) scalarNode()         {}
func (*New) scalarNode()          {}
func (*QueryRef) scalarNode()     {}
func (*Lambda) scalarNode()       {}

// Lambda1 builds a one-parameter lambda.
func Lambda1(param string, body Scalar) *Lambda {
	return &Lambda{Params: []string{param}, Body: body}
}

// Path returns the member names of a chain rooted at a lambda parameter,
// e.g. ["Customer", "City"] for c.Customer.City. ok is false when s is not
// such a chain.
func Path(s Scalar) (root string, path []string, ok bool) {
	for {
		switch n := s.(type) {
		case *Member:
			path = append([]string{n.Name}, path...)
			s = n.Target
		case *Param:
			return n.Name, path, true
		default:
			return "", nil, false
		}
	}
}
