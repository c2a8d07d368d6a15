package formula

// Op is a binary arithmetic operator.
type Op byte

const (
	OpAdd Op = '+'
	OpSub Op = '-'
	OpMul Op = '*'
	OpDiv Op = '/'
)

func (o Op) String() string { return string(o) }

// Expr is a node in a parsed expression tree. Leaves are numeric literals
// or field references; every internal node is a binary operator.
type Expr interface {
	exprNode()
}

// NumberLit is a numeric literal leaf.
type NumberLit struct {
	Value float64
}

// FieldRef is a field-name reference leaf, substituted at evaluation time.
type FieldRef struct {
	Name string
}

// BinaryExpr applies Op to two sub-expressions.
type BinaryExpr struct {
	Op    Op
	Left  Expr
	Right Expr
}

func (*NumberLit) exprNode()  {}
func (*FieldRef) exprNode()   {}
func (*BinaryExpr) exprNode() {}
