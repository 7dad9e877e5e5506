package ir

// Node is any IR node.
type Node interface {
	irNode()
}

// Expr is a node that produces a value.
type Expr interface {
	Node
	expr()
}

// Stmt is a node executed for its effect.
type Stmt interface {
	Node
	stmt()
}

// Literal is a compile-time constant: nil, bool, int64, float64 or string.
type Literal struct {
	Value any
}

// Var references a bound variable.
type Var struct {
	Name string
}

// Binary operators.
const (
	OpEq  = "=="
	OpNe  = "!="
	OpAnd = "&&"
	OpOr  = "||"
)

// Binary is a binary operation.
type Binary struct {
	Left  Expr
	Right Expr
	Op    string
}

// OpNot is the only unary operator.
const OpNot = "!"

// Unary is a unary operation.
type Unary struct {
	X  Expr
	Op string
}

// Call invokes a builtin or service by name.
type Call struct {
	Func string
	Args []Expr
}

// MethodCall invokes a named method on a value.
type MethodCall struct {
	Recv   Expr
	Method string
	Args   []Expr
}

// Property reads a field of an object. Class names the descriptor used to
// read it; an empty Class reads a key of a map.
type Property struct {
	X     Expr
	Class string
	Name  string
}

// Index reads an element of a list or dict.
type Index struct {
	X   Expr
	Key Expr
}

// Interpolated concatenates the string forms of its parts.
type Interpolated struct {
	Parts []Expr
}

// Raw is an opaque fragment. Emitted as-is and never merged by Optimize.
type Raw struct {
	Code string
}

// Emit writes the string value of Value to the sink.
type Emit struct {
	Value Expr
}

// Assign binds Name to Value.
type Assign struct {
	Value Expr
	Name  string
}

// ExprStmt evaluates X for its effect (and error).
type ExprStmt struct {
	X Expr
}

// ForEach iterates Collection, binding Key (optional) and Value.
type ForEach struct {
	Collection Expr
	Body       *Block
	Key        string
	Value      string
}

// Branch is one conditional arm of an If.
type Branch struct {
	Cond Expr
	Body *Block
}

// If is an if / else-if / else chain. Else may be nil.
type If struct {
	Else     *Block
	Branches []Branch
}

// Block is a statement sequence.
type Block struct {
	Stmts []Stmt
}

func (*Literal) irNode()      {}
func (*Var) irNode()          {}
func (*Binary) irNode()       {}
func (*Unary) irNode()        {}
func (*Call) irNode()         {}
func (*MethodCall) irNode()   {}
func (*Property) irNode()     {}
func (*Index) irNode()        {}
func (*Interpolated) irNode() {}
func (*Raw) irNode()          {}
func (*Emit) irNode()         {}
func (*Assign) irNode()       {}
func (*ExprStmt) irNode()     {}
func (*ForEach) irNode()      {}
func (*If) irNode()           {}
func (*Block) irNode()        {}

func (*Literal) expr()      {}
func (*Var) expr()          {}
func (*Binary) expr()       {}
func (*Unary) expr()        {}
func (*Call) expr()         {}
func (*MethodCall) expr()   {}
func (*Property) expr()     {}
func (*Index) expr()        {}
func (*Interpolated) expr() {}
func (*Raw) expr()          {}

func (*Emit) stmt()     {}
func (*Assign) stmt()   {}
func (*ExprStmt) stmt() {}
func (*ForEach) stmt()  {}
func (*If) stmt()       {}
func (*Block) stmt()    {}

// Root is the variable holding the value passed to a program.
const Root = "$data"

// Builtin function names.
const (
	FnEncode    = "json.encode" // any value, dynamically
	FnInt       = "json.int"    // int64 -> JSON number
	FnFloat     = "json.float"  // float64 -> JSON number
	FnString    = "json.string" // string -> quoted JSON string
	FnBool      = "json.bool"   // bool -> true/false
	FnKey       = "json.key"    // dict key -> quoted, escaped JSON string
	FnEnumValue = "enum.value"  // (enum name, member) -> backing value
	FnIsNull    = "is.null"     // x == nil
	FnIsInt     = "is.int"      // integer check
	FnIsFloat   = "is.float"    // number check
	FnIsString  = "is.string"   // string check
	FnIsBool    = "is.bool"     // bool check
	FnIsList    = "is.list"     // slice, array or sequence
	FnIsDict    = "is.dict"     // map or keyed sequence
	FnIsObject  = "is.object"   // any object
	FnIsClass   = "is.class"    // (class name, x)
	FnIsEnum    = "is.enum"     // (enum name, x)
	FnFail      = "fail"        // (message, x) -> unexpected_value
	FnLen       = "len"         // length of a list or dict
	ServicePfx  = "service:"    // service:<id>(x)
)

// Helpers for building trees.

// Lit returns a literal node.
func Lit(v any) *Literal { return &Literal{Value: v} }

// V returns a variable reference.
func V(name string) *Var { return &Var{Name: name} }

// Text emits a constant string.
func Text(s string) *Emit { return &Emit{Value: &Literal{Value: s}} }

// Fn returns a call node.
func Fn(name string, args ...Expr) *Call { return &Call{Func: name, Args: args} }

// Seq returns a block of stmts.
func Seq(stmts ...Stmt) *Block { return &Block{Stmts: stmts} }

// IsNil compares x against the nil literal.
func IsNil(x Expr) *Binary { return &Binary{Op: OpEq, Left: x, Right: &Literal{}} }
