package ir

// StmtKind classifies a statement in a method body.
//
// Control flow is flattened: if/switch/loop/try bodies are all StmtBlock,
// because return-flow analysis only cares which scope a return belongs to,
// not which path reaches it.
type StmtKind string

const (
	StmtReturn     StmtKind = "return"
	StmtThrow      StmtKind = "throw"
	StmtExpr       StmtKind = "expr"
	StmtBlock      StmtKind = "block"
	StmtLambda     StmtKind = "lambda"     // closure body; its own scope
	StmtAnonymous  StmtKind = "anonymous"  // anonymous class instantiation; Decl holds the body
	StmtLocalClass StmtKind = "localclass" // class declared inside the method; Decl holds it
)

// Stmt is one statement node.
type Stmt struct {
	Kind StmtKind  `json:"kind"`
	Expr *Expr     `json:"expr,omitempty"` // return / throw / expr; nil for a bare return
	Body []Stmt    `json:"body,omitempty"` // block / lambda
	Decl *TypeDecl `json:"decl,omitempty"` // anonymous / localclass

	// Scope is the ID of the nearest enclosing method or lambda, assigned by
	// the front end. For StmtLambda it is the lambda's own scope ID.
	Scope string `json:"scope"`
}

// ExprKind classifies an expression.
type ExprKind string

const (
	ExprParam   ExprKind = "param"   // Ref = parameter ID
	ExprLocal   ExprKind = "local"   // local variable; only Type is informative
	ExprLiteral ExprKind = "literal" // compile-time constant
	ExprCall    ExprKind = "call"    // Ref = resolved method ID when known
	ExprField   ExprKind = "field"   // Ref = field ID
	ExprNew     ExprKind = "new"     // Type = instantiated type
	ExprConcat  ExprKind = "concat"  // string concatenation of Args
	ExprCond    ExprKind = "cond"    // conditional; Args are the branches
	ExprThis    ExprKind = "this"
	ExprUnknown ExprKind = "unknown"
)

// Expr is an expression node. Type, when set, is its static type.
type Expr struct {
	Kind    ExprKind `json:"kind"`
	Ref     string   `json:"ref,omitempty"`
	Type    *TypeRef `json:"type,omitempty"`
	Args    []Expr   `json:"args,omitempty"`
	Literal Value    `json:"-"`
}
