package ast

import "github.com/standardbeagle/solis/internal/diag"

// Statement is any parse-tree statement.
type Statement interface {
	StmtLoc() diag.Loc
}

// Block is { … }; Unchecked marks `unchecked { … }`.
type Block struct {
	Loc       diag.Loc
	Unchecked bool
	Stmts     []Statement
}

func (s *Block) StmtLoc() diag.Loc { return s.Loc }

// VariableDeclStmt declares one or more locals, possibly destructuring:
// (uint a, , bytes32 b) = f();
type VariableDeclStmt struct {
	Loc         diag.Loc
	Decls       []*Parameter // nil entries are holes in a destructure
	Initializer Expression   // nil when absent
}

func (s *VariableDeclStmt) StmtLoc() diag.Loc { return s.Loc }

// ExprStmt is an expression in statement position.
type ExprStmt struct {
	Loc  diag.Loc
	Expr Expression
}

func (s *ExprStmt) StmtLoc() diag.Loc { return s.Loc }

// IfStmt is if (cond) then [else else].
type IfStmt struct {
	Loc  diag.Loc
	Cond Expression
	Then Statement
	Else Statement // nil when absent
}

func (s *IfStmt) StmtLoc() diag.Loc { return s.Loc }

// WhileStmt is while (cond) body.
type WhileStmt struct {
	Loc  diag.Loc
	Cond Expression
	Body Statement
}

func (s *WhileStmt) StmtLoc() diag.Loc { return s.Loc }

// DoWhileStmt is do body while (cond);
type DoWhileStmt struct {
	Loc  diag.Loc
	Body Statement
	Cond Expression
}

func (s *DoWhileStmt) StmtLoc() diag.Loc { return s.Loc }

// ForStmt is for (init; cond; next) body; any clause may be nil.
type ForStmt struct {
	Loc  diag.Loc
	Init Statement
	Cond Expression
	Next Expression
	Body Statement
}

func (s *ForStmt) StmtLoc() diag.Loc { return s.Loc }

// ReturnStmt is return [expr];
type ReturnStmt struct {
	Loc  diag.Loc
	Expr Expression // nil for bare return
}

func (s *ReturnStmt) StmtLoc() diag.Loc { return s.Loc }

// BreakStmt is break;
type BreakStmt struct {
	Loc diag.Loc
}

func (s *BreakStmt) StmtLoc() diag.Loc { return s.Loc }

// ContinueStmt is continue;
type ContinueStmt struct {
	Loc diag.Loc
}

func (s *ContinueStmt) StmtLoc() diag.Loc { return s.Loc }

// EmitStmt is emit Event(args);
type EmitStmt struct {
	Loc  diag.Loc
	Call *CallExpr
}

func (s *EmitStmt) StmtLoc() diag.Loc { return s.Loc }

// RevertStmt is revert(); revert("reason"); or revert Err(args);
type RevertStmt struct {
	Loc   diag.Loc
	Error *IdentifierPath // nil for plain revert
	Args  []Expression
}

func (s *RevertStmt) StmtLoc() diag.Loc { return s.Loc }

// CatchKind discriminates catch clauses.
type CatchKind int

const (
	CatchAll   CatchKind = iota // catch { } or catch (bytes memory)
	CatchError                  // catch Error(string memory)
	CatchPanic                  // catch Panic(uint)
)

// CatchClause is one catch arm of a try statement.
type CatchClause struct {
	Loc   diag.Loc
	Kind  CatchKind
	Param *Parameter // nil when no binding
	Body  *Block
}

// TryStmt is try expr [returns (…)] { } catch … (polkadot target only).
type TryStmt struct {
	Loc     diag.Loc
	Expr    Expression
	Returns []Parameter
	Ok      *Block
	Catches []CatchClause
}

func (s *TryStmt) StmtLoc() diag.Loc { return s.Loc }

// PlaceholderStmt is the `_;` inside a modifier body.
type PlaceholderStmt struct {
	Loc diag.Loc
}

func (s *PlaceholderStmt) StmtLoc() diag.Loc { return s.Loc }
