package sema

import (
	"github.com/standardbeagle/solis/internal/ast"
	"github.com/standardbeagle/solis/internal/target"
)

// builtinCall finishes a call whose callee resolved to a builtin
// function name or namespace member.
func (b *bodyCtx) builtinCall(x *ast.CallExpr, name string, hint Type, value Expr) Expr {
	ns := b.ns
	if value != nil {
		ns.Errorf(x.Loc, "{value: …} is not valid on '%s'", name)
	}
	loc := x.Loc
	switch name {
	case "require":
		if len(x.Args) != 1 && len(x.Args) != 2 {
			ns.Errorf(loc, "require takes a condition and an optional reason string")
			return unresolvedExpr(loc)
		}
		args := []Expr{b.cond(x.Args[0])}
		if len(x.Args) == 2 {
			args = append(args, b.coerce(b.exprForType(x.Args[1], String{}), String{}))
		}
		return &Builtin{exprBase: exprBase{Loc: loc, Type: Void{}}, Kind: BuiltinRequire, Args: args}

	case "assert":
		if len(x.Args) != 1 {
			ns.Errorf(loc, "assert takes a single condition")
			return unresolvedExpr(loc)
		}
		return &Builtin{
			exprBase: exprBase{Loc: loc, Type: Void{}},
			Kind:     BuiltinAssert,
			Args:     []Expr{b.cond(x.Args[0])},
		}

	case "revert":
		if len(x.Args) > 1 {
			ns.Errorf(loc, "revert takes an optional reason string")
			return unresolvedExpr(loc)
		}
		var args []Expr
		if len(x.Args) == 1 {
			args = append(args, b.coerce(b.exprForType(x.Args[0], String{}), String{}))
		}
		return &Builtin{exprBase: exprBase{Loc: loc, Type: Unreachable{}}, Kind: BuiltinRevert, Args: args}

	case "keccak256", "sha256", "ripemd160", "blake2b_256":
		if len(x.Args) != 1 {
			ns.Errorf(loc, "%s takes a single bytes argument", name)
			return unresolvedExpr(loc)
		}
		arg := b.coerce(b.exprForType(x.Args[0], DynamicBytes{}), DynamicBytes{})
		kind := BuiltinKeccak256
		retTy := Type(Bytes{N: 32})
		switch name {
		case "sha256":
			kind = BuiltinSha256
		case "ripemd160":
			kind = BuiltinRipemd160
			retTy = Bytes{N: 20}
		case "blake2b_256":
			kind = BuiltinBlake2b256
		}
		return &Builtin{exprBase: exprBase{Loc: loc, Type: retTy}, Kind: kind, Args: []Expr{arg}}

	case "blockhash":
		if len(x.Args) != 1 {
			ns.Errorf(loc, "blockhash takes a block number")
			return unresolvedExpr(loc)
		}
		arg := b.coerce(b.exprForType(x.Args[0], Uint{Width: 64}), Uint{Width: 64})
		if b.fn != nil {
			b.fn.ReadsState = true
		}
		return &Builtin{exprBase: exprBase{Loc: loc, Type: Bytes{N: 32}}, Kind: BuiltinBlockhash, Args: []Expr{arg}}

	case "random":
		if ns.Target.Kind != target.Polkadot {
			ns.Errorf(loc, "random is only available when targeting polkadot")
			return unresolvedExpr(loc)
		}
		if len(x.Args) != 1 {
			ns.Errorf(loc, "random takes a bytes subject argument")
			return unresolvedExpr(loc)
		}
		arg := b.coerce(b.exprForType(x.Args[0], DynamicBytes{}), DynamicBytes{})
		if b.fn != nil {
			b.fn.ReadsState = true
		}
		return &Builtin{exprBase: exprBase{Loc: loc, Type: Bytes{N: 32}}, Kind: BuiltinRandom, Args: []Expr{arg}}

	case "gasleft":
		if len(x.Args) != 0 {
			ns.Errorf(loc, "gasleft takes no arguments")
			return unresolvedExpr(loc)
		}
		return &Builtin{exprBase: exprBase{Loc: loc, Type: Uint{Width: 64}}, Kind: BuiltinGasLeft}

	case "print":
		if len(x.Args) != 1 {
			ns.Errorf(loc, "print takes a single string argument")
			return unresolvedExpr(loc)
		}
		arg := b.coerce(b.exprForType(x.Args[0], String{}), String{})
		return &Builtin{exprBase: exprBase{Loc: loc, Type: Void{}}, Kind: BuiltinPrint, Args: []Expr{arg}}

	case "selfdestruct":
		if ns.Target.Kind != target.Polkadot {
			ns.Errorf(loc, "selfdestruct is only available when targeting polkadot")
			return unresolvedExpr(loc)
		}
		if len(x.Args) != 1 {
			ns.Errorf(loc, "selfdestruct takes the recipient address")
			return unresolvedExpr(loc)
		}
		arg := b.coerce(b.exprForType(x.Args[0], Address{Payable: true}), Address{Payable: true})
		if b.fn != nil {
			b.fn.WritesState = true
		}
		return &Builtin{exprBase: exprBase{Loc: loc, Type: Unreachable{}}, Kind: BuiltinSelfDestruct, Args: []Expr{arg}}

	case "type":
		if len(x.Args) != 1 {
			ns.Errorf(loc, "type() takes a single type argument")
			return unresolvedExpr(loc)
		}
		ty := b.r.resolveType(b.tctx, x.Args[0])
		return &typeInfoMarker{exprBase: exprBase{Loc: loc, Type: Void{}}, subject: ty}

	case "string.concat", "bytes.concat":
		kind := BuiltinStringConcat
		argTy := Type(String{})
		if name == "bytes.concat" {
			kind = BuiltinBytesConcat
			argTy = DynamicBytes{}
		}
		var args []Expr
		for _, a := range x.Args {
			args = append(args, b.coerce(b.exprForType(a, argTy), argTy))
		}
		return &Builtin{exprBase: exprBase{Loc: loc, Type: argTy}, Kind: kind, Args: args}

	case "abi.encode", "abi.encodePacked":
		kind := BuiltinAbiEncode
		if name == "abi.encodePacked" {
			kind = BuiltinAbiEncodePacked
		}
		var args []Expr
		for _, a := range x.Args {
			args = append(args, b.expr(a))
		}
		return &Builtin{exprBase: exprBase{Loc: loc, Type: DynamicBytes{}}, Kind: kind, Args: args}

	case "abi.encodeWithSelector":
		if len(x.Args) < 1 {
			ns.Errorf(loc, "abi.encodeWithSelector requires a selector argument")
			return unresolvedExpr(loc)
		}
		selTy := Bytes{N: uint8(ns.Target.SelectorLength())}
		args := []Expr{b.coerce(b.exprForType(x.Args[0], selTy), selTy)}
		for _, a := range x.Args[1:] {
			args = append(args, b.expr(a))
		}
		return &Builtin{exprBase: exprBase{Loc: loc, Type: DynamicBytes{}}, Kind: BuiltinAbiEncodeWithSelector, Args: args}

	case "abi.encodeWithSignature":
		if len(x.Args) < 1 {
			ns.Errorf(loc, "abi.encodeWithSignature requires a signature string")
			return unresolvedExpr(loc)
		}
		args := []Expr{b.coerce(b.exprForType(x.Args[0], String{}), String{})}
		for _, a := range x.Args[1:] {
			args = append(args, b.expr(a))
		}
		return &Builtin{exprBase: exprBase{Loc: loc, Type: DynamicBytes{}}, Kind: BuiltinAbiEncodeWithSignature, Args: args}

	case "abi.decode":
		if len(x.Args) != 2 {
			ns.Errorf(loc, "abi.decode takes the data and a type tuple")
			return unresolvedExpr(loc)
		}
		data := b.coerce(b.exprForType(x.Args[0], DynamicBytes{}), DynamicBytes{})
		ty := b.r.resolveType(b.tctx, x.Args[1])
		return &Builtin{exprBase: exprBase{Loc: loc, Type: ty}, Kind: BuiltinAbiDecode, Args: []Expr{data}}
	}
	ns.Errorf(loc, "'%s' is not callable", name)
	return unresolvedExpr(loc)
}
