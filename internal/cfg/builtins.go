package cfg

import (
	"math/big"

	"github.com/standardbeagle/solis/internal/sema"
)

// Panic codes per the standard error encoding.
const (
	PanicGeneric   = 0x00
	PanicAssert    = 0x01
	PanicOverflow  = 0x11
	PanicDivByZero = 0x12
	PanicEnumCast  = 0x21
	PanicBounds    = 0x32
	PanicPop       = 0x31
)

// builtin lowers a resolved builtin call.
func (b *builder) builtin(x *sema.Builtin) Operand {
	loc := x.ExprLoc()
	switch x.Kind {
	case sema.BuiltinRequire:
		cond := b.expr(x.Args[0])
		okBlk := b.g.NewBlock("require.ok")
		failBlk := b.g.NewBlock("require.fail")
		b.g.Blocks[b.cur].Term = CondJump{Cond: cond, True: okBlk, False: failBlk}
		b.cur = failBlk
		if len(x.Args) == 2 {
			reason := b.expr(x.Args[1])
			b.g.Blocks[b.cur].Term = Revert{Kind: RevertString, ErrorNo: -1, Args: []Operand{reason}}
		} else {
			b.g.Blocks[b.cur].Term = Revert{Kind: RevertEmpty, ErrorNo: -1}
		}
		b.debugCheck(loc, "require condition failed")
		b.cur = okBlk
		return ConstBool{Value: true}

	case sema.BuiltinAssert:
		cond := b.expr(x.Args[0])
		okBlk := b.g.NewBlock("assert.ok")
		failBlk := b.g.NewBlock("assert.fail")
		b.g.Blocks[b.cur].Term = CondJump{Cond: cond, True: okBlk, False: failBlk}
		b.cur = failBlk
		b.g.Blocks[b.cur].Term = Revert{
			Kind: RevertPanic, ErrorNo: -1,
			Args: []Operand{ConstInt{Ty: sema.Uint{Width: 256}, Value: big.NewInt(PanicAssert)}},
		}
		b.debugCheck(loc, "assert failure")
		b.cur = okBlk
		return ConstBool{Value: true}

	case sema.BuiltinRevert:
		if len(x.Args) == 1 {
			reason := b.expr(x.Args[0])
			b.g.Blocks[b.cur].Term = Revert{Kind: RevertString, ErrorNo: -1, Args: []Operand{reason}}
		} else {
			b.g.Blocks[b.cur].Term = Revert{Kind: RevertEmpty, ErrorNo: -1}
		}
		b.cur = b.g.NewBlock("after.revert")
		return ConstBool{Value: true}

	case sema.BuiltinSelfDestruct:
		recipient := b.expr(x.Args[0])
		b.g.Blocks[b.cur].Term = SelfDestruct{Recipient: recipient}
		b.cur = b.g.NewBlock("after.selfdestruct")
		return ConstBool{Value: true}

	case sema.BuiltinPrint:
		b.emit(&Print{instrBase: instrBase{At: loc}, Arg: b.expr(x.Args[0])})
		return ConstBool{Value: true}

	case sema.BuiltinKeccak256, sema.BuiltinSha256, sema.BuiltinRipemd160,
		sema.BuiltinBlake2b256, sema.BuiltinRandom:
		res := b.temp("hash", x.Ty())
		if x.Kind == sema.BuiltinRandom {
			b.emit(&EnvRead{instrBase: instrBase{At: loc}, Res: res, Ty: sema.Deref(x.Ty()), Kind: x.Kind})
			// The subject still lowers for its effects.
			b.expr(x.Args[0])
			return res
		}
		b.emit(&Hash{instrBase: instrBase{At: loc}, Res: res, Kind: x.Kind, Arg: b.expr(x.Args[0])})
		return res

	case sema.BuiltinMsgSender, sema.BuiltinMsgValue, sema.BuiltinMsgData,
		sema.BuiltinMsgSig, sema.BuiltinBlockNumber, sema.BuiltinTimestamp,
		sema.BuiltinSlot, sema.BuiltinGasLeft, sema.BuiltinAddressThis,
		sema.BuiltinProgramID, sema.BuiltinAccounts:
		res := b.temp("env", x.Ty())
		b.emit(&EnvRead{instrBase: instrBase{At: loc}, Res: res, Ty: sema.Deref(x.Ty()), Kind: x.Kind})
		return res

	case sema.BuiltinBlockhash:
		res := b.temp("blockhash", x.Ty())
		b.emit(&EnvRead{instrBase: instrBase{At: loc}, Res: res, Ty: sema.Deref(x.Ty()), Kind: x.Kind})
		b.expr(x.Args[0])
		return res

	case sema.BuiltinBalance:
		res := b.temp("balance", x.Ty())
		b.emit(&EnvRead{instrBase: instrBase{At: loc}, Res: res, Ty: sema.Deref(x.Ty()), Kind: x.Kind})
		b.expr(x.Args[0])
		return res

	case sema.BuiltinTransfer, sema.BuiltinSend:
		res := b.temp("sent", sema.Bool{})
		b.emit(&ValueTransfer{
			instrBase: instrBase{At: loc},
			Res:       res,
			Address:   b.expr(x.Args[0]),
			Amount:    b.expr(x.Args[1]),
			FailOk:    x.Kind == sema.BuiltinSend,
		})
		b.debugCheck(loc, "value transfer failure")
		if x.Kind == sema.BuiltinSend {
			return res
		}
		return ConstBool{Value: true}

	case sema.BuiltinArrayLength:
		arg := x.Args[0]
		if _, isStorage := arg.Ty().(sema.StorageRef); isStorage {
			res := b.temp("slen", sema.Uint{Width: 256})
			b.emit(&StorageLoad{
				instrBase: instrBase{At: loc},
				Res:       res, Ty: sema.Uint{Width: 256}, Slot: b.refSlot(arg),
			})
			return res
		}
		res := b.temp("len", sema.Uint{Width: 256})
		b.emit(&Len{instrBase: instrBase{At: loc}, Res: res, Arg: b.expr(arg)})
		return res

	case sema.BuiltinArrayPush:
		slot := b.refSlot(x.Args[0])
		val := b.expr(x.Args[1])
		elemTy := sema.Deref(x.Args[1].Ty())
		b.emit(&Push{instrBase: instrBase{At: loc}, Slot: slot, Ty: elemTy, Value: val})
		return ConstBool{Value: true}

	case sema.BuiltinArrayPop:
		slot := b.refSlot(x.Args[0])
		res := b.temp("pop", x.Ty())
		b.emit(&Pop{instrBase: instrBase{At: loc}, Res: res, Ty: sema.Deref(x.Ty()), Slot: slot})
		b.debugCheck(loc, "pop from empty array")
		return res

	case sema.BuiltinStringConcat, sema.BuiltinBytesConcat:
		res := b.temp("concat", x.Ty())
		var args []Operand
		for _, a := range x.Args {
			args = append(args, b.expr(a))
		}
		b.emit(&Concat{instrBase: instrBase{At: loc}, Res: res, Ty: sema.Deref(x.Ty()), Args: args})
		return res

	case sema.BuiltinAbiEncode, sema.BuiltinAbiEncodePacked,
		sema.BuiltinAbiEncodeWithSelector, sema.BuiltinAbiEncodeWithSignature:
		res := b.temp("encoded", sema.DynamicBytes{})
		instr := &AbiEncode{
			instrBase: instrBase{At: loc},
			Res:       res,
			Packed:    x.Kind == sema.BuiltinAbiEncodePacked,
		}
		args := x.Args
		if x.Kind == sema.BuiltinAbiEncodeWithSelector {
			if sel, ok := x.Args[0].(*sema.BytesLit); ok {
				instr.Selector = sel.Value
				args = x.Args[1:]
			}
		}
		if x.Kind == sema.BuiltinAbiEncodeWithSignature {
			if sig, ok := x.Args[0].(*sema.BytesLit); ok {
				sum := sema.Keccak256(sig.Value)
				instr.Selector = sum[:b.ns.Target.SelectorLength()]
				args = x.Args[1:]
			}
		}
		for _, a := range args {
			instr.Args = append(instr.Args, b.expr(a))
			instr.Tys = append(instr.Tys, sema.Deref(a.Ty()))
		}
		b.emit(instr)
		return res

	case sema.BuiltinAbiDecode:
		res := b.temp("decoded", x.Ty())
		b.emit(&AbiDecode{
			instrBase: instrBase{At: loc},
			Ress:      []Var{res}, Tys: []sema.Type{sema.Deref(x.Ty())},
			Data: b.expr(x.Args[0]),
		})
		b.debugCheck(loc, "abi decode failure")
		return res
	}
	return ConstBool{Value: false}
}
