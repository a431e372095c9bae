package cfg

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/standardbeagle/solis/internal/sema"
)

// String renders the graph for --emit cfg and for tests. The format is
// stable: one block per stanza, one instruction per line.
func (g *Graph) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "cfg %s\n", g.Name)
	for no, blk := range g.Blocks {
		fmt.Fprintf(&sb, "block%d: # %s\n", no, blk.Name)
		for _, instr := range blk.Instrs {
			fmt.Fprintf(&sb, "\t%s\n", g.formatInstr(instr))
		}
		fmt.Fprintf(&sb, "\t%s\n", g.formatTerm(blk.Term))
	}
	return sb.String()
}

func (g *Graph) formatOperand(o Operand) string {
	switch x := o.(type) {
	case Var:
		name := ""
		if x.ID < len(g.Vars) {
			name = g.Vars[x.ID].Name
		}
		if name != "" {
			return fmt.Sprintf("%%%d(%s)", x.ID, name)
		}
		return fmt.Sprintf("%%%d", x.ID)
	case ConstInt:
		return fmt.Sprintf("%s %s", x.Ty, x.Value)
	case ConstBool:
		return fmt.Sprintf("bool %v", x.Value)
	case ConstBytes:
		return fmt.Sprintf("%s hex\"%s\"", x.Ty, hex.EncodeToString(x.Value))
	}
	return "?"
}

func (g *Graph) formatOperands(ops []Operand) string {
	parts := make([]string, len(ops))
	for i, o := range ops {
		parts[i] = g.formatOperand(o)
	}
	return strings.Join(parts, ", ")
}

func (g *Graph) formatVars(vars []Var) string {
	parts := make([]string, len(vars))
	for i, v := range vars {
		parts[i] = g.formatOperand(v)
	}
	return strings.Join(parts, ", ")
}

func (g *Graph) formatInstr(instr Instr) string {
	switch x := instr.(type) {
	case *Set:
		return fmt.Sprintf("%s = %s", g.formatOperand(x.Res), g.formatOperand(x.Src))
	case *BinOp:
		chk := ""
		if x.CheckOverflow {
			chk = " checked"
		}
		return fmt.Sprintf("%s = %s %s %s%s", g.formatOperand(x.Res),
			g.formatOperand(x.Left), x.Op, g.formatOperand(x.Right), chk)
	case *UnOp:
		op := "-"
		switch x.Op {
		case sema.UnNot:
			op = "!"
		case sema.UnBitNot:
			op = "~"
		}
		return fmt.Sprintf("%s = %s%s", g.formatOperand(x.Res), op, g.formatOperand(x.Expr))
	case *CastOp:
		return fmt.Sprintf("%s = cast %s to %s", g.formatOperand(x.Res), g.formatOperand(x.Expr), x.Ty)
	case *StorageLoad:
		return fmt.Sprintf("%s = storage_load %s (%s)", g.formatOperand(x.Res), g.formatOperand(x.Slot), x.Ty)
	case *StorageStore:
		return fmt.Sprintf("storage_store %s = %s", g.formatOperand(x.Slot), g.formatOperand(x.Value))
	case *StorageClear:
		return fmt.Sprintf("storage_clear %s", g.formatOperand(x.Slot))
	case *KeccakSlot:
		return fmt.Sprintf("%s = slot_hash(%s, %s)", g.formatOperand(x.Res),
			g.formatOperand(x.Slot), g.formatOperand(x.Key))
	case *Hash:
		return fmt.Sprintf("%s = %s(%s)", g.formatOperand(x.Res), x.Kind, g.formatOperand(x.Arg))
	case *EnvRead:
		return fmt.Sprintf("%s = %s", g.formatOperand(x.Res), x.Kind)
	case *StructInit:
		return fmt.Sprintf("%s = struct{%s}", g.formatOperand(x.Res), g.formatOperands(x.Fields))
	case *FieldLoad:
		return fmt.Sprintf("%s = %s.field%d", g.formatOperand(x.Res), g.formatOperand(x.Struct), x.Field)
	case *FieldStore:
		return fmt.Sprintf("%s.field%d = %s", g.formatOperand(x.Struct), x.Field, g.formatOperand(x.Value))
	case *ArrayInit:
		return fmt.Sprintf("%s = array[%s]", g.formatOperand(x.Res), g.formatOperands(x.Items))
	case *AllocDynamic:
		return fmt.Sprintf("%s = alloc %s len %s", g.formatOperand(x.Res), x.Ty, g.formatOperand(x.Length))
	case *IndexLoad:
		return fmt.Sprintf("%s = %s[%s]", g.formatOperand(x.Res), g.formatOperand(x.Array), g.formatOperand(x.Index))
	case *IndexStore:
		return fmt.Sprintf("%s[%s] = %s", g.formatOperand(x.Array), g.formatOperand(x.Index), g.formatOperand(x.Value))
	case *Len:
		return fmt.Sprintf("%s = len(%s)", g.formatOperand(x.Res), g.formatOperand(x.Arg))
	case *Push:
		return fmt.Sprintf("push %s, %s", g.formatOperand(x.Slot), g.formatOperand(x.Value))
	case *Pop:
		return fmt.Sprintf("%s = pop %s", g.formatOperand(x.Res), g.formatOperand(x.Slot))
	case *Concat:
		return fmt.Sprintf("%s = concat(%s)", g.formatOperand(x.Res), g.formatOperands(x.Args))
	case *AbiEncode:
		return fmt.Sprintf("%s = abi_encode(%s)", g.formatOperand(x.Res), g.formatOperands(x.Args))
	case *AbiDecode:
		return fmt.Sprintf("%s = abi_decode(%s)", g.formatVars(x.Ress), g.formatOperand(x.Data))
	case *CallInternal:
		return fmt.Sprintf("%s = call fn%d(%s)", g.formatVars(x.Ress), x.FunctionNo, g.formatOperands(x.Args))
	case *CallExternal:
		return fmt.Sprintf("%s = external_call %s fn%d(%s)", g.formatVars(x.Ress),
			g.formatOperand(x.Address), x.FunctionNo, g.formatOperands(x.Args))
	case *Create:
		return fmt.Sprintf("%s = create contract%d(%s)", g.formatOperand(x.Res), x.ContractNo, g.formatOperands(x.Args))
	case *EmitEvent:
		return fmt.Sprintf("emit event%d topics(%s) data %s", x.EventNo,
			g.formatOperands(x.Topics), g.formatOperand(x.Data))
	case *ValueTransfer:
		return fmt.Sprintf("transfer %s to %s", g.formatOperand(x.Amount), g.formatOperand(x.Address))
	case *Print:
		return fmt.Sprintf("print %s", g.formatOperand(x.Arg))
	case *CatchMatch:
		return fmt.Sprintf("%s = catch_match %s", g.formatOperand(x.Res), g.formatOperand(x.Data))
	case *CatchPayload:
		return fmt.Sprintf("%s = catch_payload %s", g.formatOperand(x.Res), g.formatOperand(x.Data))
	}
	return "?"
}

func (g *Graph) formatTerm(t Terminator) string {
	switch x := t.(type) {
	case Jump:
		return fmt.Sprintf("jump block%d", x.Block)
	case CondJump:
		return fmt.Sprintf("condjump %s, block%d, block%d", g.formatOperand(x.Cond), x.True, x.False)
	case Return:
		return fmt.Sprintf("return %s", g.formatOperands(x.Values))
	case Revert:
		switch x.Kind {
		case RevertString:
			return fmt.Sprintf("revert error_string %s", g.formatOperands(x.Args))
		case RevertPanic:
			return fmt.Sprintf("revert panic %s", g.formatOperands(x.Args))
		case RevertCustom:
			return fmt.Sprintf("revert error%d %s", x.ErrorNo, g.formatOperands(x.Args))
		}
		return "revert"
	case Unreachable:
		return "unreachable"
	case SelfDestruct:
		return fmt.Sprintf("selfdestruct %s", g.formatOperand(x.Recipient))
	case nil:
		return "<no terminator>"
	}
	return "?"
}
