// Package abi emits the per-target interface descriptions: the JSON
// metadata half of a polkadot .contract bundle and the Anchor-style
// IDL for solana. It walks the contract's public surface — external
// and public functions (including synthesized accessors), events,
// errors and the constructor — out of the resolved namespace.
package abi

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mr-tron/base58"

	"github.com/standardbeagle/solis/internal/ast"
	"github.com/standardbeagle/solis/internal/sema"
)

// Param is one named type in a metadata document.
type Param struct {
	Label string `json:"label"`
	Type  string `json:"type"`
}

// Message describes one dispatchable function.
type Message struct {
	Label    string   `json:"label"`
	Selector string   `json:"selector"`
	Mutates  bool     `json:"mutates"`
	Payable  bool     `json:"payable"`
	Args     []Param  `json:"args"`
	Returns  []Param  `json:"returnType,omitempty"`
	Docs     []string `json:"docs,omitempty"`
}

// Event describes one event definition.
type Event struct {
	Label     string       `json:"label"`
	Anonymous bool         `json:"anonymous,omitempty"`
	Args      []EventParam `json:"args"`
}

// EventParam is one event field.
type EventParam struct {
	Label   string `json:"label"`
	Type    string `json:"type"`
	Indexed bool   `json:"indexed"`
}

// ErrorDef describes a user error type.
type ErrorDef struct {
	Label    string  `json:"label"`
	Selector string  `json:"selector"`
	Args     []Param `json:"args"`
}

// Metadata is the interface description attached to a polkadot
// .contract bundle.
type Metadata struct {
	Name         string     `json:"name"`
	Constructors []Message  `json:"constructors"`
	Messages     []Message  `json:"messages"`
	Events       []Event    `json:"events,omitempty"`
	Errors       []ErrorDef `json:"errors,omitempty"`
}

// BuildMetadata assembles the metadata for one contract.
func BuildMetadata(ns *sema.Namespace, contractNo int) *Metadata {
	c := ns.Contracts[contractNo]
	meta := &Metadata{Name: c.Name}

	for _, fnNo := range c.Functions {
		fn := ns.Functions[fnNo]
		if !fn.IsExternallyCallable() {
			continue
		}
		switch fn.Kind {
		case ast.FnConstructor:
			meta.Constructors = append(meta.Constructors, buildMessage(ns, fn, "new"))
		case ast.FnFunction:
			meta.Messages = append(meta.Messages, buildMessage(ns, fn, fn.Name))
		}
	}
	if len(meta.Constructors) == 0 {
		// The default constructor still appears in the surface.
		sel := sema.Keccak256([]byte(c.Name + "()"))
		meta.Constructors = append(meta.Constructors, Message{
			Label:    "new",
			Selector: "0x" + hex.EncodeToString(sel[:ns.Target.SelectorLength()]),
		})
	}

	seenEvents := map[int]bool{}
	collectEvents(ns, contractNo, func(evNo int) {
		if seenEvents[evNo] {
			return
		}
		seenEvents[evNo] = true
		ev := ns.Events[evNo]
		e := Event{Label: ev.Name, Anonymous: ev.Anonymous}
		for _, f := range ev.Fields {
			e.Args = append(e.Args, EventParam{
				Label: f.Name, Type: ns.AbiTypeName(f.Type), Indexed: f.Indexed,
			})
		}
		meta.Events = append(meta.Events, e)
	})

	for _, ed := range ns.Errors {
		if !ed.Used {
			continue
		}
		e := ErrorDef{
			Label:    ed.Name,
			Selector: "0x" + hex.EncodeToString(ns.ErrorSelector(ed)),
		}
		for _, f := range ed.Fields {
			e.Args = append(e.Args, Param{Label: f.Name, Type: ns.AbiTypeName(f.Type)})
		}
		meta.Errors = append(meta.Errors, e)
	}
	return meta
}

func buildMessage(ns *sema.Namespace, fn *sema.Function, label string) Message {
	msg := Message{
		Label:    label,
		Selector: "0x" + hex.EncodeToString(ns.FunctionSelector(fn)),
		Mutates:  fn.Mutability != sema.MutPure && fn.Mutability != sema.MutView,
		Payable:  fn.Mutability == sema.MutPayable,
	}
	for _, d := range fn.Doc {
		msg.Docs = append(msg.Docs, d.Text)
	}
	for i, p := range fn.Params {
		name := p.Name
		if name == "" {
			name = fmt.Sprintf("arg%d", i)
		}
		msg.Args = append(msg.Args, Param{Label: name, Type: ns.AbiTypeName(p.Type)})
	}
	for i, ret := range fn.Returns {
		name := ret.Name
		if name == "" {
			name = fmt.Sprintf("ret%d", i)
		}
		msg.Returns = append(msg.Returns, Param{Label: name, Type: ns.AbiTypeName(ret.Type)})
	}
	return msg
}

// collectEvents visits every used event declared by the contract, by a
// contract in its MRO, or outside any contract. Events never marked
// used are skipped.
func collectEvents(ns *sema.Namespace, contractNo int, visit func(int)) {
	for evNo, ev := range ns.Events {
		if !ev.Used {
			continue
		}
		if ev.ContractNo == contractNo || ev.ContractNo == -1 {
			visit(evNo)
		} else {
			for _, cn := range ns.Contracts[contractNo].MRO {
				if ev.ContractNo == cn {
					visit(evNo)
					break
				}
			}
		}
	}
}

// Discriminator is an 8-byte dispatch key serialized as a JSON number
// array, matching the Anchor IDL convention (encoding/json would
// base64 a plain byte slice).
type Discriminator []byte

// MarshalJSON renders the bytes as a number array.
func (d Discriminator) MarshalJSON() ([]byte, error) {
	parts := make([]string, len(d))
	for i, b := range d {
		parts[i] = fmt.Sprintf("%d", b)
	}
	return []byte("[" + strings.Join(parts, ",") + "]"), nil
}

// UnmarshalJSON accepts a number array.
func (d *Discriminator) UnmarshalJSON(data []byte) error {
	var nums []int
	if err := json.Unmarshal(data, &nums); err != nil {
		return err
	}
	out := make([]byte, len(nums))
	for i, n := range nums {
		if n < 0 || n > 255 {
			return fmt.Errorf("discriminator byte %d out of range", n)
		}
		out[i] = byte(n)
	}
	*d = out
	return nil
}

// IDLAccount is one account constraint of an instruction.
type IDLAccount struct {
	Name     string `json:"name"`
	IsMut    bool   `json:"isMut"`
	IsSigner bool   `json:"isSigner"`
}

// IDLInstruction is one dispatchable function in an IDL.
type IDLInstruction struct {
	Name          string        `json:"name"`
	Discriminator Discriminator `json:"discriminator"`
	Accounts      []IDLAccount  `json:"accounts"`
	Args          []IDLField    `json:"args"`
	Returns       string        `json:"returns,omitempty"`
}

// IDLField is a named type.
type IDLField struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// IDL is the Anchor-style interface description emitted per contract
// on the solana target.
type IDL struct {
	Version      string           `json:"version"`
	Name         string           `json:"name"`
	ProgramID    string           `json:"programId,omitempty"`
	Instructions []IDLInstruction `json:"instructions"`
	Events       []Event          `json:"events,omitempty"`
	Errors       []ErrorDef       `json:"errors,omitempty"`
}

// BuildIDL assembles the IDL for one contract.
func BuildIDL(ns *sema.Namespace, contractNo int, version string) *IDL {
	c := ns.Contracts[contractNo]
	idl := &IDL{Version: version, Name: c.Name}
	if c.ProgramID != nil {
		idl.ProgramID = base58.Encode(c.ProgramID)
	}
	for _, fnNo := range c.Functions {
		fn := ns.Functions[fnNo]
		if !fn.IsExternallyCallable() || fn.Kind == ast.FnFallback || fn.Kind == ast.FnReceive {
			continue
		}
		name := fn.Name
		if fn.Kind == ast.FnConstructor {
			name = "new"
		}
		inst := IDLInstruction{
			Name:          name,
			Discriminator: ns.FunctionSelector(fn),
		}
		if fn.Annotations.Payer != "" {
			inst.Accounts = append(inst.Accounts, IDLAccount{
				Name: fn.Annotations.Payer, IsMut: true, IsSigner: true,
			})
		}
		for _, acc := range fn.Accounts {
			inst.Accounts = append(inst.Accounts, IDLAccount{
				Name: acc.Name, IsMut: acc.Writable, IsSigner: acc.Signer,
			})
		}
		for i, p := range fn.Params {
			pname := p.Name
			if pname == "" {
				pname = fmt.Sprintf("arg%d", i)
			}
			inst.Args = append(inst.Args, IDLField{Name: pname, Type: ns.AbiTypeName(p.Type)})
		}
		if len(fn.Returns) == 1 {
			inst.Returns = ns.AbiTypeName(fn.Returns[0].Type)
		}
		idl.Instructions = append(idl.Instructions, inst)
	}
	return idl
}
