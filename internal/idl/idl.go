// Package idl implements the `solis idl` subcommand: it reads an
// Anchor-style IDL JSON document and writes a Solidity interface stub
// whose selectors match the program's discriminators, ready to import
// for cross-program invocation.
package idl

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/standardbeagle/solis/internal/abi"
	solerrors "github.com/standardbeagle/solis/internal/errors"
)

// Load parses an IDL file.
func Load(path string) (*abi.IDL, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, solerrors.NewFileError("read", path, err)
	}
	var doc abi.IDL
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("cannot parse IDL file %s: %w", path, err)
	}
	if doc.Name == "" {
		return nil, fmt.Errorf("IDL file %s has no program name", path)
	}
	return &doc, nil
}

// solType maps an IDL type spelling back to a Solidity type.
func solType(t string) string {
	switch t {
	case "bool", "string", "bytes", "address":
		return t
	case "publicKey", "pubkey":
		return "address"
	case "u8", "u16", "u32", "u64", "u128":
		return "uint" + t[1:]
	case "i8", "i16", "i32", "i64", "i128":
		return "int" + t[1:]
	}
	if strings.HasSuffix(t, "[]") {
		return solType(strings.TrimSuffix(t, "[]")) + "[]"
	}
	if strings.HasPrefix(t, "uint") || strings.HasPrefix(t, "int") || strings.HasPrefix(t, "bytes") {
		return t
	}
	return "bytes"
}

// dataLocation appends the location keyword reference types need in an
// external signature.
func dataLocation(ty string) string {
	if ty == "string" || ty == "bytes" || strings.HasSuffix(ty, "[]") {
		return ty + " memory"
	}
	return ty
}

// Interface renders the Solidity interface stub for an IDL document.
func Interface(doc *abi.IDL) string {
	var sb strings.Builder
	if doc.ProgramID != "" {
		fmt.Fprintf(&sb, "@program_id(\"%s\")\n", doc.ProgramID)
	}
	fmt.Fprintf(&sb, "interface %s {\n", doc.Name)
	for _, inst := range doc.Instructions {
		if inst.Name == "new" {
			continue // constructors are not callable through an interface
		}
		var params []string
		for _, arg := range inst.Args {
			params = append(params, dataLocation(solType(arg.Type))+" "+arg.Name)
		}
		sel := make([]string, len(inst.Discriminator))
		for i, b := range inst.Discriminator {
			sel[i] = fmt.Sprintf("%d", b)
		}
		if len(sel) > 0 {
			fmt.Fprintf(&sb, "\t@selector([%s])\n", strings.Join(sel, ", "))
		}
		ret := ""
		if inst.Returns != "" {
			ret = fmt.Sprintf(" returns (%s)", dataLocation(solType(inst.Returns)))
		}
		fmt.Fprintf(&sb, "\tfunction %s(%s) external%s;\n", inst.Name, strings.Join(params, ", "), ret)
	}
	sb.WriteString("}\n")
	return sb.String()
}
