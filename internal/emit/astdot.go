package emit

import (
	"fmt"
	"strings"

	"github.com/standardbeagle/solis/internal/ast"
)

// ASTDot renders parsed source units as a graphviz document for
// --emit ast-dot.
func ASTDot(units []*ast.SourceUnit) string {
	var sb strings.Builder
	sb.WriteString("strict digraph ast {\n")
	n := 0
	node := func(label string) int {
		id := n
		n++
		fmt.Fprintf(&sb, "\tn%d [label=%q];\n", id, label)
		return id
	}
	edge := func(from, to int) {
		fmt.Fprintf(&sb, "\tn%d -> n%d;\n", from, to)
	}
	for _, unit := range units {
		if unit == nil {
			continue
		}
		root := node(fmt.Sprintf("file %d", unit.FileNo))
		for _, item := range unit.Items {
			var id int
			switch x := item.(type) {
			case *ast.PragmaDirective:
				id = node("pragma " + x.Name.Name)
			case *ast.ImportDirective:
				id = node("import " + x.Path)
			case *ast.ContractDefinition:
				id = node(fmt.Sprintf("%s %s", x.Kind, x.Name.Name))
				for _, part := range x.Parts {
					var pid int
					switch p := part.(type) {
					case *ast.FunctionDefinition:
						pid = node(fmt.Sprintf("%s %s", p.Kind, p.Name.Name))
					case *ast.VariableDefinition:
						pid = node("variable " + p.Name.Name)
					case *ast.StructDefinition:
						pid = node("struct " + p.Name.Name)
					case *ast.EnumDefinition:
						pid = node("enum " + p.Name.Name)
					case *ast.EventDefinition:
						pid = node("event " + p.Name.Name)
					case *ast.ErrorDefinition:
						pid = node("error " + p.Name.Name)
					default:
						pid = node("item")
					}
					edge(id, pid)
				}
			case *ast.StructDefinition:
				id = node("struct " + x.Name.Name)
			case *ast.EnumDefinition:
				id = node("enum " + x.Name.Name)
			case *ast.EventDefinition:
				id = node("event " + x.Name.Name)
			case *ast.ErrorDefinition:
				id = node("error " + x.Name.Name)
			case *ast.FunctionDefinition:
				id = node("function " + x.Name.Name)
			case *ast.VariableDefinition:
				id = node("constant " + x.Name.Name)
			case *ast.UserTypeDefinition:
				id = node("type " + x.Name.Name)
			case *ast.UsingDirective:
				id = node("using")
			default:
				id = node("item")
			}
			edge(root, id)
		}
	}
	sb.WriteString("}\n")
	return sb.String()
}
