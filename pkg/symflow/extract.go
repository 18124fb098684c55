package symflow

import (
	sitter "github.com/alexaandru/go-tree-sitter-bare"
)

// rawImport is an import statement before specifier resolution.
type rawImport struct {
	specifier string
	names     []string
}

// extracted holds the unresolved output of a single file's parse.
type extracted struct {
	exports []string
	imports []rawImport
}

// extractFile walks a parsed tree's root node collecting exported bindings
// and raw (unresolved) import statements.
func extractFile(root sitter.Node, src []byte) extracted {
	var out extracted

	walkTopLevel(root, src, &out)

	return out
}

func walkTopLevel(n sitter.Node, src []byte, out *extracted) {
	count := n.NamedChildCount()

	for i := uint32(0); i < count; i++ {
		child := n.NamedChild(i)
		if child.IsNull() {
			continue
		}

		switch child.Type() {
		case "import_statement":
			handleImportStatement(child, src, out)
		case "export_statement":
			handleExportStatement(child, src, out)
		default:
			// Descend into ambient wrappers (e.g. "program" nesting, module
			// blocks) so exports/imports nested one level deep are still
			// found; deeper nesting (inside functions) is intentionally
			// not treated as a module-level export.
			if isContainerNode(child.Type()) {
				walkTopLevel(child, src, out)
			}
		}
	}
}

func isContainerNode(nodeType string) bool {
	switch nodeType {
	case "program", "export_statement", "ambient_declaration", "module":
		return true
	default:
		return false
	}
}

func nodeText(n sitter.Node, src []byte) string {
	start, end := n.StartByte(), n.EndByte()
	if int(end) > len(src) || int(start) > int(end) {
		return ""
	}

	return string(src[start:end])
}

func unquote(s string) string {
	if len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if (first == '"' && last == '"') || (first == '\'' && last == '\'') || (first == '`' && last == '`') {
			return s[1 : len(s)-1]
		}
	}

	return s
}

func handleImportStatement(n sitter.Node, src []byte, out *extracted) {
	sourceNode := n.ChildByFieldName("source")
	if sourceNode.IsNull() {
		return
	}

	specifier := unquote(nodeText(sourceNode, src))
	if specifier == "" {
		return
	}

	names := collectImportedNames(n, src)
	out.imports = append(out.imports, rawImport{specifier: specifier, names: names})
}

func collectImportedNames(n sitter.Node, src []byte) []string {
	var names []string

	count := n.NamedChildCount()
	for i := uint32(0); i < count; i++ {
		child := n.NamedChild(i)
		if child.IsNull() {
			continue
		}

		switch child.Type() {
		case "import_clause":
			names = append(names, collectFromImportClause(child, src)...)
		}
	}

	return names
}

func collectFromImportClause(n sitter.Node, src []byte) []string {
	var names []string

	count := n.NamedChildCount()
	for i := uint32(0); i < count; i++ {
		child := n.NamedChild(i)
		if child.IsNull() {
			continue
		}

		switch child.Type() {
		case "identifier":
			names = append(names, "default")
		case "namespace_import":
			names = append(names, "*")
		case "named_imports":
			names = append(names, collectNamedImportSpecifiers(child, src)...)
		}
	}

	return names
}

func collectNamedImportSpecifiers(n sitter.Node, src []byte) []string {
	var names []string

	count := n.NamedChildCount()
	for i := uint32(0); i < count; i++ {
		spec := n.NamedChild(i)
		if spec.IsNull() || spec.Type() != "import_specifier" {
			continue
		}

		nameNode := spec.ChildByFieldName("name")
		if !nameNode.IsNull() {
			names = append(names, nodeText(nameNode, src))
		}
	}

	return names
}

func handleExportStatement(n sitter.Node, src []byte, out *extracted) {
	if hasDefaultKeyword(n, src) {
		out.exports = append(out.exports, "default")

		return
	}

	if decl := n.ChildByFieldName("declaration"); !decl.IsNull() {
		out.exports = append(out.exports, exportedNamesFromDeclaration(decl, src)...)

		return
	}

	count := n.NamedChildCount()
	for i := uint32(0); i < count; i++ {
		child := n.NamedChild(i)
		if child.IsNull() {
			continue
		}

		if child.Type() == "export_clause" {
			out.exports = append(out.exports, exportedNamesFromClause(child, src)...)
		}
	}
}

func hasDefaultKeyword(n sitter.Node, src []byte) bool {
	count := n.ChildCount()
	for i := uint32(0); i < count; i++ {
		child := n.Child(i)
		if !child.IsNull() && nodeText(child, src) == "default" {
			return true
		}
	}

	return false
}

func exportedNamesFromDeclaration(decl sitter.Node, src []byte) []string {
	switch decl.Type() {
	case "function_declaration", "generator_function_declaration",
		"class_declaration", "interface_declaration", "type_alias_declaration",
		"enum_declaration":
		nameNode := decl.ChildByFieldName("name")
		if nameNode.IsNull() {
			return nil
		}

		return []string{nodeText(nameNode, src)}
	case "lexical_declaration", "variable_declaration":
		return exportedNamesFromVariableDeclaration(decl, src)
	default:
		return nil
	}
}

func exportedNamesFromVariableDeclaration(decl sitter.Node, src []byte) []string {
	var names []string

	count := decl.NamedChildCount()
	for i := uint32(0); i < count; i++ {
		child := decl.NamedChild(i)
		if child.IsNull() || child.Type() != "variable_declarator" {
			continue
		}

		nameNode := child.ChildByFieldName("name")
		if !nameNode.IsNull() && nameNode.Type() == "identifier" {
			names = append(names, nodeText(nameNode, src))
		}
	}

	return names
}

func exportedNamesFromClause(clause sitter.Node, src []byte) []string {
	var names []string

	count := clause.NamedChildCount()
	for i := uint32(0); i < count; i++ {
		spec := clause.NamedChild(i)
		if spec.IsNull() || spec.Type() != "export_specifier" {
			continue
		}

		exportedName := spec.ChildByFieldName("alias")
		if exportedName.IsNull() {
			exportedName = spec.ChildByFieldName("name")
		}

		if !exportedName.IsNull() {
			names = append(names, nodeText(exportedName, src))
		}
	}

	return names
}
