package scope

import (
	"strconv"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/jward/shade/internal/parser"
)

// builder walks the syntax tree once, opening scopes and recording
// occurrences. Resolution happens afterwards in resolve, because a name is
// local to a scope if it is bound anywhere in that scope, including after
// its first use.
type builder struct {
	src *parser.Tree
	t   *Tree
	cur ScopeID

	selfParams map[OccurrenceID]bool
}

// Build constructs the scope tree of a parsed module.
func Build(tree *parser.Tree) (*Tree, error) {
	b := &builder{
		src:        tree,
		t:          &Tree{},
		cur:        NoScope,
		selfParams: make(map[OccurrenceID]bool),
	}
	b.cur = b.openScope(Module, "", tree.Root)
	b.walkChildren(tree.Root)
	b.resolve()
	if err := b.t.Validate(); err != nil {
		return nil, err
	}
	return b.t, nil
}

// openScope creates a child of the current scope. It does not enter it.
func (b *builder) openScope(kind Kind, name string, n *sitter.Node) ScopeID {
	id := ScopeID(len(b.t.Scopes))
	s := Scope{
		ID:       id,
		Kind:     kind,
		Name:     name,
		Parent:   b.cur,
		Range:    b.src.Range(n),
		names:    make(map[string]BindingID),
		declared: make(map[string]DeclKind),
		kids:     make(map[string]int),
	}
	if b.cur == NoScope {
		s.Path = kind.String()
	} else {
		parent := &b.t.Scopes[b.cur]
		seg := kind.String() + ":" + name
		s.Path = parent.Path + "/" + seg + "#" + strconv.Itoa(parent.kids[seg])
		parent.kids[seg]++
		parent.Children = append(parent.Children, id)
	}
	b.t.Scopes = append(b.t.Scopes, s)
	return id
}

// enter runs fn with s as the current scope.
func (b *builder) enter(s ScopeID, fn func()) {
	prev := b.cur
	b.cur = s
	fn()
	b.cur = prev
}

func (b *builder) add(n *sitter.Node, role Role, kind DeclKind) OccurrenceID {
	return b.addIn(b.cur, n, role, kind)
}

func (b *builder) addIn(s ScopeID, n *sitter.Node, role Role, kind DeclKind) OccurrenceID {
	name := b.src.Text(n)
	id := OccurrenceID(len(b.t.Occurrences))
	b.t.Occurrences = append(b.t.Occurrences, Occurrence{
		ID:      id,
		Name:    name,
		Key:     b.mangle(s, name),
		Range:   b.src.Range(n),
		Scope:   s,
		Role:    role,
		Binding: NoBinding,
		Kind:    kind,
		Base:    NoOccurrence,
		Defines: NoScope,
	})
	return id
}

// mangle applies class-private name mangling: inside class C, __name
// becomes _C__name. Names ending in two underscores and classes whose name
// is all underscores are left alone.
func (b *builder) mangle(s ScopeID, name string) string {
	if !strings.HasPrefix(name, "__") || strings.HasSuffix(name, "__") {
		return name
	}
	c := b.t.EnclosingClass(s)
	if c == NoScope {
		return name
	}
	stripped := strings.TrimLeft(b.t.Scopes[c].Name, "_")
	if stripped == "" {
		return name
	}
	return "_" + stripped + name
}

func (b *builder) walkChildren(n *sitter.Node) {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		b.walk(n.NamedChild(i))
	}
}

// walk visits n in the current scope.
func (b *builder) walk(n *sitter.Node) {
	if n == nil {
		return
	}
	switch n.Type() {
	case "identifier":
		b.add(n, RoleUse, 0)
	case "comment", "type_parameter":
	case "attribute":
		b.walkAttribute(n)
	case "keyword_argument":
		b.walk(n.ChildByFieldName("value"))
	case "decorated_definition":
		b.walkDecorated(n)
	case "function_definition":
		b.walkFunction(n, nil)
	case "class_definition":
		b.walkClass(n, nil)
	case "lambda":
		b.walkLambda(n)
	case "list_comprehension", "set_comprehension", "dictionary_comprehension", "generator_expression":
		b.walkComprehension(n)
	case "assignment":
		b.walk(n.ChildByFieldName("right"))
		b.walk(n.ChildByFieldName("type"))
		b.bindTarget(n.ChildByFieldName("left"), DeclAssign)
	case "augmented_assignment":
		b.walk(n.ChildByFieldName("right"))
		b.bindTarget(n.ChildByFieldName("left"), DeclAssign)
	case "named_expression":
		b.walk(n.ChildByFieldName("value"))
		if name := n.ChildByFieldName("name"); name != nil {
			b.addIn(b.walrusScope(), name, RoleBind, DeclAssign)
		}
	case "for_statement":
		b.walk(n.ChildByFieldName("right"))
		b.bindTarget(n.ChildByFieldName("left"), DeclAssign)
		b.walk(n.ChildByFieldName("body"))
		b.walk(n.ChildByFieldName("alternative"))
	case "as_pattern":
		b.walkAsPattern(n, false)
	case "except_clause", "except_group_clause":
		b.walkExcept(n)
	case "delete_statement":
		for i := 0; i < int(n.NamedChildCount()); i++ {
			b.bindTarget(n.NamedChild(i), DeclAssign)
		}
	case "global_statement":
		b.walkDeclaration(n, DeclGlobal)
	case "nonlocal_statement":
		b.walkDeclaration(n, DeclNonlocal)
	case "import_statement":
		b.walkImport(n)
	case "import_from_statement", "future_import_statement":
		b.walkImportFrom(n)
	case "match_statement":
		b.walkMatch(n)
	case "type_alias_statement":
		b.walkTypeAlias(n)
	default:
		b.walkChildren(n)
	}
}

func (b *builder) walkAttribute(n *sitter.Node) {
	base := NoOccurrence
	obj := n.ChildByFieldName("object")
	if obj != nil && obj.Type() == "identifier" {
		base = b.add(obj, RoleUse, 0)
	} else {
		b.walk(obj)
	}
	if attr := n.ChildByFieldName("attribute"); attr != nil {
		id := b.add(attr, RoleAttribute, 0)
		b.t.Occurrences[id].Base = base
	}
}

// bindTarget records the names bound by an assignment-like target.
// Attributes and subscripts inside a target are ordinary reads of their
// base expression.
func (b *builder) bindTarget(n *sitter.Node, kind DeclKind) {
	if n == nil {
		return
	}
	switch n.Type() {
	case "identifier":
		b.add(n, RoleBind, kind)
	case "pattern_list", "tuple_pattern", "list_pattern", "tuple", "list",
		"expression_list", "parenthesized_expression", "list_splat_pattern",
		"list_splat", "as_pattern_target":
		for i := 0; i < int(n.NamedChildCount()); i++ {
			b.bindTarget(n.NamedChild(i), kind)
		}
	default:
		b.walk(n)
	}
}

// walrusScope is the scope an assignment expression binds in: the nearest
// enclosing scope that is not a comprehension.
func (b *builder) walrusScope() ScopeID {
	s := b.cur
	for b.t.Scopes[s].Kind == Comprehension && b.t.Scopes[s].Parent != NoScope {
		s = b.t.Scopes[s].Parent
	}
	return s
}

func (b *builder) walkDecorated(n *sitter.Node) {
	var decorators []*sitter.Node
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if c := n.NamedChild(i); c.Type() == "decorator" {
			decorators = append(decorators, c)
		}
	}
	def := n.ChildByFieldName("definition")
	switch {
	case def == nil:
		b.walkChildren(n)
	case def.Type() == "class_definition":
		b.walkClass(def, decorators)
	default:
		b.walkFunction(def, decorators)
	}
}

// param is one parameter of a def or lambda.
type param struct {
	name       *sitter.Node // identifier, or a tuple_pattern in legacy code
	annotation *sitter.Node
	value      *sitter.Node
	positional bool // not *args, **kwargs
}

// collectParams lists the parameters of a def or lambda. Parameters after
// a bare * or *args are keyword-only and never positional.
func collectParams(params *sitter.Node) []param {
	if params == nil {
		return nil
	}
	var out []param
	keywordOnly := false
	for i := 0; i < int(params.NamedChildCount()); i++ {
		c := params.NamedChild(i)
		switch c.Type() {
		case "keyword_separator":
			keywordOnly = true
		case "identifier", "tuple_pattern":
			out = append(out, param{name: c, positional: !keywordOnly})
		case "list_splat_pattern", "dictionary_splat_pattern":
			out = append(out, param{name: splatName(c)})
			keywordOnly = true
		case "typed_parameter":
			p := param{annotation: c.ChildByFieldName("type"), positional: !keywordOnly}
			if first := c.NamedChild(0); first != nil {
				if first.Type() == "identifier" {
					p.name = first
				} else {
					p.name = splatName(first)
					p.positional = false
					keywordOnly = true
				}
			}
			out = append(out, p)
		case "default_parameter", "typed_default_parameter":
			out = append(out, param{
				name:       c.ChildByFieldName("name"),
				annotation: c.ChildByFieldName("type"),
				value:      c.ChildByFieldName("value"),
				positional: !keywordOnly,
			})
		}
	}
	return out
}

func splatName(n *sitter.Node) *sitter.Node {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if c := n.NamedChild(i); c.Type() == "identifier" {
			return c
		}
	}
	return nil
}

// walkFunction handles a def. Decorators, defaults, annotations and the
// return annotation are evaluated in the enclosing scope; the name binds
// there too. Parameters and the body belong to the new function scope.
func (b *builder) walkFunction(n *sitter.Node, decorators []*sitter.Node) {
	for _, d := range decorators {
		b.walk(d)
	}
	params := collectParams(n.ChildByFieldName("parameters"))
	for _, p := range params {
		b.walk(p.value)
	}
	nameID, name := b.defName(n)
	for _, p := range params {
		b.walk(p.annotation)
	}
	b.walk(n.ChildByFieldName("return_type"))

	inClass := b.t.Scopes[b.cur].Kind == Class
	fn := b.openScope(Function, name, n)
	if nameID != NoOccurrence {
		b.t.Occurrences[nameID].Defines = fn
	}
	b.enter(fn, func() {
		b.addParams(params, inClass)
		b.walk(n.ChildByFieldName("body"))
	})
}

// addParams records parameters in the current scope. The first positional
// parameter of a method directly inside a class body is its self or cls
// parameter when it carries one of those names.
func (b *builder) addParams(params []param, inClass bool) {
	for i, p := range params {
		if p.name == nil {
			continue
		}
		if p.name.Type() != "identifier" {
			b.bindTarget(p.name, DeclParam)
			continue
		}
		id := b.add(p.name, RoleParam, DeclParam)
		if i == 0 && inClass && p.positional {
			if name := b.t.Occurrences[id].Name; name == "self" || name == "cls" {
				b.selfParams[id] = true
				b.t.Scopes[b.cur].SelfParam = name
			}
		}
	}
}

func (b *builder) walkClass(n *sitter.Node, decorators []*sitter.Node) {
	for _, d := range decorators {
		b.walk(d)
	}
	nameID, name := b.defName(n)
	b.walk(n.ChildByFieldName("superclasses"))

	cls := b.openScope(Class, name, n)
	if nameID != NoOccurrence {
		b.t.Occurrences[nameID].Defines = cls
	}
	b.enter(cls, func() {
		b.walk(n.ChildByFieldName("body"))
	})
}

// defName binds the name of a def or class in the current scope.
func (b *builder) defName(n *sitter.Node) (OccurrenceID, string) {
	nameNode := n.ChildByFieldName("name")
	if nameNode == nil {
		return NoOccurrence, ""
	}
	return b.add(nameNode, RoleBind, DeclDef), b.src.Text(nameNode)
}

func (b *builder) walkLambda(n *sitter.Node) {
	params := collectParams(n.ChildByFieldName("parameters"))
	for _, p := range params {
		b.walk(p.value)
	}
	fn := b.openScope(Lambda, "", n)
	b.enter(fn, func() {
		b.addParams(params, false)
		b.walk(n.ChildByFieldName("body"))
	})
}

// walkComprehension opens the comprehension scope. The first iterable is
// evaluated in the enclosing scope; every other part inside.
func (b *builder) walkComprehension(n *sitter.Node) {
	var clauses []*sitter.Node
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if c.Type() == "for_in_clause" || c.Type() == "if_clause" {
			clauses = append(clauses, c)
		}
	}
	first := true
	for _, c := range clauses {
		if c.Type() == "for_in_clause" {
			for _, it := range forInIterables(c) {
				b.walk(it)
			}
			break
		}
	}

	comp := b.openScope(Comprehension, "", n)
	b.enter(comp, func() {
		for _, c := range clauses {
			if c.Type() == "if_clause" {
				b.walkChildren(c)
				continue
			}
			if !first {
				for _, it := range forInIterables(c) {
					b.walk(it)
				}
			}
			first = false
			b.bindTarget(c.ChildByFieldName("left"), DeclAssign)
		}
		b.walk(n.ChildByFieldName("body"))
	})
}

// forInIterables returns the expressions after the "in" of a for_in_clause.
func forInIterables(c *sitter.Node) []*sitter.Node {
	var out []*sitter.Node
	seenIn := false
	for i := 0; i < int(c.ChildCount()); i++ {
		ch := c.Child(i)
		if !ch.IsNamed() {
			if ch.Type() == "in" {
				seenIn = true
			}
			continue
		}
		if seenIn {
			out = append(out, ch)
		}
	}
	return out
}

// walkAsPattern handles "expr as target" in with items, except clauses and
// case patterns.
func (b *builder) walkAsPattern(n *sitter.Node, inPattern bool) {
	alias := n.ChildByFieldName("alias")
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if alias != nil && c.StartByte() == alias.StartByte() && c.EndByte() == alias.EndByte() {
			continue
		}
		if inPattern {
			b.walkPattern(c)
		} else {
			b.walk(c)
		}
	}
	if alias != nil {
		b.bindTarget(alias, DeclAssign)
	}
}

func (b *builder) walkExcept(n *sitter.Node) {
	seenAs := false
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		if !c.IsNamed() {
			if c.Type() == "as" {
				seenAs = true
			}
			continue
		}
		switch {
		case c.Type() == "block":
			b.walk(c)
		case seenAs:
			b.bindTarget(c, DeclAssign)
		default:
			b.walk(c)
		}
	}
}

func (b *builder) walkDeclaration(n *sitter.Node, kind DeclKind) {
	s := &b.t.Scopes[b.cur]
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if c.Type() != "identifier" {
			continue
		}
		id := b.add(c, RoleDecl, kind)
		s.declared[b.t.Occurrences[id].Key] |= kind
	}
}

// walkImport binds the first component of a dotted import, or the alias.
func (b *builder) walkImport(n *sitter.Node) {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		b.bindImported(n.NamedChild(i), true)
	}
}

// walkImportFrom binds the imported names after the "import" keyword. The
// module path is not a name occurrence; wildcard imports bind nothing.
func (b *builder) walkImportFrom(n *sitter.Node) {
	seenImport := false
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		if !c.IsNamed() {
			if c.Type() == "import" {
				seenImport = true
			}
			continue
		}
		if seenImport {
			b.bindImported(c, false)
		}
	}
}

func (b *builder) bindImported(n *sitter.Node, firstComponent bool) {
	switch n.Type() {
	case "aliased_import":
		if alias := n.ChildByFieldName("alias"); alias != nil {
			b.add(alias, RoleBind, DeclImport)
		}
	case "dotted_name":
		if n.NamedChildCount() == 0 {
			return
		}
		if firstComponent || n.NamedChildCount() == 1 {
			b.add(n.NamedChild(0), RoleBind, DeclImport)
		}
	case "identifier":
		b.add(n, RoleBind, DeclImport)
	}
}

func (b *builder) walkMatch(n *sitter.Node) {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if c.Type() != "block" {
			b.walk(c)
			continue
		}
		for j := 0; j < int(c.NamedChildCount()); j++ {
			cc := c.NamedChild(j)
			if cc.Type() != "case_clause" {
				b.walk(cc)
				continue
			}
			b.walkCase(cc)
		}
	}
}

func (b *builder) walkCase(n *sitter.Node) {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		switch c.Type() {
		case "case_pattern":
			b.walkPattern(c)
		default:
			b.walk(c) // guard and consequence
		}
	}
}

// walkPattern visits a match pattern. Bare names capture (bind), dotted
// names are value patterns (reads), and "_" is the wildcard.
func (b *builder) walkPattern(n *sitter.Node) {
	if n == nil {
		return
	}
	switch n.Type() {
	case "identifier":
		if b.src.Text(n) != "_" {
			b.add(n, RoleBind, DeclAssign)
		}
	case "dotted_name":
		if n.NamedChildCount() == 1 {
			b.walkPattern(n.NamedChild(0))
			return
		}
		b.walkDottedValue(n)
	case "splat_pattern":
		if name := splatName(n); name != nil {
			b.walkPattern(name)
		}
	case "as_pattern":
		b.walkAsPattern(n, true)
	case "class_pattern":
		for i := 0; i < int(n.NamedChildCount()); i++ {
			c := n.NamedChild(i)
			if i == 0 && c.Type() == "dotted_name" {
				b.walkDottedValue(c)
				continue
			}
			b.walkPattern(c)
		}
	case "keyword_pattern":
		// The leading identifier names a class attribute, not a variable.
		for i := 1; i < int(n.NamedChildCount()); i++ {
			b.walkPattern(n.NamedChild(i))
		}
	case "string", "concatenated_string", "integer", "float", "true", "false", "none", "complex_pattern":
	default:
		for i := 0; i < int(n.NamedChildCount()); i++ {
			b.walkPattern(n.NamedChild(i))
		}
	}
}

// walkDottedValue records a.b.c as a read of a followed by attributes.
func (b *builder) walkDottedValue(n *sitter.Node) {
	base := NoOccurrence
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if i == 0 {
			base = b.add(c, RoleUse, 0)
			continue
		}
		id := b.add(c, RoleAttribute, 0)
		if i == 1 {
			b.t.Occurrences[id].Base = base
		}
	}
}

// walkTypeAlias handles "type Name = value". Type parameters are not
// modelled.
func (b *builder) walkTypeAlias(n *sitter.Node) {
	left := n.ChildByFieldName("left")
	if left != nil {
		if name := firstIdentifier(left); name != nil {
			b.add(name, RoleBind, DeclAssign)
		}
	}
	b.walk(n.ChildByFieldName("right"))
}

func firstIdentifier(n *sitter.Node) *sitter.Node {
	if n.Type() == "identifier" {
		return n
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if id := firstIdentifier(n.NamedChild(i)); id != nil {
			return id
		}
	}
	return nil
}
