package ast

import (
	"bytes"
	"strconv"
	"strings"

	"poly/pkg/token"
)

type Node interface {
	TokenLiteral() string
	String() string
}

type Statement interface {
	Node
	statementNode()
	Line() int
	Column() int
}

type Expression interface {
	Node
	expressionNode()
}

type Program struct {
	Statements []Statement
}

func (p *Program) TokenLiteral() string {
	if len(p.Statements) > 0 {
		return p.Statements[0].TokenLiteral()
	}
	return ""
}

func (p *Program) String() string {
	var out bytes.Buffer
	for _, s := range p.Statements {
		out.WriteString(s.String())
		out.WriteString("\n")
	}
	return out.String()
}

// Statements

type LetStatement struct {
	Token token.Token // the 'let' token
	Name  *Identifier
	Value Expression
}

func (ls *LetStatement) statementNode()       {}
func (ls *LetStatement) TokenLiteral() string { return ls.Token.Literal }
func (ls *LetStatement) Line() int            { return ls.Token.Line }
func (ls *LetStatement) Column() int          { return ls.Token.Column }
func (ls *LetStatement) String() string {
	var out bytes.Buffer
	out.WriteString("let ")
	out.WriteString(ls.Name.String())
	out.WriteString(" = ")
	if ls.Value != nil {
		out.WriteString(ls.Value.String())
	}
	return out.String()
}

type AssignmentStatement struct {
	Token token.Token // the identifier token
	Name  *Identifier
	Value Expression
}

func (as *AssignmentStatement) statementNode()       {}
func (as *AssignmentStatement) TokenLiteral() string { return as.Token.Literal }
func (as *AssignmentStatement) Line() int            { return as.Token.Line }
func (as *AssignmentStatement) Column() int          { return as.Token.Column }
func (as *AssignmentStatement) String() string {
	var out bytes.Buffer
	out.WriteString(as.Name.String())
	out.WriteString(" = ")
	if as.Value != nil {
		out.WriteString(as.Value.String())
	}
	return out.String()
}

// IndexAssignStatement is `target[index] = value`.
type IndexAssignStatement struct {
	Token  token.Token // the '=' token
	Target Expression
	Index  Expression
	Value  Expression
}

func (ia *IndexAssignStatement) statementNode()       {}
func (ia *IndexAssignStatement) TokenLiteral() string { return ia.Token.Literal }
func (ia *IndexAssignStatement) Line() int            { return ia.Token.Line }
func (ia *IndexAssignStatement) Column() int          { return ia.Token.Column }
func (ia *IndexAssignStatement) String() string {
	return ia.Target.String() + "[" + ia.Index.String() + "] = " + ia.Value.String()
}

// AttributeAssignStatement is `object.attribute = value`.
type AttributeAssignStatement struct {
	Token     token.Token // the '=' token
	Object    Expression
	Attribute *Identifier
	Value     Expression
}

func (aa *AttributeAssignStatement) statementNode()       {}
func (aa *AttributeAssignStatement) TokenLiteral() string { return aa.Token.Literal }
func (aa *AttributeAssignStatement) Line() int            { return aa.Token.Line }
func (aa *AttributeAssignStatement) Column() int          { return aa.Token.Column }
func (aa *AttributeAssignStatement) String() string {
	return aa.Object.String() + "." + aa.Attribute.String() + " = " + aa.Value.String()
}

type ReturnStatement struct {
	Token       token.Token // the 'return' token
	ReturnValue Expression
}

func (rs *ReturnStatement) statementNode()       {}
func (rs *ReturnStatement) TokenLiteral() string { return rs.Token.Literal }
func (rs *ReturnStatement) Line() int            { return rs.Token.Line }
func (rs *ReturnStatement) Column() int          { return rs.Token.Column }
func (rs *ReturnStatement) String() string {
	var out bytes.Buffer
	out.WriteString("return")
	if rs.ReturnValue != nil {
		out.WriteString(" ")
		out.WriteString(rs.ReturnValue.String())
	}
	return out.String()
}

type ExpressionStatement struct {
	Token      token.Token // the first token of the expression
	Expression Expression
}

func (es *ExpressionStatement) statementNode()       {}
func (es *ExpressionStatement) TokenLiteral() string { return es.Token.Literal }
func (es *ExpressionStatement) Line() int            { return es.Token.Line }
func (es *ExpressionStatement) Column() int          { return es.Token.Column }
func (es *ExpressionStatement) String() string {
	if es.Expression != nil {
		return es.Expression.String()
	}
	return ""
}

// Parameter is a formal parameter with an optional default expression.
type Parameter struct {
	Name    *Identifier
	Default Expression
}

func (p *Parameter) String() string {
	if p.Default != nil {
		return p.Name.String() + "=" + p.Default.String()
	}
	return p.Name.String()
}

func joinParameters(params []*Parameter) string {
	parts := make([]string, 0, len(params))
	for _, p := range params {
		parts = append(parts, p.String())
	}
	return strings.Join(parts, ", ")
}

type FunctionStatement struct {
	Token      token.Token // 'fn' or 'def'
	Name       *Identifier
	Parameters []*Parameter
	Body       *BlockStatement
}

func (fs *FunctionStatement) statementNode()       {}
func (fs *FunctionStatement) TokenLiteral() string { return fs.Token.Literal }
func (fs *FunctionStatement) Line() int            { return fs.Token.Line }
func (fs *FunctionStatement) Column() int          { return fs.Token.Column }
func (fs *FunctionStatement) String() string {
	var out bytes.Buffer
	out.WriteString("def ")
	out.WriteString(fs.Name.String())
	out.WriteString("(")
	out.WriteString(joinParameters(fs.Parameters))
	out.WriteString("):")
	out.WriteString(fs.Body.String())
	return out.String()
}

type ClassStatement struct {
	Token   token.Token // 'class'
	Name    *Identifier
	Parent  *Identifier
	Methods []*FunctionStatement
}

func (cs *ClassStatement) statementNode()       {}
func (cs *ClassStatement) TokenLiteral() string { return cs.Token.Literal }
func (cs *ClassStatement) Line() int            { return cs.Token.Line }
func (cs *ClassStatement) Column() int          { return cs.Token.Column }
func (cs *ClassStatement) String() string {
	var out bytes.Buffer
	out.WriteString("class ")
	out.WriteString(cs.Name.String())
	if cs.Parent != nil {
		out.WriteString("(" + cs.Parent.String() + ")")
	}
	out.WriteString(":\n")
	for _, m := range cs.Methods {
		out.WriteString("\t" + strings.ReplaceAll(m.String(), "\n", "\n\t") + "\n")
	}
	return out.String()
}

type BlockStatement struct {
	Token      token.Token // INDENT or first token of a one-line body
	Statements []Statement
}

func (bs *BlockStatement) statementNode()       {}
func (bs *BlockStatement) TokenLiteral() string { return bs.Token.Literal }
func (bs *BlockStatement) Line() int            { return bs.Token.Line }
func (bs *BlockStatement) Column() int          { return bs.Token.Column }
func (bs *BlockStatement) String() string {
	var out bytes.Buffer
	out.WriteString("\n")
	for _, s := range bs.Statements {
		out.WriteString("\t" + strings.ReplaceAll(s.String(), "\n", "\n\t") + "\n")
	}
	return out.String()
}

type ElifClause struct {
	Condition Expression
	Body      *BlockStatement
}

type IfStatement struct {
	Token       token.Token // 'if'
	Condition   Expression
	Consequence *BlockStatement
	Elifs       []*ElifClause
	Alternative *BlockStatement
}

func (is *IfStatement) statementNode()       {}
func (is *IfStatement) TokenLiteral() string { return is.Token.Literal }
func (is *IfStatement) Line() int            { return is.Token.Line }
func (is *IfStatement) Column() int          { return is.Token.Column }
func (is *IfStatement) String() string {
	var out bytes.Buffer
	out.WriteString("if ")
	out.WriteString(is.Condition.String())
	out.WriteString(":")
	out.WriteString(is.Consequence.String())
	for _, elif := range is.Elifs {
		out.WriteString("elif ")
		out.WriteString(elif.Condition.String())
		out.WriteString(":")
		out.WriteString(elif.Body.String())
	}
	if is.Alternative != nil {
		out.WriteString("else:")
		out.WriteString(is.Alternative.String())
	}
	return out.String()
}

type WhileStatement struct {
	Token     token.Token // 'while'
	Condition Expression
	Body      *BlockStatement
}

func (ws *WhileStatement) statementNode()       {}
func (ws *WhileStatement) TokenLiteral() string { return ws.Token.Literal }
func (ws *WhileStatement) Line() int            { return ws.Token.Line }
func (ws *WhileStatement) Column() int          { return ws.Token.Column }
func (ws *WhileStatement) String() string {
	return "while " + ws.Condition.String() + ":" + ws.Body.String()
}

type ForStatement struct {
	Token    token.Token // 'for'
	Variable *Identifier
	Iterable Expression
	Body     *BlockStatement
}

func (fs *ForStatement) statementNode()       {}
func (fs *ForStatement) TokenLiteral() string { return fs.Token.Literal }
func (fs *ForStatement) Line() int            { return fs.Token.Line }
func (fs *ForStatement) Column() int          { return fs.Token.Column }
func (fs *ForStatement) String() string {
	return "for " + fs.Variable.String() + " in " + fs.Iterable.String() + ":" + fs.Body.String()
}

type ImportStatement struct {
	Token  token.Token // 'import'
	Module string
}

func (is *ImportStatement) statementNode()       {}
func (is *ImportStatement) TokenLiteral() string { return is.Token.Literal }
func (is *ImportStatement) Line() int            { return is.Token.Line }
func (is *ImportStatement) Column() int          { return is.Token.Column }
func (is *ImportStatement) String() string       { return "import " + is.Module }

type FromImportStatement struct {
	Token  token.Token // 'from'
	Module string
	Names  []string
}

func (fi *FromImportStatement) statementNode()       {}
func (fi *FromImportStatement) TokenLiteral() string { return fi.Token.Literal }
func (fi *FromImportStatement) Line() int            { return fi.Token.Line }
func (fi *FromImportStatement) Column() int          { return fi.Token.Column }
func (fi *FromImportStatement) String() string {
	return "from " + fi.Module + " import " + strings.Join(fi.Names, ", ")
}

type PassStatement struct {
	Token token.Token
}

func (ps *PassStatement) statementNode()       {}
func (ps *PassStatement) TokenLiteral() string { return ps.Token.Literal }
func (ps *PassStatement) Line() int            { return ps.Token.Line }
func (ps *PassStatement) Column() int          { return ps.Token.Column }
func (ps *PassStatement) String() string       { return "pass" }

type BreakStatement struct {
	Token token.Token
}

func (bs *BreakStatement) statementNode()       {}
func (bs *BreakStatement) TokenLiteral() string { return bs.Token.Literal }
func (bs *BreakStatement) Line() int            { return bs.Token.Line }
func (bs *BreakStatement) Column() int          { return bs.Token.Column }
func (bs *BreakStatement) String() string       { return "break" }

type ContinueStatement struct {
	Token token.Token
}

func (cs *ContinueStatement) statementNode()       {}
func (cs *ContinueStatement) TokenLiteral() string { return cs.Token.Literal }
func (cs *ContinueStatement) Line() int            { return cs.Token.Line }
func (cs *ContinueStatement) Column() int          { return cs.Token.Column }
func (cs *ContinueStatement) String() string       { return "continue" }

// TryStatement covers try/except/finally. ExceptType is accepted but never
// matched against the raised error.
type TryStatement struct {
	Token      token.Token // 'try'
	Body       *BlockStatement
	ExceptType string
	ExceptName string
	Handler    *BlockStatement
	Finally    *BlockStatement
}

func (ts *TryStatement) statementNode()       {}
func (ts *TryStatement) TokenLiteral() string { return ts.Token.Literal }
func (ts *TryStatement) Line() int            { return ts.Token.Line }
func (ts *TryStatement) Column() int          { return ts.Token.Column }
func (ts *TryStatement) String() string {
	var out bytes.Buffer
	out.WriteString("try:")
	out.WriteString(ts.Body.String())
	if ts.Handler != nil {
		out.WriteString("except")
		if ts.ExceptType != "" {
			out.WriteString(" " + ts.ExceptType)
		}
		if ts.ExceptName != "" {
			out.WriteString(" as " + ts.ExceptName)
		}
		out.WriteString(":")
		out.WriteString(ts.Handler.String())
	}
	if ts.Finally != nil {
		out.WriteString("finally:")
		out.WriteString(ts.Finally.String())
	}
	return out.String()
}

type RaiseStatement struct {
	Token token.Token // 'raise'
	Value Expression
}

func (rs *RaiseStatement) statementNode()       {}
func (rs *RaiseStatement) TokenLiteral() string { return rs.Token.Literal }
func (rs *RaiseStatement) Line() int            { return rs.Token.Line }
func (rs *RaiseStatement) Column() int          { return rs.Token.Column }
func (rs *RaiseStatement) String() string {
	if rs.Value == nil {
		return "raise"
	}
	return "raise " + rs.Value.String()
}

// Expressions

type Identifier struct {
	Token token.Token // the token.IDENT token
	Value string
}

func (i *Identifier) expressionNode()      {}
func (i *Identifier) TokenLiteral() string { return i.Token.Literal }
func (i *Identifier) String() string       { return i.Value }

type IntegerLiteral struct {
	Token token.Token
	Value int64
}

func (il *IntegerLiteral) expressionNode()      {}
func (il *IntegerLiteral) TokenLiteral() string { return il.Token.Literal }
func (il *IntegerLiteral) String() string       { return il.Token.Literal }

type FloatLiteral struct {
	Token token.Token
	Value float64
}

func (fl *FloatLiteral) expressionNode()      {}
func (fl *FloatLiteral) TokenLiteral() string { return fl.Token.Literal }
func (fl *FloatLiteral) String() string       { return fl.Token.Literal }

type StringLiteral struct {
	Token token.Token
	Value string
}

func (sl *StringLiteral) expressionNode()      {}
func (sl *StringLiteral) TokenLiteral() string { return sl.Token.Literal }
func (sl *StringLiteral) String() string       { return strconv.Quote(sl.Value) }

type Boolean struct {
	Token token.Token
	Value bool
}

func (b *Boolean) expressionNode()      {}
func (b *Boolean) TokenLiteral() string { return b.Token.Literal }
func (b *Boolean) String() string       { return b.Token.Literal }

type NoneLiteral struct {
	Token token.Token
}

func (n *NoneLiteral) expressionNode()      {}
func (n *NoneLiteral) TokenLiteral() string { return n.Token.Literal }
func (n *NoneLiteral) String() string       { return "none" }

// FStringPart is either a literal run (Expr == nil) or an embedded expression.
type FStringPart struct {
	Literal string
	Expr    Expression
}

type FStringLiteral struct {
	Token token.Token
	Parts []FStringPart
}

func (fs *FStringLiteral) expressionNode()      {}
func (fs *FStringLiteral) TokenLiteral() string { return fs.Token.Literal }
func (fs *FStringLiteral) String() string {
	var out bytes.Buffer
	out.WriteString(`f"`)
	for _, part := range fs.Parts {
		if part.Expr != nil {
			out.WriteString("{" + part.Expr.String() + "}")
			continue
		}
		lit := strings.ReplaceAll(part.Literal, "{", "{{")
		out.WriteString(strings.ReplaceAll(lit, "}", "}}"))
	}
	out.WriteString(`"`)
	return out.String()
}

type ListLiteral struct {
	Token    token.Token // the '[' token
	Elements []Expression
}

func (ll *ListLiteral) expressionNode()      {}
func (ll *ListLiteral) TokenLiteral() string { return ll.Token.Literal }
func (ll *ListLiteral) String() string {
	return "[" + joinExpressions(ll.Elements) + "]"
}

type DictPair struct {
	Key   Expression
	Value Expression
}

// DictLiteral keeps its pairs in source order.
type DictLiteral struct {
	Token token.Token // the '{' token
	Pairs []DictPair
}

func (dl *DictLiteral) expressionNode()      {}
func (dl *DictLiteral) TokenLiteral() string { return dl.Token.Literal }
func (dl *DictLiteral) String() string {
	pairs := make([]string, 0, len(dl.Pairs))
	for _, pair := range dl.Pairs {
		pairs = append(pairs, pair.Key.String()+": "+pair.Value.String())
	}
	return "{" + strings.Join(pairs, ", ") + "}"
}

type ListComprehension struct {
	Token     token.Token // the '[' token
	Element   Expression
	Variable  *Identifier
	Iterable  Expression
	Condition Expression
}

func (lc *ListComprehension) expressionNode()      {}
func (lc *ListComprehension) TokenLiteral() string { return lc.Token.Literal }
func (lc *ListComprehension) String() string {
	var out bytes.Buffer
	out.WriteString("[")
	out.WriteString(lc.Element.String())
	out.WriteString(" for ")
	out.WriteString(lc.Variable.String())
	out.WriteString(" in ")
	out.WriteString(lc.Iterable.String())
	if lc.Condition != nil {
		out.WriteString(" if ")
		out.WriteString(lc.Condition.String())
	}
	out.WriteString("]")
	return out.String()
}

type IndexExpression struct {
	Token token.Token // the '[' token
	Left  Expression
	Index Expression
}

func (ie *IndexExpression) expressionNode()      {}
func (ie *IndexExpression) TokenLiteral() string { return ie.Token.Literal }
func (ie *IndexExpression) String() string {
	return "(" + ie.Left.String() + "[" + ie.Index.String() + "])"
}

type MemberExpression struct {
	Token    token.Token // the '.' token
	Object   Expression
	Property *Identifier
}

func (me *MemberExpression) expressionNode()      {}
func (me *MemberExpression) TokenLiteral() string { return me.Token.Literal }
func (me *MemberExpression) String() string {
	return me.Object.String() + "." + me.Property.String()
}

type PrefixExpression struct {
	Token    token.Token // The prefix token, e.g. - or not
	Operator string
	Right    Expression
}

func (pe *PrefixExpression) expressionNode()      {}
func (pe *PrefixExpression) TokenLiteral() string { return pe.Token.Literal }
func (pe *PrefixExpression) String() string {
	op := pe.Operator
	if op == "not" {
		op = "not "
	}
	return "(" + op + pe.Right.String() + ")"
}

type InfixExpression struct {
	Token    token.Token // The operator token, e.g. +
	Left     Expression
	Operator string
	Right    Expression
}

func (ie *InfixExpression) expressionNode()      {}
func (ie *InfixExpression) TokenLiteral() string { return ie.Token.Literal }
func (ie *InfixExpression) String() string {
	return "(" + ie.Left.String() + " " + ie.Operator + " " + ie.Right.String() + ")"
}

// TernaryExpression is `Consequence if Condition else Alternative`.
type TernaryExpression struct {
	Token       token.Token // the 'if' token
	Consequence Expression
	Condition   Expression
	Alternative Expression
}

func (te *TernaryExpression) expressionNode()      {}
func (te *TernaryExpression) TokenLiteral() string { return te.Token.Literal }
func (te *TernaryExpression) String() string {
	return "(" + te.Consequence.String() + " if " + te.Condition.String() + " else " + te.Alternative.String() + ")"
}

type KeywordArgument struct {
	Name  string
	Value Expression
}

func (ka *KeywordArgument) String() string { return ka.Name + "=" + ka.Value.String() }

// CallExpression carries both positional and keyword arguments; Keywords is
// empty for a plain positional call.
type CallExpression struct {
	Token     token.Token // The '(' token
	Function  Expression  // Identifier, MemberExpression or any callable expression
	Arguments []Expression
	Keywords  []*KeywordArgument
}

func (ce *CallExpression) expressionNode()      {}
func (ce *CallExpression) TokenLiteral() string { return ce.Token.Literal }
func (ce *CallExpression) String() string {
	args := make([]string, 0, len(ce.Arguments)+len(ce.Keywords))
	for _, a := range ce.Arguments {
		args = append(args, a.String())
	}
	for _, kw := range ce.Keywords {
		args = append(args, kw.String())
	}
	return ce.Function.String() + "(" + strings.Join(args, ", ") + ")"
}

type LambdaExpression struct {
	Token      token.Token // 'lambda'
	Parameters []*Parameter
	Body       Expression
}

func (le *LambdaExpression) expressionNode()      {}
func (le *LambdaExpression) TokenLiteral() string { return le.Token.Literal }
func (le *LambdaExpression) String() string {
	return "(lambda " + joinParameters(le.Parameters) + ": " + le.Body.String() + ")"
}

// WidgetLiteral is a declarative UI node: `Kind(props):` followed by an
// indented block of children.
type WidgetLiteral struct {
	Token    token.Token // the widget name token
	Kind     string
	Props    []*KeywordArgument
	Children []Expression
}

func (wl *WidgetLiteral) expressionNode()      {}
func (wl *WidgetLiteral) TokenLiteral() string { return wl.Token.Literal }
func (wl *WidgetLiteral) String() string {
	var out bytes.Buffer
	props := make([]string, 0, len(wl.Props))
	for _, p := range wl.Props {
		props = append(props, p.String())
	}
	out.WriteString(wl.Kind + "(" + strings.Join(props, ", ") + "):")
	for _, child := range wl.Children {
		out.WriteString("\n\t" + strings.ReplaceAll(child.String(), "\n", "\n\t"))
	}
	return out.String()
}

func joinExpressions(exprs []Expression) string {
	parts := make([]string, 0, len(exprs))
	for _, e := range exprs {
		parts = append(parts, e.String())
	}
	return strings.Join(parts, ", ")
}
