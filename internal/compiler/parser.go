package compiler

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"strconv"
	"strings"

	"github.com/aretw0/fixpoint/pkg/cfa"
)

// Parser is responsible for converting edge labels into CFA operations.
//
// Supported forms:
//
//	""                  blank edge
//	"[x < 5]"           assume edge
//	"x := x + 1"        assignment
//	"x := nondet()"     havoc
type Parser struct{}

// NewParser creates a new parser instance.
func NewParser() *Parser {
	return &Parser{}
}

// Parse turns a label into an edge kind and its statement.
// Blank labels yield (cfa.BlankEdge, nil, nil).
func (p *Parser) Parse(label string) (cfa.EdgeKind, cfa.Statement, error) {
	label = strings.TrimSpace(label)
	switch {
	case label == "":
		return cfa.BlankEdge, nil, nil
	case strings.HasPrefix(label, "[") && strings.HasSuffix(label, "]"):
		cond, err := p.ParseExpr(label[1 : len(label)-1])
		if err != nil {
			return 0, nil, fmt.Errorf("failed to parse assume %q: %w", label, err)
		}
		return cfa.AssumeEdge, cfa.Assume{Cond: cond}, nil
	}

	target, rhs, ok := strings.Cut(label, ":=")
	if !ok {
		return 0, nil, fmt.Errorf("failed to parse %q: expected assignment or [condition]", label)
	}
	target = strings.TrimSpace(target)
	if !token.IsIdentifier(target) {
		return 0, nil, fmt.Errorf("failed to parse %q: invalid assignment target %q", label, target)
	}
	if isNondet(rhs) {
		return cfa.StatementEdge, cfa.Havoc{Target: target}, nil
	}
	value, err := p.ParseExpr(rhs)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to parse assignment %q: %w", label, err)
	}
	return cfa.StatementEdge, cfa.Assign{Target: target, Value: value}, nil
}

// ParseExpr parses a Go-syntax integer expression.
func (p *Parser) ParseExpr(src string) (cfa.Expr, error) {
	node, err := parser.ParseExpr(strings.TrimSpace(src))
	if err != nil {
		return nil, err
	}
	return convert(node)
}

func isNondet(rhs string) bool {
	rhs = strings.TrimSpace(rhs)
	return rhs == "nondet()" || rhs == "*"
}

var binaryOps = map[token.Token]string{
	token.ADD: "+", token.SUB: "-", token.MUL: "*", token.QUO: "/", token.REM: "%",
	token.EQL: "==", token.NEQ: "!=", token.LSS: "<", token.LEQ: "<=", token.GTR: ">", token.GEQ: ">=",
	token.LAND: "&&", token.LOR: "||",
}

func convert(node ast.Expr) (cfa.Expr, error) {
	switch n := node.(type) {
	case *ast.BasicLit:
		if n.Kind != token.INT {
			return nil, fmt.Errorf("unsupported literal %s", n.Value)
		}
		v, err := strconv.ParseInt(n.Value, 0, 64)
		if err != nil {
			return nil, err
		}
		return cfa.Const{Value: v}, nil
	case *ast.Ident:
		switch n.Name {
		case "true":
			return cfa.Const{Value: 1}, nil
		case "false":
			return cfa.Const{Value: 0}, nil
		}
		return cfa.Var{Name: n.Name}, nil
	case *ast.ParenExpr:
		return convert(n.X)
	case *ast.UnaryExpr:
		x, err := convert(n.X)
		if err != nil {
			return nil, err
		}
		switch n.Op {
		case token.SUB:
			return cfa.Unary{Op: "-", X: x}, nil
		case token.NOT:
			return cfa.Unary{Op: "!", X: x}, nil
		case token.ADD:
			return x, nil
		}
		return nil, fmt.Errorf("unsupported unary operator %s", n.Op)
	case *ast.BinaryExpr:
		op, ok := binaryOps[n.Op]
		if !ok {
			return nil, fmt.Errorf("unsupported operator %s", n.Op)
		}
		x, err := convert(n.X)
		if err != nil {
			return nil, err
		}
		y, err := convert(n.Y)
		if err != nil {
			return nil, err
		}
		return cfa.Binary{Op: op, X: x, Y: y}, nil
	default:
		return nil, fmt.Errorf("unsupported expression %T", node)
	}
}
