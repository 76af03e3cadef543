package formula

import (
	"fmt"
	"strconv"
	"strings"

	apperrors "specview/internal/errors"
)

// Operand names a column group the formula may reference
type Operand string

const (
	OperandS   Operand = "S"
	OperandBG1 Operand = "BG1"
	OperandBG2 Operand = "BG2"
	OperandI0  Operand = "I0"
)

// operandOrder fixes the order used for validation and listings
var operandOrder = []Operand{OperandS, OperandBG1, OperandBG2, OperandI0}

func lookupOperand(name string) (Operand, bool) {
	for _, op := range operandOrder {
		if string(op) == name {
			return op, true
		}
	}
	return "", false
}

// Node is an expression tree node
type Node interface {
	String() string
}

// NumberNode is a numeric literal
type NumberNode struct {
	Value float64
}

func (n *NumberNode) String() string { return strconv.FormatFloat(n.Value, 'g', -1, 64) }

// OperandNode references a column group
type OperandNode struct {
	Name Operand
}

func (n *OperandNode) String() string { return string(n.Name) }

// UnaryNode is a sign applied to an operand expression
type UnaryNode struct {
	Op      TokenType
	Operand Node
}

func (n *UnaryNode) String() string {
	if n.Op == TokenMinus {
		return "(-" + n.Operand.String() + ")"
	}
	return n.Operand.String()
}

// BinaryNode is an arithmetic operation
type BinaryNode struct {
	Op    TokenType
	Left  Node
	Right Node
}

func (n *BinaryNode) String() string {
	return "(" + n.Left.String() + " " + strings.Trim(n.Op.String(), "'") + " " + n.Right.String() + ")"
}

// Expression is a parsed formula
type Expression struct {
	Source string
	Root   Node
	refs   map[Operand]bool
}

// References reports whether the formula mentions the operand
func (e *Expression) References(op Operand) bool {
	return e.refs[op]
}

// Operands lists the referenced operands in S, BG1, BG2, I0 order
func (e *Expression) Operands() []Operand {
	ops := make([]Operand, 0, len(e.refs))
	for _, op := range operandOrder {
		if e.refs[op] {
			ops = append(ops, op)
		}
	}
	return ops
}

// parser is a recursive-descent parser over the token stream:
//
//	expr    = term { ("+" | "-") term }
//	term    = unary { ("*" | "/") unary }
//	unary   = ("-" | "+") unary | primary
//	primary = number | operand | "(" expr ")"
type parser struct {
	tokens []Token
	pos    int
	refs   map[Operand]bool
}

// Parse compiles a formula into an expression tree
func Parse(src string) (*Expression, error) {
	tokens, err := Tokenize(src)
	if err != nil {
		return nil, err
	}
	if len(tokens) == 1 {
		return nil, apperrors.NewFormulaSyntaxError("formula is empty", 0)
	}

	p := &parser{tokens: tokens, refs: make(map[Operand]bool)}
	root, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.Type != TokenEOF {
		return nil, unexpected(tok)
	}

	return &Expression{Source: src, Root: root, refs: p.refs}, nil
}

func (p *parser) peek() Token {
	return p.tokens[p.pos]
}

func (p *parser) next() Token {
	tok := p.tokens[p.pos]
	if tok.Type != TokenEOF {
		p.pos++
	}
	return tok
}

func (p *parser) parseExpr() (Node, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for {
		tok := p.peek()
		if tok.Type != TokenPlus && tok.Type != TokenMinus {
			return left, nil
		}
		p.next()
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		left = &BinaryNode{Op: tok.Type, Left: left, Right: right}
	}
}

func (p *parser) parseTerm() (Node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		tok := p.peek()
		if tok.Type != TokenStar && tok.Type != TokenSlash {
			return left, nil
		}
		p.next()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &BinaryNode{Op: tok.Type, Left: left, Right: right}
	}
}

func (p *parser) parseUnary() (Node, error) {
	tok := p.peek()
	if tok.Type == TokenMinus || tok.Type == TokenPlus {
		p.next()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &UnaryNode{Op: tok.Type, Operand: operand}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (Node, error) {
	tok := p.next()
	switch tok.Type {
	case TokenNumber:
		return &NumberNode{Value: tok.Value}, nil
	case TokenIdentifier:
		op, ok := lookupOperand(tok.Text)
		if !ok {
			return nil, apperrors.NewFormulaSyntaxError(
				fmt.Sprintf("unknown operand %q at position %d (expected S, BG1, BG2 or I0)", tok.Text, tok.Pos), tok.Pos)
		}
		p.refs[op] = true
		return &OperandNode{Name: op}, nil
	case TokenLeftParen:
		inner, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if closing := p.next(); closing.Type != TokenRightParen {
			return nil, apperrors.NewFormulaSyntaxError(
				fmt.Sprintf("expected ')' at position %d, found %s", closing.Pos, closing.Type), closing.Pos)
		}
		return inner, nil
	}
	return nil, unexpected(tok)
}

func unexpected(tok Token) error {
	return apperrors.NewFormulaSyntaxError(
		fmt.Sprintf("unexpected %s at position %d", tok.Type, tok.Pos), tok.Pos)
}
