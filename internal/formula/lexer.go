// Package formula parses and evaluates the intensity formula applied to a
// scan's selected column groups. The grammar is fixed: the operands S, BG1,
// BG2 and I0, numeric literals, + - * /, parentheses and unary sign.
package formula

import (
	"fmt"
	"strconv"

	apperrors "specview/internal/errors"
)

// TokenType represents the kind of a formula token
type TokenType int

const (
	TokenEOF TokenType = iota
	TokenNumber
	TokenIdentifier
	TokenPlus
	TokenMinus
	TokenStar
	TokenSlash
	TokenLeftParen
	TokenRightParen
)

func (t TokenType) String() string {
	switch t {
	case TokenEOF:
		return "end of formula"
	case TokenNumber:
		return "number"
	case TokenIdentifier:
		return "identifier"
	case TokenPlus:
		return "'+'"
	case TokenMinus:
		return "'-'"
	case TokenStar:
		return "'*'"
	case TokenSlash:
		return "'/'"
	case TokenLeftParen:
		return "'('"
	case TokenRightParen:
		return "')'"
	}
	return "unknown"
}

// Token is one lexeme with its byte offset in the formula
type Token struct {
	Type  TokenType
	Text  string
	Value float64
	Pos   int
}

var singleCharTokens = map[byte]TokenType{
	'+': TokenPlus,
	'-': TokenMinus,
	'*': TokenStar,
	'/': TokenSlash,
	'(': TokenLeftParen,
	')': TokenRightParen,
}

// Tokenize splits a formula into tokens. Identifiers are maximal runs of
// letters, digits and underscores, so operand names are only recognized on
// token boundaries.
func Tokenize(src string) ([]Token, error) {
	var tokens []Token
	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case isOperator(c):
			tokens = append(tokens, Token{Type: singleCharTokens[c], Text: string(c), Pos: i})
			i++
		case isDigit(c) || c == '.':
			tok, next, err := lexNumber(src, i)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, tok)
			i = next
		case isIdentStart(c):
			start := i
			for i < len(src) && isIdentPart(src[i]) {
				i++
			}
			tokens = append(tokens, Token{Type: TokenIdentifier, Text: src[start:i], Pos: start})
		default:
			return nil, apperrors.NewFormulaSyntaxError(
				fmt.Sprintf("unexpected character %q at position %d", c, i), i)
		}
	}
	tokens = append(tokens, Token{Type: TokenEOF, Pos: len(src)})
	return tokens, nil
}

// lexNumber reads a decimal literal with optional fraction and exponent
func lexNumber(src string, start int) (Token, int, error) {
	i := start
	for i < len(src) && isDigit(src[i]) {
		i++
	}
	if i < len(src) && src[i] == '.' {
		i++
		for i < len(src) && isDigit(src[i]) {
			i++
		}
	}
	if i < len(src) && (src[i] == 'e' || src[i] == 'E') {
		j := i + 1
		if j < len(src) && (src[j] == '+' || src[j] == '-') {
			j++
		}
		if j < len(src) && isDigit(src[j]) {
			for j < len(src) && isDigit(src[j]) {
				j++
			}
			i = j
		}
	}

	text := src[start:i]
	v, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return Token{}, 0, apperrors.NewFormulaSyntaxError(
			fmt.Sprintf("invalid number %q at position %d", text, start), start)
	}
	return Token{Type: TokenNumber, Text: text, Value: v, Pos: start}, i, nil
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isLetter(c byte) bool { return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') }

func isIdentStart(c byte) bool { return c == '_' || isLetter(c) }

func isIdentPart(c byte) bool { return isIdentStart(c) || isDigit(c) }

func isOperator(c byte) bool {
	_, ok := singleCharTokens[c]
	return ok
}
