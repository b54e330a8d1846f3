package parser

import (
	"fmt"
	"strings"
)

type tokenType int

const (
	tokenAtom tokenType = iota // bare identifier, number, ?variable, *
	tokenText                  // double-quoted string
	tokenBreak                 // template separator: newline or ";"
	tokenBang                  // "!" negative-template marker
	tokenEOF
)

// token is one lexeme with its source position
type token struct {
	typ  tokenType
	text string
	line int
	col  int
}

// lexer tokenizes template text
type lexer struct {
	input string
	pos   int
	line  int
	col   int
}

func newLexer(input string) *lexer {
	return &lexer{input: input, line: 1, col: 1}
}

// lex tokenizes the entire input. Newlines are significant (template
// breaks); spaces, tabs and commas are not
func (l *lexer) lex() ([]token, error) {
	var tokens []token
	for l.pos < len(l.input) {
		l.skipBlanks()
		if l.pos >= len(l.input) {
			break
		}

		startLine := l.line
		startCol := l.col

		ch := l.peek()
		switch {
		case ch == '\n' || ch == ';':
			l.advance()
			// Collapse runs of breaks
			if n := len(tokens); n == 0 || tokens[n-1].typ == tokenBreak {
				continue
			}
			tokens = append(tokens, token{typ: tokenBreak, line: startLine, col: startCol})
		case ch == '#':
			// Skip comment until end of line
			for l.pos < len(l.input) && l.peek() != '\n' {
				l.advance()
			}
		case ch == '!':
			l.advance()
			tokens = append(tokens, token{typ: tokenBang, text: "!", line: startLine, col: startCol})
		case ch == '"':
			str, err := l.readString()
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, token{typ: tokenText, text: str, line: startLine, col: startCol})
		default:
			atom := l.readAtom()
			if atom == "" {
				return nil, fmt.Errorf("unexpected character '%c' at %d:%d", ch, l.line, l.col)
			}
			tokens = append(tokens, token{typ: tokenAtom, text: atom, line: startLine, col: startCol})
		}
	}

	tokens = append(tokens, token{typ: tokenEOF, line: l.line, col: l.col})
	return tokens, nil
}

// peek returns the current character without advancing
func (l *lexer) peek() byte {
	if l.pos >= len(l.input) {
		return 0
	}
	return l.input[l.pos]
}

// advance moves to the next character
func (l *lexer) advance() {
	if l.pos < len(l.input) {
		if l.input[l.pos] == '\n' {
			l.line++
			l.col = 1
		} else {
			l.col++
		}
		l.pos++
	}
}

// skipBlanks skips space, tab, carriage return and comma
func (l *lexer) skipBlanks() {
	for l.pos < len(l.input) {
		ch := l.peek()
		if ch == ' ' || ch == '\t' || ch == '\r' || ch == ',' {
			l.advance()
		} else {
			break
		}
	}
}

// readString reads a double-quoted string literal
func (l *lexer) readString() (string, error) {
	var result strings.Builder
	l.advance() // skip opening quote

	for l.pos < len(l.input) {
		ch := l.peek()
		if ch == '"' {
			l.advance() // skip closing quote
			return result.String(), nil
		} else if ch == '\\' {
			l.advance()
			if l.pos >= len(l.input) {
				return "", fmt.Errorf("unexpected end of input in string at %d:%d", l.line, l.col)
			}
			escaped := l.peek()
			switch escaped {
			case 't':
				result.WriteByte('\t')
			case 'r':
				result.WriteByte('\r')
			case 'n':
				result.WriteByte('\n')
			case '\\':
				result.WriteByte('\\')
			case '"':
				result.WriteByte('"')
			default:
				return "", fmt.Errorf("invalid escape sequence '\\%c' at %d:%d", escaped, l.line, l.col)
			}
			l.advance()
		} else {
			result.WriteByte(ch)
			l.advance()
		}
	}

	return "", fmt.Errorf("unterminated string at %d:%d", l.line, l.col)
}

// readAtom reads until the next delimiter or blank
func (l *lexer) readAtom() string {
	var result strings.Builder
	for l.pos < len(l.input) {
		ch := l.peek()
		if isDelimiter(ch) || ch == ' ' || ch == '\t' || ch == '\r' || ch == ',' {
			break
		}
		result.WriteByte(ch)
		l.advance()
	}
	return result.String()
}

// isDelimiter checks if a character ends an atom
func isDelimiter(ch byte) bool {
	return ch == '\n' || ch == ';' || ch == '#' || ch == '!' || ch == '"'
}
