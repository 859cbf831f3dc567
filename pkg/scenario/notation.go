package scenario

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/vango-dev/vdiff/pkg/vdom"
)

// ErrSyntax is wrapped by every *ParseError.
var ErrSyntax = errors.New("scenario: notation syntax error")

// ParseError reports the position of a notation syntax error.
// Line and Col are 1-based; Col counts bytes.
type ParseError struct {
	Line int
	Col  int
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%d:%d: %s", e.Line, e.Col, e.Msg)
}

func (e *ParseError) Unwrap() error {
	return ErrSyntax
}

// DefaultTag is the tag of nodes written without one.
const DefaultTag = "li"

// Parse reads a sequence of sibling nodes in tree notation:
//
//	a b:span(c d) _:p "text" !"<b>raw</b>" f:#fragment(x y)
//
// A bare name is an explicit key, "_" leaves the node implicitly keyed. An
// optional ":tag" follows the name (li when absent, "#fragment" for a
// fragment), then optional children in parentheses. Quoted strings are text
// nodes and "!" before a quoted string makes a raw node. Whitespace and
// commas separate siblings.
func Parse(src string) ([]*vdom.VNode, error) {
	p := &parser{src: src, line: 1, col: 1}
	nodes, err := p.nodes(0)
	if err != nil {
		return nil, err
	}
	if !p.eof() {
		return nil, p.errorf("unexpected %q", p.peek())
	}
	return nodes, nil
}

// MustParse is like Parse but panics on error. It is meant for tests and
// package-level fixtures.
func MustParse(src string) []*vdom.VNode {
	nodes, err := Parse(src)
	if err != nil {
		panic(err)
	}
	return nodes
}

// maxNesting bounds parenthesis depth so hostile input cannot exhaust the
// stack.
const maxNesting = 256

type parser struct {
	src  string
	pos  int
	line int
	col  int
}

func (p *parser) nodes(depth int) ([]*vdom.VNode, error) {
	var out []*vdom.VNode
	for {
		p.skipSpace()
		if p.eof() || p.peek() == ')' {
			return out, nil
		}
		n, err := p.node(depth)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
}

func (p *parser) node(depth int) (*vdom.VNode, error) {
	switch c := p.peek(); {
	case c == '"':
		s, err := p.quoted()
		if err != nil {
			return nil, err
		}
		return vdom.Text(s), nil
	case c == '!':
		p.advance()
		if p.eof() || p.peek() != '"' {
			return nil, p.errorf("expected quoted string after '!'")
		}
		s, err := p.quoted()
		if err != nil {
			return nil, err
		}
		return vdom.Raw(s), nil
	case !isNameByte(c):
		return nil, p.errorf("unexpected %q", c)
	}

	name := p.name()
	n := &vdom.VNode{Kind: vdom.KindElement, Tag: DefaultTag}
	if name != "_" {
		n.Key = name
	}

	if !p.eof() && p.peek() == ':' {
		p.advance()
		if !p.eof() && p.peek() == '#' {
			p.advance()
			kind := p.name()
			if kind != "fragment" {
				return nil, p.errorf("unknown node kind %q", "#"+kind)
			}
			n.Kind = vdom.KindFragment
			n.Tag = ""
		} else {
			tag := p.name()
			if tag == "" {
				return nil, p.errorf("expected tag after ':'")
			}
			n.Tag = tag
		}
	}

	if !p.eof() && p.peek() == '(' {
		if depth >= maxNesting {
			return nil, p.errorf("nesting deeper than %d", maxNesting)
		}
		p.advance()
		children, err := p.nodes(depth + 1)
		if err != nil {
			return nil, err
		}
		if p.eof() {
			return nil, p.errorf("missing ')'")
		}
		p.advance()
		n.Children = children
	}
	return n, nil
}

// quoted consumes a Go-syntax double-quoted string.
func (p *parser) quoted() (string, error) {
	line, col := p.line, p.col
	end := p.pos + 1
	for ; end < len(p.src); end++ {
		switch p.src[end] {
		case '\\':
			end++
			continue
		case '\n':
			return "", &ParseError{Line: line, Col: col, Msg: "newline in string"}
		case '"':
		default:
			continue
		}
		break
	}
	if end >= len(p.src) {
		return "", &ParseError{Line: line, Col: col, Msg: "unterminated string"}
	}
	s, err := strconv.Unquote(p.src[p.pos : end+1])
	if err != nil {
		return "", &ParseError{Line: line, Col: col, Msg: "invalid string literal"}
	}
	for p.pos <= end {
		p.advance()
	}
	return s, nil
}

func (p *parser) name() string {
	start := p.pos
	for !p.eof() && isNameByte(p.peek()) {
		p.advance()
	}
	return p.src[start:p.pos]
}

func (p *parser) skipSpace() {
	for !p.eof() {
		switch p.peek() {
		case ' ', '\t', '\r', '\n', ',':
			p.advance()
		default:
			return
		}
	}
}

func (p *parser) eof() bool {
	return p.pos >= len(p.src)
}

func (p *parser) peek() byte {
	return p.src[p.pos]
}

func (p *parser) advance() {
	if p.src[p.pos] == '\n' {
		p.line++
		p.col = 1
	} else {
		p.col++
	}
	p.pos++
}

func (p *parser) errorf(format string, args ...any) *ParseError {
	return &ParseError{Line: p.line, Col: p.col, Msg: fmt.Sprintf(format, args...)}
}

func isNameByte(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' ||
		c == '_' || c == '-' || c == '.'
}

// Format writes nodes back in tree notation. Parse(Format(nodes)) yields an
// equivalent sequence for every tree Parse can produce; attributes are not
// part of the notation and are dropped.
func Format(nodes []*vdom.VNode) string {
	var sb strings.Builder
	formatSeq(&sb, nodes)
	return sb.String()
}

func formatSeq(sb *strings.Builder, nodes []*vdom.VNode) {
	for i, n := range vdom.SeqOf(nodes) {
		if i > 0 {
			sb.WriteByte(' ')
		}
		formatNode(sb, n)
	}
}

func formatNode(sb *strings.Builder, n *vdom.VNode) {
	switch n.Kind {
	case vdom.KindText:
		sb.WriteString(strconv.Quote(n.Text))
		return
	case vdom.KindRaw:
		sb.WriteByte('!')
		sb.WriteString(strconv.Quote(n.Text))
		return
	}

	if n.Key != "" {
		sb.WriteString(n.Key)
	} else {
		sb.WriteByte('_')
	}
	switch {
	case n.Kind != vdom.KindElement:
		sb.WriteString(":#")
		sb.WriteString(strings.ToLower(n.Kind.String()))
	case n.Tag != DefaultTag:
		sb.WriteByte(':')
		sb.WriteString(n.Tag)
	}
	if len(vdom.SeqOf(n.Children)) > 0 {
		sb.WriteByte('(')
		formatSeq(sb, n.Children)
		sb.WriteByte(')')
	}
}
