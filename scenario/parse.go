package scenario

import (
	"fmt"
	"strings"
	"text/scanner"
	"unicode"

	"github.com/cottand/jinfer/types"
	"github.com/pkg/errors"
)

// typeParser reads type expressions such as
//
//	Map<String, ? extends List<T>>
//	Outer<String>.Inner<Integer>
//	Number & Comparable<T>
//	int[][]
//
// Names are looked up with lookup.
type typeParser struct {
	scanner scanner.Scanner
	tok     rune
	lookup  func(name string) (types.Type, bool)
	err     error
}

func parseType(expr string, lookup func(name string) (types.Type, bool)) (t types.Type, err error) {
	p := &typeParser{lookup: lookup}
	p.scanner.Init(strings.NewReader(expr))
	p.scanner.Mode = scanner.ScanIdents
	p.scanner.IsIdentRune = func(ch rune, i int) bool {
		return ch == '_' || ch == '$' || unicode.IsLetter(ch) || unicode.IsDigit(ch) && i > 0
	}
	p.scanner.Error = func(s *scanner.Scanner, msg string) {
		p.fail("%s", msg)
	}
	p.next()

	t = p.parseType()
	if p.err == nil && p.tok != scanner.EOF {
		p.fail("unexpected %s after type", p.token())
	}
	if p.err != nil {
		return nil, errors.Wrapf(p.err, "cannot parse type %q", expr)
	}
	return t, nil
}

func (p *typeParser) next() {
	p.tok = p.scanner.Scan()
}

// fail records the first error only, later ones are usually a consequence of it
func (p *typeParser) fail(format string, args ...any) {
	if p.err == nil {
		p.err = errors.Errorf("%s: %s", p.scanner.Position, fmt.Sprintf(format, args...))
	}
}

func (p *typeParser) expect(tok rune) {
	if p.tok != tok {
		p.fail("expected %s, found %s", scanner.TokenString(tok), p.token())
		return
	}
	p.next()
}

// token describes the current token for error messages
func (p *typeParser) token() string {
	if p.tok == scanner.Ident {
		return p.scanner.TokenText()
	}
	return scanner.TokenString(p.tok)
}

func (p *typeParser) isKeyword(word string) bool {
	return p.tok == scanner.Ident && p.scanner.TokenText() == word
}

func (p *typeParser) parseType() types.Type {
	members := []types.Type{p.parseArray()}
	for p.err == nil && p.tok == '&' {
		p.next()
		members = append(members, p.parseArray())
	}
	if p.err != nil {
		return nil
	}
	if len(members) == 1 {
		return members[0]
	}
	return types.NewIntersection(members...)
}

func (p *typeParser) parseArray() types.Type {
	t := p.parsePrimary()
	for p.err == nil && p.tok == '[' {
		p.next()
		p.expect(']')
		t = types.NewArray(t)
	}
	return t
}

func (p *typeParser) parsePrimary() types.Type {
	switch {
	case p.tok == '?':
		return p.parseWildcard()
	case p.tok != scanner.Ident:
		p.fail("expected a type, found %s", p.token())
		return nil
	}

	name := p.scanner.TokenText()
	p.next()
	for p.err == nil && p.tok == '.' {
		p.next()
		if p.tok != scanner.Ident {
			p.fail("expected a name after '.', found %s", p.token())
			return nil
		}
		name += "." + p.scanner.TokenText()
		p.next()
	}
	t, ok := p.lookup(name)
	if !ok {
		p.fail("unknown type %s", name)
		return nil
	}
	if p.tok != '<' {
		return t
	}
	t = p.parseArguments(nil, t)

	// member classes of a parameterized type, Outer<A>.Inner<B>
	for p.err == nil && p.tok == '.' {
		p.next()
		if p.tok != scanner.Ident {
			p.fail("expected a member class after '.', found %s", p.token())
			return nil
		}
		member, ok := p.lookup(p.scanner.TokenText())
		if !ok {
			p.fail("unknown member class %s", p.scanner.TokenText())
			return nil
		}
		p.next()
		t = p.parseArguments(t, member)
	}
	return t
}

// parseArguments applies class to the type arguments that follow, with owner as the enclosing type
func (p *typeParser) parseArguments(owner types.Type, class types.Type) types.Type {
	raw, ok := class.(*types.Class)
	if !ok || !raw.IsGeneric() {
		p.fail("%v cannot take type arguments", class)
		return nil
	}
	p.expect('<')
	var args []types.Type
	for p.err == nil {
		args = append(args, p.parseType())
		if p.tok != ',' {
			break
		}
		p.next()
	}
	p.expect('>')
	if p.err != nil {
		return nil
	}
	if len(args) != len(raw.TypeParameters()) {
		p.fail("%v expects %d type arguments but got %d", raw, len(raw.TypeParameters()), len(args))
		return nil
	}
	return types.NewOwnedParameterized(owner, raw, args...)
}

func (p *typeParser) parseWildcard() types.Type {
	p.next()
	switch {
	case p.isKeyword("extends"):
		p.next()
		bound := p.parseType()
		if p.err != nil {
			return nil
		}
		return types.Extends(intersectionMembers(bound)...)
	case p.isKeyword("super"):
		p.next()
		bound := p.parseType()
		if p.err != nil {
			return nil
		}
		return types.Super(intersectionMembers(bound)...)
	}
	return types.Unbounded()
}

func intersectionMembers(t types.Type) []types.Type {
	if inter, ok := t.(*types.Intersection); ok {
		return inter.Types()
	}
	return []types.Type{t}
}
