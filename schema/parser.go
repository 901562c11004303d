package schema

import (
	"fmt"

	"go.bytecodealliance.org/wit"
)

// typeExpr is an unresolved type reference.
type typeExpr struct {
	elem *typeExpr
	name string
	line int
}

type fieldDecl struct {
	typ  *typeExpr
	name string
}

type typeDecl struct {
	alias  *typeExpr
	fields []fieldDecl
	line   int
	record bool
}

type funcDecl struct {
	result *typeExpr
	name   string
	params []fieldDecl
	line   int
}

type parser struct {
	decls map[string]*typeDecl
	toks  []token
	funcs []funcDecl
	pos   int
}

func (p *parser) peek() token { return p.peekAt(0) }

func (p *parser) peekAt(n int) token {
	if p.pos+n >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[p.pos+n]
}

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) accept(text string) bool {
	if t := p.peek(); t.kind == tokPunct && t.text == text {
		p.pos++
		return true
	}
	return false
}

func (p *parser) expect(text string) error {
	if t := p.next(); t.kind != tokPunct || t.text != text {
		return fmt.Errorf("line %d: expected %q, found %s", t.line, text, t)
	}
	return nil
}

func (p *parser) ident() (token, error) {
	t := p.next()
	if t.kind != tokIdent {
		return t, fmt.Errorf("line %d: expected identifier, found %s", t.line, t)
	}
	return t, nil
}

// skipTo consumes tokens through the next text at nesting depth zero.
func (p *parser) skipTo(text string) error {
	depth := 0
	for {
		t := p.next()
		switch {
		case t.kind == tokEOF:
			return fmt.Errorf("line %d: expected %q before end of input", t.line, text)
		case t.kind == tokPunct && depth == 0 && t.text == text:
			return nil
		case t.kind == tokPunct && (t.text == "{" || t.text == "("):
			depth++
		case t.kind == tokPunct && (t.text == "}" || t.text == ")"):
			depth--
		}
	}
}

// items parses declarations until the closing token.
func (p *parser) items(end tokenKind, closer string) error {
	for {
		t := p.peek()
		if t.kind == end && (closer == "" || t.text == closer) {
			p.next()
			return nil
		}
		if t.kind == tokEOF {
			return fmt.Errorf("line %d: expected %q before end of input", t.line, closer)
		}
		if t.kind != tokIdent {
			return fmt.Errorf("line %d: unexpected %s", t.line, t)
		}

		switch t.text {
		case "package", "use", "include":
			if err := p.skipTo(";"); err != nil {
				return err
			}
			continue
		case "world", "interface":
			p.next()
			if _, err := p.ident(); err != nil {
				return err
			}
			if err := p.expect("{"); err != nil {
				return err
			}
			if err := p.items(tokPunct, "}"); err != nil {
				return err
			}
			continue
		case "record":
			p.next()
			if err := p.record(); err != nil {
				return err
			}
			continue
		case "type":
			p.next()
			if err := p.alias(); err != nil {
				return err
			}
			continue
		case "import":
			p.next()
			if err := p.skipTo(";"); err != nil {
				return err
			}
			continue
		case "export":
			p.next()
			// export of a whole interface by name
			if p.peekAt(1).text != ":" {
				if err := p.skipTo(";"); err != nil {
					return err
				}
				continue
			}
		case "enum", "variant", "flags", "resource", "union":
			return fmt.Errorf("line %d: %s declarations are not supported", t.line, t.text)
		}

		if err := p.function(); err != nil {
			return err
		}
	}
}

func (p *parser) declare(name token, d *typeDecl) error {
	if _, dup := p.decls[name.text]; dup {
		return fmt.Errorf("line %d: type %q declared twice", name.line, name.text)
	}
	d.line = name.line
	p.decls[name.text] = d
	return nil
}

func (p *parser) record() error {
	name, err := p.ident()
	if err != nil {
		return err
	}
	if err := p.expect("{"); err != nil {
		return err
	}
	d := &typeDecl{record: true}
	for !p.accept("}") {
		field, err := p.ident()
		if err != nil {
			return err
		}
		if err := p.expect(":"); err != nil {
			return err
		}
		typ, err := p.typ()
		if err != nil {
			return err
		}
		for _, f := range d.fields {
			if f.name == field.text {
				return fmt.Errorf("line %d: record %q has duplicate field %q", field.line, name.text, field.text)
			}
		}
		d.fields = append(d.fields, fieldDecl{name: field.text, typ: typ})
		if !p.accept(",") {
			if err := p.expect("}"); err != nil {
				return err
			}
			break
		}
	}
	return p.declare(name, d)
}

func (p *parser) alias() error {
	name, err := p.ident()
	if err != nil {
		return err
	}
	if err := p.expect("="); err != nil {
		return err
	}
	typ, err := p.typ()
	if err != nil {
		return err
	}
	if err := p.expect(";"); err != nil {
		return err
	}
	return p.declare(name, &typeDecl{alias: typ})
}

func (p *parser) function() error {
	name, err := p.ident()
	if err != nil {
		return err
	}
	if err := p.expect(":"); err != nil {
		return err
	}
	if kw, err := p.ident(); err != nil || kw.text != "func" {
		return fmt.Errorf("line %d: expected func after %q", name.line, name.text)
	}
	if err := p.expect("("); err != nil {
		return err
	}

	fd := funcDecl{name: name.text, line: name.line}
	for !p.accept(")") {
		param, err := p.ident()
		if err != nil {
			return err
		}
		if err := p.expect(":"); err != nil {
			return err
		}
		typ, err := p.typ()
		if err != nil {
			return err
		}
		fd.params = append(fd.params, fieldDecl{name: param.text, typ: typ})
		if !p.accept(",") {
			if err := p.expect(")"); err != nil {
				return err
			}
			break
		}
	}

	if p.accept("->") {
		if p.accept("(") {
			if !p.accept(")") {
				return fmt.Errorf("line %d: %s: multiple results are not supported", name.line, name.text)
			}
		} else if fd.result, err = p.typ(); err != nil {
			return err
		}
	}
	if err := p.expect(";"); err != nil {
		return err
	}
	p.funcs = append(p.funcs, fd)
	return nil
}

func (p *parser) typ() (*typeExpr, error) {
	t, err := p.ident()
	if err != nil {
		return nil, err
	}
	switch t.text {
	case "list":
		if err := p.expect("<"); err != nil {
			return nil, err
		}
		elem, err := p.typ()
		if err != nil {
			return nil, err
		}
		if err := p.expect(">"); err != nil {
			return nil, err
		}
		return &typeExpr{elem: elem, line: t.line}, nil
	case "option", "result", "tuple", "own", "borrow", "future", "stream":
		return nil, fmt.Errorf("line %d: %s types are not supported", t.line, t.text)
	}
	return &typeExpr{name: t.text, line: t.line}, nil
}

var primitiveNames = map[string]bool{
	"bool": true, "char": true, "string": true,
	"u8": true, "u16": true, "u32": true, "u64": true,
	"s8": true, "s16": true, "s32": true, "s64": true,
	"f32": true, "f64": true,
}

// resolver turns type expressions into wit types, following named
// declarations and rejecting cycles.
type resolver struct {
	decls  map[string]*typeDecl
	done   map[string]wit.Type
	active map[string]bool
}

func (r *resolver) resolve(e *typeExpr) (wit.Type, error) {
	if e.elem != nil {
		elem, err := r.resolve(e.elem)
		if err != nil {
			return nil, err
		}
		return &wit.TypeDef{Kind: &wit.List{Type: elem}}, nil
	}
	if primitiveNames[e.name] {
		t, err := wit.ParseType(e.name)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", e.line, err)
		}
		return t, nil
	}
	return r.named(e.name, e.line)
}

func (r *resolver) named(name string, line int) (wit.Type, error) {
	if t, ok := r.done[name]; ok {
		return t, nil
	}
	d, ok := r.decls[name]
	if !ok {
		return nil, fmt.Errorf("line %d: unknown type %q", line, name)
	}
	if r.active[name] {
		return nil, fmt.Errorf("line %d: type %q refers to itself", d.line, name)
	}
	r.active[name] = true
	defer delete(r.active, name)

	var t wit.Type
	if d.record {
		rec := &wit.Record{Fields: make([]wit.Field, len(d.fields))}
		for i, f := range d.fields {
			ft, err := r.resolve(f.typ)
			if err != nil {
				return nil, err
			}
			rec.Fields[i] = wit.Field{Name: f.name, Type: ft}
		}
		recName := name
		t = &wit.TypeDef{Name: &recName, Kind: rec}
	} else {
		var err error
		if t, err = r.resolve(d.alias); err != nil {
			return nil, err
		}
	}
	r.done[name] = t
	return t, nil
}
