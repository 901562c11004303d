package schema

import (
	"fmt"

	"go.bytecodealliance.org/wit"

	"github.com/wippyai/wasm-bridge/canon"
	"github.com/wippyai/wasm-bridge/errors"
	"github.com/wippyai/wasm-bridge/registry"
)

// Param is a named function parameter.
type Param struct {
	Type wit.Type
	Name string
}

// Function is a declared export.
type Function struct {
	Result wit.Type
	Name   string
	Params []Param
}

// Signature converts the function to descriptors.
func (f Function) Signature() (registry.Signature, error) {
	sig := registry.Signature{Name: f.Name, Params: make([]canon.Field, len(f.Params))}
	for i, p := range f.Params {
		d, err := canon.FromWIT(p.Type)
		if err != nil {
			return registry.Signature{}, errors.New(errors.PhaseParse, errors.KindUnsupported).
				Path(f.Name, p.Name).
				Cause(err).
				Build()
		}
		sig.Params[i] = canon.Field{Name: p.Name, Type: d}
	}
	if f.Result != nil {
		d, err := canon.FromWIT(f.Result)
		if err != nil {
			return registry.Signature{}, errors.New(errors.PhaseParse, errors.KindUnsupported).
				Path(f.Name, "result").
				Cause(err).
				Build()
		}
		sig.Result = d
	}
	return sig, nil
}

// Document is a parsed WIT source.
type Document struct {
	Types     map[string]wit.Type
	Functions []Function
}

// Function returns the declared function called name.
func (d *Document) Function(name string) (Function, bool) {
	for _, f := range d.Functions {
		if f.Name == name {
			return f, true
		}
	}
	return Function{}, false
}

// Signatures converts every function for use with registry.New.
func (d *Document) Signatures() ([]registry.Signature, error) {
	sigs := make([]registry.Signature, 0, len(d.Functions))
	for _, f := range d.Functions {
		sig, err := f.Signature()
		if err != nil {
			return nil, err
		}
		sigs = append(sigs, sig)
	}
	return sigs, nil
}

// Parse parses WIT text.
func Parse(text string) (*Document, error) {
	toks, err := lex(text)
	if err != nil {
		return nil, parseError(err)
	}
	p := &parser{
		toks:  toks,
		decls: make(map[string]*typeDecl),
	}
	if err := p.items(tokEOF, ""); err != nil {
		return nil, parseError(err)
	}

	r := &resolver{decls: p.decls, done: make(map[string]wit.Type), active: make(map[string]bool)}
	doc := &Document{Types: make(map[string]wit.Type, len(p.decls))}
	for name := range p.decls {
		t, err := r.named(name, p.decls[name].line)
		if err != nil {
			return nil, parseError(err)
		}
		doc.Types[name] = t
	}
	seen := make(map[string]bool, len(p.funcs))
	for _, fd := range p.funcs {
		if seen[fd.name] {
			return nil, parseError(fmt.Errorf("line %d: function %q declared twice", fd.line, fd.name))
		}
		seen[fd.name] = true

		fn := Function{Name: fd.name}
		for _, pd := range fd.params {
			t, err := r.resolve(pd.typ)
			if err != nil {
				return nil, parseError(err)
			}
			fn.Params = append(fn.Params, Param{Name: pd.name, Type: t})
		}
		if fd.result != nil {
			if fn.Result, err = r.resolve(fd.result); err != nil {
				return nil, parseError(err)
			}
		}
		doc.Functions = append(doc.Functions, fn)
	}
	return doc, nil
}

func parseError(err error) error {
	return errors.Wrap(errors.PhaseParse, errors.KindInvalidInput, err, "invalid WIT")
}
