package catalog

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/token"

	"github.com/roach88/crawlplan/internal/index"
	"github.com/roach88/crawlplan/internal/schema"
)

// Compile builds a Catalog from a CUE value already unified with the
// catalog constraints.
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(src)
//	cat, err := Compile(v)
func Compile(v cue.Value) (*Catalog, error) {
	if err := v.Validate(); err != nil {
		return nil, formatCUEError(err)
	}

	c := &compiler{
		messages: make(map[string]cue.Value),
		built:    make(map[string]*schema.Message),
	}
	if mv := v.LookupPath(cue.ParsePath("messages")); mv.Exists() {
		iter, err := mv.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			c.messages[iter.Selector().Unquoted()] = iter.Value()
		}
	}

	tv := v.LookupPath(cue.ParsePath("types"))
	if !tv.Exists() {
		return nil, &CompileError{Field: "types", Message: "at least one record type is required", Pos: v.Pos()}
	}
	iter, err := tv.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	cat := &Catalog{byName: make(map[string]*Type)}
	tables := make(map[string]string)
	for iter.Next() {
		name := iter.Selector().Unquoted()
		t, err := c.compileType(name, iter.Value())
		if err != nil {
			return nil, err
		}
		if other, dup := tables[t.Table]; dup {
			return nil, &CompileError{
				Field:   fmt.Sprintf("types.%s.table", name),
				Message: fmt.Sprintf("table %q already used by %s", t.Table, other),
				Pos:     iter.Value().Pos(),
			}
		}
		tables[t.Table] = name
		cat.types = append(cat.types, t)
		cat.byName[name] = t
	}
	if len(cat.types) == 0 {
		return nil, &CompileError{Field: "types", Message: "at least one record type is required", Pos: tv.Pos()}
	}
	return cat, nil
}

type compiler struct {
	messages map[string]cue.Value
	built    map[string]*schema.Message
}

func (c *compiler) compileType(name string, v cue.Value) (*Type, error) {
	field := "types." + name
	table, err := stringField(v, "table")
	if err != nil {
		return nil, err
	}
	primary, err := stringField(v, "primary")
	if err != nil {
		return nil, err
	}

	fields, err := c.fields(field+".fields", v.LookupPath(cue.ParsePath("fields")))
	if err != nil {
		return nil, err
	}
	msg := &schema.Message{Name: name, Fields: fields}
	desc := schema.Describe(msg)

	reg, err := index.NewRegistry(table, desc, primary)
	if err != nil {
		return nil, &CompileError{Field: field + ".primary", Message: err.Error(), Pos: v.Pos()}
	}
	if err := compileIndexes(reg, field+".indexes", v.LookupPath(cue.ParsePath("indexes"))); err != nil {
		return nil, err
	}

	t := &Type{Name: name, Table: table, Message: msg, Descriptor: desc, Registry: reg}
	if lv := v.LookupPath(cue.ParsePath("label")); lv.Exists() {
		if t.LabelPath, err = lv.String(); err != nil {
			return nil, formatCUEError(err)
		}
		node, ok := desc.Lookup(t.LabelPath)
		if !ok || !node.Repeated || node.Kind != schema.KindMessage {
			return nil, &CompileError{
				Field:   field + ".label",
				Message: fmt.Sprintf("%q is not a repeated message field", t.LabelPath),
				Pos:     lv.Pos(),
			}
		}
	}
	return t, nil
}

// fields compiles a field struct in declaration order.
func (c *compiler) fields(field string, v cue.Value) ([]schema.Field, error) {
	if !v.Exists() {
		return nil, &CompileError{Field: field, Message: "fields are required", Pos: v.Pos()}
	}
	iter, err := v.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var out []schema.Field
	for iter.Next() {
		f, err := c.field(field+"."+iter.Selector().Unquoted(), iter.Selector().Unquoted(), iter.Value())
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	if len(out) == 0 {
		return nil, &CompileError{Field: field, Message: "at least one field is required", Pos: v.Pos()}
	}
	return out, nil
}

func (c *compiler) field(path, name string, v cue.Value) (schema.Field, error) {
	f := schema.Field{Name: name}

	kindName, err := stringField(v, "kind")
	if err != nil {
		return f, err
	}
	kind, ok := schema.ParseKind(kindName)
	if !ok {
		return f, &CompileError{Field: path, Message: fmt.Sprintf("unknown kind %q", kindName), Pos: v.Pos()}
	}
	f.Kind = kind
	if f.Repeated, err = boolField(v, "repeated"); err != nil {
		return f, err
	}

	switch kind {
	case schema.KindEnum:
		if f.EnumValues, err = stringList(v, "values"); err != nil {
			return f, err
		}
		if len(f.EnumValues) == 0 {
			return f, &CompileError{Field: path, Message: "enum fields need values", Pos: v.Pos()}
		}
	case schema.KindMessage:
		mv := v.LookupPath(cue.ParsePath("message"))
		if !mv.Exists() {
			return f, &CompileError{Field: path, Message: "message fields need a message name", Pos: v.Pos()}
		}
		msgName, err := mv.String()
		if err != nil {
			return f, formatCUEError(err)
		}
		if f.Message, err = c.message(msgName, mv.Pos()); err != nil {
			return f, err
		}
	}
	return f, nil
}

// message resolves a named sub-record. Recursive messages share one
// *schema.Message.
func (c *compiler) message(name string, pos token.Pos) (*schema.Message, error) {
	if m, ok := c.built[name]; ok {
		return m, nil
	}
	mv, ok := c.messages[name]
	if !ok {
		return nil, &CompileError{Field: "messages." + name, Message: "message is not declared", Pos: pos}
	}
	m := &schema.Message{Name: name}
	c.built[name] = m
	fields, err := c.fields("messages."+name+".fields", mv.LookupPath(cue.ParsePath("fields")))
	if err != nil {
		return nil, err
	}
	m.Fields = fields
	return m, nil
}

func compileIndexes(reg *index.Registry, field string, v cue.Value) error {
	if !v.Exists() {
		return nil
	}
	iter, err := v.Fields()
	if err != nil {
		return formatCUEError(err)
	}
	for iter.Next() {
		name := iter.Selector().Unquoted()
		iv := iter.Value()

		idx := index.Index{Name: name}
		if idx.Paths, err = stringList(iv, "paths"); err != nil {
			return &CompileError{Field: field + "." + name + ".paths", Message: err.Error(), Pos: iv.Pos()}
		}
		if len(idx.Paths) == 0 {
			return &CompileError{Field: field + "." + name + ".paths", Message: "at least one path is required", Pos: iv.Pos()}
		}
		if idx.Elem, err = stringList(iv, "elem"); err != nil {
			return &CompileError{Field: field + "." + name + ".elem", Message: err.Error(), Pos: iv.Pos()}
		}
		if idx.Multi, err = boolField(iv, "multi"); err != nil {
			return err
		}
		if idx.IgnoreCase, err = boolField(iv, "ignore_case"); err != nil {
			return err
		}
		if _, err := reg.Register(idx); err != nil {
			return &CompileError{Field: field + "." + name, Message: err.Error(), Pos: iv.Pos()}
		}
	}
	return nil
}

func stringField(v cue.Value, name string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(name))
	if !fv.Exists() {
		return "", &CompileError{Field: name, Message: name + " is required", Pos: v.Pos()}
	}
	fv, _ = fv.Default()
	s, err := fv.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func boolField(v cue.Value, name string) (bool, error) {
	fv := v.LookupPath(cue.ParsePath(name))
	if !fv.Exists() {
		return false, nil
	}
	fv, _ = fv.Default()
	b, err := fv.Bool()
	if err != nil {
		return false, formatCUEError(err)
	}
	return b, nil
}

func stringList(v cue.Value, name string) ([]string, error) {
	lv := v.LookupPath(cue.ParsePath(name))
	if !lv.Exists() {
		return nil, nil
	}
	iter, err := lv.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var out []string
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out = append(out, s)
	}
	return out, nil
}
