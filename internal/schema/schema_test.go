package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/crawlplan/internal/ir"
)

var labelMsg = &Message{Name: "Label", Fields: []Field{
	{Name: "key", Kind: KindString},
	{Name: "value", Kind: KindString},
}}

var entityRefMsg = &Message{Name: "EntityRef", Fields: []Field{
	{Name: "kind", Kind: KindEnum, EnumValues: []string{"UNDEFINED", "CRAWL_ENTITY", "SEED"}},
	{Name: "id", Kind: KindString},
}}

func testMessage() *Message {
	meta := &Message{Name: "Meta", Fields: []Field{
		{Name: "name", Kind: KindString},
		{Name: "description", Kind: KindString},
		{Name: "created", Kind: KindTimestamp},
		{Name: "label", Kind: KindMessage, Repeated: true, Message: labelMsg},
	}}
	seed := &Message{Name: "Seed", Fields: []Field{
		{Name: "entity_ref", Kind: KindMessage, Message: entityRefMsg},
		{Name: "job_ref", Kind: KindMessage, Repeated: true, Message: entityRefMsg},
		{Name: "disabled", Kind: KindBool},
		{Name: "scope", Kind: KindMessage, Message: &Message{Name: "Empty"}},
	}}
	return &Message{Name: "ConfigObject", Fields: []Field{
		{Name: "id", Kind: KindString},
		{Name: "kind", Kind: KindEnum, EnumValues: []string{"UNDEFINED", "CRAWL_ENTITY", "SEED", "CRAWL_JOB"}},
		{Name: "meta", Kind: KindMessage, Message: meta},
		{Name: "seed", Kind: KindMessage, Message: seed},
		{Name: "priority", Kind: KindInt},
		{Name: "tags", Kind: KindString, Repeated: true},
	}}
}

func TestDescribePaths(t *testing.T) {
	d := Describe(testMessage())

	assert.Equal(t, "ConfigObject", d.TypeName())
	assert.Equal(t, []string{
		"id",
		"kind",
		"meta",
		"meta.name",
		"meta.description",
		"meta.created",
		"meta.label",
		"seed",
		"seed.entity_ref",
		"seed.entity_ref.kind",
		"seed.entity_ref.id",
		"seed.job_ref",
		"seed.disabled",
		"seed.scope",
		"priority",
		"tags",
	}, d.Paths())
}

func TestDescribeDescentRules(t *testing.T) {
	d := Describe(testMessage())

	label, ok := d.Lookup("meta.label")
	require.True(t, ok)
	assert.True(t, label.Repeated)
	assert.True(t, label.IsLeaf(), "repeated fields do not descend")
	assert.Equal(t, "Label", label.MessageName)

	_, ok = d.Lookup("meta.label.key")
	assert.False(t, ok)

	created, _ := d.Lookup("meta.created")
	assert.Equal(t, KindTimestamp, created.Kind)
	assert.True(t, created.IsLeaf())

	scope, _ := d.Lookup("seed.scope")
	assert.True(t, scope.IsLeaf(), "empty sub-messages are leaves")

	name, _ := d.Lookup("meta.name")
	assert.Equal(t, "meta", name.Parent().FullName)
	assert.True(t, name.Parent().Parent().IsRoot())
}

func TestDescribeRecursiveMessage(t *testing.T) {
	node := &Message{Name: "Node"}
	node.Fields = []Field{
		{Name: "name", Kind: KindString},
		{Name: "child", Kind: KindMessage, Message: node},
	}

	d := Describe(node)
	assert.Equal(t, []string{"name", "child"}, d.Paths())
}

func TestNodeDefaults(t *testing.T) {
	d := Describe(testMessage())

	tests := []struct {
		path string
		want ir.IRValue
	}{
		{"id", ir.IRString("")},
		{"kind", ir.IRString("UNDEFINED")},
		{"priority", ir.IRInt(0)},
		{"seed.disabled", ir.IRBool(false)},
		{"meta.created", nil},
		{"meta.label", nil},
		{"tags", nil},
		{"meta", nil},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			n, err := d.Node(tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.want, n.Default())
		})
	}
}

func TestNodeInvalidPath(t *testing.T) {
	d := Describe(testMessage())

	_, err := d.Node("meta.nope")
	require.Error(t, err)
	assert.True(t, IsInvalidPath(err))
	assert.Equal(t, `invalid path "meta.nope" for ConfigObject`, err.Error())
}

func TestGetSet(t *testing.T) {
	d := Describe(testMessage())

	rec, err := d.Set("seed.entity_ref.id", nil, ir.IRString("e1"))
	require.NoError(t, err)
	rec, err = d.Set("meta.name", rec, ir.IRString("nb.no"))
	require.NoError(t, err)

	assert.Equal(t, ir.Obj(
		ir.O("seed", ir.Obj(ir.O("entity_ref", ir.Obj(ir.O("id", ir.IRString("e1")))))),
		ir.O("meta", ir.Obj(ir.O("name", ir.IRString("nb.no")))),
	), rec)

	v, err := d.Get("seed.entity_ref.id", rec)
	require.NoError(t, err)
	assert.Equal(t, ir.IRString("e1"), v)

	v, err = d.Get("seed.entity_ref.kind", rec)
	require.NoError(t, err)
	assert.Nil(t, v)

	v, err = d.GetOrDefault("seed.entity_ref.kind", rec)
	require.NoError(t, err)
	assert.Equal(t, ir.IRString("UNDEFINED"), v)

	_, err = d.Get("seed.entity_ref.nope", rec)
	assert.True(t, IsInvalidPath(err))
}

func TestSetRepeatedAppends(t *testing.T) {
	d := Describe(testMessage())
	a := ir.Obj(ir.O("key", ir.IRString("a")), ir.O("value", ir.IRString("1")))
	b := ir.Obj(ir.O("key", ir.IRString("b")), ir.O("value", ir.IRString("2")))

	rec, err := d.Set("meta.label", nil, a)
	require.NoError(t, err)
	rec, err = d.Set("meta.label", rec, ir.IRArray{b})
	require.NoError(t, err)

	v, err := d.Get("meta.label", rec)
	require.NoError(t, err)
	assert.Equal(t, ir.IRArray{a, b}, v)

	rec, err = d.Replace("meta.label", rec, ir.IRArray{b})
	require.NoError(t, err)
	v, _ = d.Get("meta.label", rec)
	assert.Equal(t, ir.IRArray{b}, v)
}

func TestSetKindMismatch(t *testing.T) {
	d := Describe(testMessage())

	_, err := d.Set("priority", nil, ir.IRString("high"))
	require.Error(t, err)
	var ve *ValueError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "priority", ve.Path)

	_, err = d.Set("meta.name", ir.Obj(ir.O("meta", ir.IRString("flat"))), ir.IRString("x"))
	require.Error(t, err)
}
