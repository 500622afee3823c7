// Package testutil holds fixtures shared by package tests: a job execution
// record type with every index flavour, a deterministic record set and a
// deterministic clock.
package testutil

import (
	"time"

	"github.com/roach88/crawlplan/internal/index"
	"github.com/roach88/crawlplan/internal/ir"
	"github.com/roach88/crawlplan/internal/schema"
)

// Table is the fixture table name.
const Table = "job_execution"

// States are the fixture state enum values; the first is the default.
var States = []string{"UNDEFINED", "CREATED", "RUNNING", "FINISHED", "FAILED"}

// JobExecution declares the fixture record type.
func JobExecution() *schema.Message {
	label := &schema.Message{Name: "Label", Fields: []schema.Field{
		{Name: "key", Kind: schema.KindString},
		{Name: "value", Kind: schema.KindString},
	}}
	meta := &schema.Message{Name: "Meta", Fields: []schema.Field{
		{Name: "name", Kind: schema.KindString},
		{Name: "description", Kind: schema.KindString},
		{Name: "label", Kind: schema.KindMessage, Repeated: true, Message: label},
	}}
	return &schema.Message{Name: "JobExecution", Fields: []schema.Field{
		{Name: "id", Kind: schema.KindString},
		{Name: "job_id", Kind: schema.KindString},
		{Name: "seed_id", Kind: schema.KindString},
		{Name: "state", Kind: schema.KindEnum, EnumValues: States},
		{Name: "start_time", Kind: schema.KindTimestamp},
		{Name: "documents_crawled", Kind: schema.KindInt},
		{Name: "disabled", Kind: schema.KindBool},
		{Name: "meta", Kind: schema.KindMessage, Message: meta},
		{Name: "tags", Kind: schema.KindString, Repeated: true},
	}}
}

// Descriptor describes JobExecution.
func Descriptor() *schema.Descriptor {
	return schema.Describe(JobExecution())
}

// Registry returns the fixture index table:
//
//	state         (state)
//	job_id        (job_id)
//	job_id_state  (job_id, state)
//	seed_start    (seed_id, start_time)
//	start_time    (start_time)
//	name          (meta.name) ignorecase
//	label         (meta.label[key,value]) multi
//	label_value   (meta.label[value]) multi
//	tags          (tags) multi
//
// documents_crawled, disabled and meta.description are unindexed.
func Registry() *index.Registry {
	reg, err := index.NewRegistry(Table, Descriptor(), "id")
	if err != nil {
		panic(err)
	}
	reg.MustRegister(index.Index{Name: "state", Paths: []string{"state"}})
	reg.MustRegister(index.Index{Name: "job_id", Paths: []string{"job_id"}})
	reg.MustRegister(index.Index{Name: "job_id_state", Paths: []string{"job_id", "state"}})
	reg.MustRegister(index.Index{Name: "seed_start", Paths: []string{"seed_id", "start_time"}})
	reg.MustRegister(index.Index{Name: "start_time", Paths: []string{"start_time"}})
	reg.MustRegister(index.Index{Name: "name", Paths: []string{"meta.name"}, IgnoreCase: true})
	reg.MustRegister(index.Index{Name: "label", Paths: []string{"meta.label"}, Multi: true, Elem: []string{"key", "value"}})
	reg.MustRegister(index.Index{Name: "label_value", Paths: []string{"meta.label"}, Multi: true, Elem: []string{"value"}})
	reg.MustRegister(index.Index{Name: "tags", Paths: []string{"tags"}, Multi: true})
	return reg
}

// Label builds a label element.
func Label(key, value string) ir.IRObject {
	return ir.Obj(ir.O("key", ir.IRString(key)), ir.O("value", ir.IRString(value)))
}

// Labels builds a label list from key/value pairs.
func Labels(pairs ...string) ir.IRArray {
	out := ir.IRArray{}
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, Label(pairs[i], pairs[i+1]))
	}
	return out
}

// Records returns the fixture record set. It covers absent fields, mixed
// case names, duplicate and prefix-sharing labels, empty repeated fields and
// ties on every indexed field.
func Records() []ir.IRObject {
	clock := NewClock(time.Hour)
	ts := func() ir.IRValue { return clock.Timestamp() }
	rec := func(pairs ...ir.IRPair) ir.IRObject { return ir.Obj(pairs...) }
	meta := func(name string, labels ir.IRArray) ir.IRObject {
		return ir.Obj(ir.O("name", ir.IRString(name)), ir.O("label", labels))
	}
	s := func(v string) ir.IRValue { return ir.IRString(v) }

	return []ir.IRObject{
		rec(ir.O("id", s("e01")), ir.O("job_id", s("job-a")), ir.O("seed_id", s("seed-1")), ir.O("state", s("CREATED")),
			ir.O("start_time", ts()), ir.O("documents_crawled", ir.IRInt(10)),
			ir.O("meta", meta("Nightly", Labels("env", "prod", "team", "ab"))), ir.O("tags", ir.Strings("news", "daily"))),
		rec(ir.O("id", s("e02")), ir.O("job_id", s("job-a")), ir.O("seed_id", s("seed-1")), ir.O("state", s("RUNNING")),
			ir.O("start_time", ts()), ir.O("documents_crawled", ir.IRInt(3)),
			ir.O("meta", meta("nightly", Labels("env", "staging", "team", "abc"))), ir.O("tags", ir.Strings("news"))),
		rec(ir.O("id", s("e03")), ir.O("job_id", s("job-b")), ir.O("seed_id", s("seed-2")), ir.O("state", s("CREATED")),
			ir.O("start_time", ts()), ir.O("documents_crawled", ir.IRInt(10)),
			ir.O("meta", meta("Weekly", Labels("team", "abz", "env", "prod"))), ir.O("tags", ir.Strings())),
		rec(ir.O("id", s("e04")), ir.O("job_id", s("job-b")), ir.O("seed_id", s("seed-2")), ir.O("state", s("FINISHED")),
			ir.O("start_time", ts()), ir.O("disabled", ir.IRBool(true)),
			ir.O("meta", meta("WEEKLY", Labels("team", "ac"))), ir.O("tags", ir.Strings("archive"))),
		rec(ir.O("id", s("e05")), ir.O("job_id", s("job-a")), ir.O("seed_id", s("seed-3")), ir.O("state", s("FAILED")),
			ir.O("start_time", ts()), ir.O("documents_crawled", ir.IRInt(0)),
			ir.O("meta", meta("adhoc", Labels("team", "a", "env", "prod", "env", "prod")))),
		rec(ir.O("id", s("e06")), ir.O("job_id", s("job-c")), ir.O("seed_id", s("seed-1")),
			ir.O("start_time", ts()), ir.O("documents_crawled", ir.IRInt(7)),
			ir.O("meta", meta("Nightly", Labels("owner", "prod")))),
		rec(ir.O("id", s("e07")), ir.O("job_id", s("job-c")), ir.O("state", s("CREATED")),
			ir.O("meta", meta("", Labels())), ir.O("tags", ir.Strings("daily"))),
		rec(ir.O("id", s("e08")), ir.O("seed_id", s("seed-3")), ir.O("state", s("RUNNING")),
			ir.O("start_time", ts()), ir.O("documents_crawled", ir.IRInt(42)), ir.O("tags", ir.Strings("news", "news"))),
		rec(ir.O("id", s("e09")), ir.O("job_id", s("job-a")), ir.O("seed_id", s("seed-1")), ir.O("state", s("CREATED")),
			ir.O("start_time", ts()), ir.O("documents_crawled", ir.IRInt(10)),
			ir.O("meta", meta("Ad-Hoc", Labels("env", "Prod", "team", "AB")))),
		rec(ir.O("id", s("e10")), ir.O("job_id", s("job-b")), ir.O("state", s("UNDEFINED")),
			ir.O("meta", ir.Obj(ir.O("description", s("no name")))), ir.O("disabled", ir.IRBool(false))),
	}
}
