package dispatch

import (
	"strings"
	"time"

	"github.com/google/cel-go/cel"

	"github.com/strandmq/strand/internal/topiclog"
)

// celFilter wraps a compiled CEL program evaluated against each record before
// delivery. When disabled, Eval always returns true.
type celFilter struct {
	prog    cel.Program
	enabled bool
}

func newCELFilter(expr string) (celFilter, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return celFilter{enabled: false}, nil
	}
	env, err := cel.NewEnv(
		cel.Variable("topic", cel.StringType),
		cel.Variable("id", cel.StringType),
		cel.Variable("ts_ms", cel.IntType),
		cel.Variable("seq", cel.IntType),
		cel.Variable("fields", cel.MapType(cel.StringType, cel.StringType)),
		cel.Variable("now_ms", cel.IntType),
	)
	if err != nil {
		return celFilter{}, err
	}
	ast, iss := env.Parse(expr)
	if iss != nil && iss.Err() != nil {
		return celFilter{}, iss.Err()
	}
	checked, iss2 := env.Check(ast)
	if iss2 != nil && iss2.Err() != nil {
		return celFilter{}, iss2.Err()
	}
	prog, err := env.Program(checked)
	if err != nil {
		return celFilter{}, err
	}
	return celFilter{prog: prog, enabled: true}, nil
}

// Eval evaluates the expression against one record. Evaluation errors count
// as a non-match.
func (f celFilter) Eval(topic string, rec topiclog.Record) bool {
	if !f.enabled {
		return true
	}
	fields := make(map[string]string, len(rec.Fields))
	for k, v := range rec.Fields {
		fields[k] = string(v)
	}
	out, _, err := f.prog.Eval(map[string]any{
		"topic":  topic,
		"id":     rec.ID.String(),
		"ts_ms":  rec.ID.Ms(),
		"seq":    int64(rec.ID.Seq()),
		"fields": fields,
		"now_ms": time.Now().UnixMilli(),
	})
	if err != nil {
		return false
	}
	b, ok := out.Value().(bool)
	return ok && b
}
