package ingestsvc

import (
	"strings"
	"time"

	"github.com/google/cel-go/cel"
	"github.com/sugawarayuuta/sonnet"

	"github.com/fzhnf/pub-sub-log-aggregator/internal/event"
)

// celFilter wraps a compiled CEL program shared by recent-event queries and
// live tailing. When disabled, Eval always returns true.
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
		cel.Variable("event_id", cel.StringType),
		cel.Variable("source", cel.StringType),
		cel.Variable("ts_ms", cel.IntType),
		cel.Variable("processed_ms", cel.IntType),
		cel.Variable("text", cel.StringType),
		// Parsed payload (map/list/values) for field filtering
		cel.Variable("json", cel.DynType),
		// Current time in ms for windowed filters
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

// Eval evaluates the compiled expression against a stored event. When
// disabled, returns true. Evaluation errors reject the event.
func (f celFilter) Eval(st event.StoredEvent) bool {
	if !f.enabled {
		return true
	}
	var tsMs int64
	if ts, err := event.ParseTimestamp(st.Timestamp); err == nil {
		tsMs = ts.UnixMilli()
	}
	var text string
	if b, err := sonnet.Marshal(st.Payload); err == nil {
		text = string(b)
	}
	var payload any
	if st.Payload != nil {
		payload = st.Payload
	} else {
		payload = map[string]any{}
	}
	out, _, err := f.prog.Eval(map[string]any{
		"topic":        st.Topic,
		"event_id":     st.EventID,
		"source":       st.Source,
		"ts_ms":        tsMs,
		"processed_ms": st.ProcessedAt.UnixMilli(),
		"text":         text,
		"json":         payload,
		"now_ms":       time.Now().UnixMilli(),
	})
	if err != nil {
		return false
	}
	b, ok := out.Value().(bool)
	return ok && b
}
