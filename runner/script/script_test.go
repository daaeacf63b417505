package script

import (
	"context"
	"testing"
	"time"

	"github.com/mohitkumar/automate/metadata"
	"github.com/stretchr/testify/require"
)

func call(script string, timeout time.Duration) metadata.Call {
	s := metadata.NewService("scripts", NewRunner())
	m := &metadata.Method{Name: "run", Definition: map[string]any{"script": script}}
	_ = s.RegisterMethod(m)
	return metadata.Call{ActionId: "a1", ActionName: "run", Timeout: timeout, Method: m}
}

func TestScriptRunner(t *testing.T) {
	r := NewRunner()

	res, err := r.Execute(context.Background(), call("$.total = $.price * $.qty;", time.Second),
		map[string]any{"price": 2.5, "qty": 4})
	require.NoError(t, err)
	require.Equal(t, map[string]any{"price": 2.5, "qty": float64(4), "total": float64(10)}, res)

	res, err = r.Execute(context.Background(), call("", time.Second),
		map[string]any{"script": "$ = [1, 2];"})
	require.NoError(t, err)
	require.Equal(t, []any{float64(1), float64(2)}, res)

	_, err = r.Execute(context.Background(), call("$.x = ;", time.Second), map[string]any{})
	require.Error(t, err)

	_, err = r.Execute(context.Background(), call("while (true) {}", 50*time.Millisecond), map[string]any{})
	var timeout TimeoutError
	require.ErrorAs(t, err, &timeout)

	_, err = r.Execute(context.Background(), call("", time.Second), map[string]any{})
	require.Error(t, err)
}
