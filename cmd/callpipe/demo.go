package main

import (
	"errors"
	"strings"

	"github.com/tjfontaine/callpipe/internal/core/ports"
	"github.com/tjfontaine/callpipe/internal/proxy"
)

// Demo is the target served by the CLI.
type Demo struct{}

func (Demo) Upper(s string) string {
	return strings.ToUpper(s)
}

func (Demo) Repeat(s string, n int) string {
	if n < 0 {
		n = 0
	}
	return strings.Repeat(s, n)
}

func (Demo) Divide(a, b float64) (float64, error) {
	if b == 0 {
		return 0, errors.New("division by zero")
	}
	return a / b, nil
}

func newDemoProxy(p ports.PipelineInvoker) (*proxy.Proxy, error) {
	demo := &Demo{}
	px := proxy.New(p, demo)

	for _, m := range []struct {
		name   string
		fn     any
		params []string
	}{
		{"Upper", demo.Upper, []string{"s"}},
		{"Repeat", demo.Repeat, []string{"s", "n"}},
		{"Divide", demo.Divide, []string{"a", "b"}},
	} {
		if err := px.RegisterFunc(m.name, m.fn, m.params...); err != nil {
			return nil, err
		}
	}
	return px, nil
}
