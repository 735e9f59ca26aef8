package config

import (
	"github.com/jcollins5513/bgcut"
	"github.com/jcollins5513/bgcut/onnx"
)

// NewRemover builds the remover selected by Method. Fallback is left to the
// caller: the CLI chains Passthrough behind it, the server answers with the
// original without caching it. The returned close function releases model
// resources and is never nil.
func (c *Config) NewRemover() (bgcut.Remover, func() error, error) {
	noop := func() error { return nil }

	switch c.Method {
	case MethodONNX:
		m, err := onnx.New(&c.ONNX)
		if err != nil {
			return nil, noop, err
		}
		return m, m.Close, nil
	default:
		cutter, err := bgcut.New(c.Cutout)
		if err != nil {
			return nil, noop, err
		}
		return cutter, noop, nil
	}
}
