package bgcut

import "sync"

// maskPool recycles the scratch mask that morphology writes between passes.
type maskPool struct {
	pool sync.Pool
}

func newMaskPool() *maskPool {
	return &maskPool{
		pool: sync.Pool{
			New: func() any {
				return &scratchMask{}
			},
		},
	}
}

type scratchMask struct {
	cells BackgroundMask
}

func (p *maskPool) get(size int) *scratchMask {
	buf := p.pool.Get().(*scratchMask)
	if cap(buf.cells) < size {
		buf.cells = make(BackgroundMask, size)
	} else {
		buf.cells = buf.cells[:size]
	}
	return buf
}

func (p *maskPool) put(buf *scratchMask) {
	p.pool.Put(buf)
}
