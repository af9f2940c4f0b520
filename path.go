package flatidx

import (
	"strings"
	"sync"
)

const pathDelimiter = '.'

// contentPath is the stack of object field names leading to the current
// position of the walker.
type contentPath struct {
	items []string
	buf   strings.Builder
}

var contentPathPool = &sync.Pool{
	New: func() any {
		return &contentPath{items: make([]string, 0, 16)}
	},
}

func acquirePath() *contentPath {
	return contentPathPool.Get().(*contentPath)
}

func releasePath(p *contentPath) {
	clear(p.items)
	p.items = p.items[:0]
	p.buf.Reset()
	contentPathPool.Put(p)
}

func (p *contentPath) Push(name string) {
	p.items = append(p.items, name)
}

func (p *contentPath) Pop() (string, bool) {
	n := len(p.items)
	if n == 0 {
		return "", false
	}
	name := p.items[n-1]
	p.items[n-1] = ""
	p.items = p.items[:n-1]
	return name, true
}

func (p *contentPath) Len() int {
	return len(p.items)
}

// Text returns the path segments and name joined with dots.
func (p *contentPath) Text(name string) string {
	if len(p.items) == 0 {
		return name
	}
	p.buf.Reset()
	for _, item := range p.items {
		p.buf.WriteString(item)
		p.buf.WriteByte(pathDelimiter)
	}
	p.buf.WriteString(name)
	return p.buf.String()
}
