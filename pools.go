package flatidx

import "sync"

var fieldsPool = &sync.Pool{
	New: func() any {
		return make([]Field, 0, 256)
	},
}

func releaseFields(fields []Field) {
	clear(fields)
	fieldsPool.Put(fields[:0])
}

var indexRowsPool = &sync.Pool{
	New: func() any {
		return make(indexRows, 0, 256)
	},
}

func releaseIndexRows(rows indexRows) {
	clear(rows)
	indexRowsPool.Put(rows[:0])
}

var keyBytesPool = &sync.Pool{
	New: func() any {
		return make([]byte, 0, 32768) // max key size in Bolt
	},
}

func releaseKeyBytes(b []byte) {
	keyBytesPool.Put(b[:0])
}

var valueBytesPool = &sync.Pool{
	New: func() any {
		return make([]byte, 0, 65536)
	},
}

func releaseValueBytes(b []byte) {
	valueBytesPool.Put(b[:0])
}

var emptyIndexValue = []byte{}
