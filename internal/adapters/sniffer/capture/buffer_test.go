package capture

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lcalzada-xor/eapsul/internal/core/domain"
)

func TestBuffer_PeekDiscard(t *testing.T) {
	b := NewBuffer()
	_, err := b.Write([]byte("abcdef"))
	require.NoError(t, err)

	p, err := b.Peek(3, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), p)
	assert.Equal(t, 6, b.Len())

	b.Discard(3)
	p, err = b.Peek(3, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, []byte("def"), p)

	b.Discard(10)
	assert.Equal(t, 0, b.Len())
}

func TestBuffer_Deadline(t *testing.T) {
	b := NewBuffer()

	start := time.Now()
	_, err := b.Peek(1, start.Add(50*time.Millisecond))
	assert.ErrorIs(t, err, ErrTimeout)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)

	_, err = b.Peek(1, time.Now().Add(-time.Second))
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestBuffer_WakesOnWrite(t *testing.T) {
	b := NewBuffer()
	go func() {
		time.Sleep(20 * time.Millisecond)
		b.Write([]byte{1, 2})
	}()

	p, err := b.Peek(2, time.Now().Add(2*time.Second))
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2}, p)
}

func TestBuffer_CloseWrite(t *testing.T) {
	b := NewBuffer()
	b.Write([]byte{1})
	require.NoError(t, b.CloseWrite())

	_, err := b.Write([]byte{2})
	assert.ErrorIs(t, err, ErrClosed)

	p, err := b.Peek(1, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, []byte{1}, p)

	_, err = b.Peek(2, time.Time{})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestRecordReader_OrderNoLossNoDuplicates(t *testing.T) {
	b := NewBuffer()
	w := NewRecordWriter(b)
	r := NewRecordReader(b)

	const total = 2000
	base := time.Unix(1700000000, 0)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < total; i++ {
			data := make([]byte, 1+i%300)
			data[0] = byte(i)
			assert.NoError(t, w.WriteRecord(domain.CapturedFrame{
				Data:      data,
				Timestamp: base.Add(time.Duration(i) * time.Microsecond),
			}))
		}
		b.CloseWrite()
	}()

	for i := 0; i < total; i++ {
		f, err := r.Next(time.Now().Add(5 * time.Second))
		require.NoError(t, err, "record %d", i)
		assert.Len(t, f.Data, 1+i%300)
		assert.Equal(t, byte(i), f.Data[0])
		assert.True(t, f.Timestamp.Equal(base.Add(time.Duration(i)*time.Microsecond)))
	}
	wg.Wait()

	_, err := r.Next(time.Now().Add(10 * time.Millisecond))
	assert.ErrorIs(t, err, ErrClosed)
}

func TestRecordReader_TimeoutKeepsRecord(t *testing.T) {
	b := NewBuffer()
	r := NewRecordReader(b)

	_, err := r.Next(time.Now().Add(10 * time.Millisecond))
	assert.ErrorIs(t, err, ErrTimeout)

	require.NoError(t, NewRecordWriter(b).WriteRecord(domain.CapturedFrame{Data: []byte{7}, Timestamp: time.Now()}))
	f, err := r.Next(time.Now().Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, []byte{7}, f.Data)
}

func TestRecordReader_Drain(t *testing.T) {
	b := NewBuffer()
	w := NewRecordWriter(b)
	r := NewRecordReader(b)
	w.WriteRecord(domain.CapturedFrame{Data: []byte{1, 2, 3}, Timestamp: time.Now()})
	w.WriteRecord(domain.CapturedFrame{Data: []byte{4}, Timestamp: time.Now()})

	assert.Equal(t, 2*recordHeaderLen+4, r.Drain())
	_, err := r.Next(time.Now().Add(5 * time.Millisecond))
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestRecordWriter_RejectsOversize(t *testing.T) {
	w := NewRecordWriter(NewBuffer())
	err := w.WriteRecord(domain.CapturedFrame{Data: make([]byte, MaxRecordSize+1)})
	assert.ErrorIs(t, err, ErrCorruptRecord)
}
