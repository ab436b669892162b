package metrics

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
)

func TestRateMeter_Window(t *testing.T) {
	mock := clock.NewMock()
	r := NewRateMeter(mock)

	r.Add(60)
	r.Add(60)
	assert.Equal(t, int64(120), r.Window())
	assert.InDelta(t, 2.0, r.Rate(), 0.0001)

	// 10 秒后仍在窗口内
	mock.Add(10 * time.Second)
	r.Add(60)
	assert.Equal(t, int64(180), r.Window())

	// 第一个桶滑出窗口
	mock.Add(55 * time.Second)
	assert.Equal(t, int64(60), r.Window())

	// 超过 60 秒没有数据
	mock.Add(2 * time.Minute)
	assert.Equal(t, int64(0), r.Window())
}

func TestRateMeter_Reset(t *testing.T) {
	r := NewRateMeter(clock.NewMock())
	r.Add(100)
	r.Reset()
	assert.Zero(t, r.Window())
}

func TestRateMeter_NilClock(t *testing.T) {
	r := NewRateMeter(nil)
	r.Add(1)
	assert.Equal(t, int64(1), r.Window())
}
