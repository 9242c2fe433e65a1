package player

import (
	"Lumen_Stream/pkg/logger"
	"context"
	"math"
	"sync"
	"time"
)

const (
	// DefaultThreshold 位置和上次持久化的位置差超过这个秒数，就跳过防抖立刻持久化
	DefaultThreshold = 5.0
	// DefaultDebounce 小幅变化走防抖：安静这么久之后才真正写一次
	DefaultDebounce = 3 * time.Second
)

// ProgressStore 是进度的远端存取接口，真实实现是Client（走HTTP），测试里用假实现
type ProgressStore interface {
	// FetchWatchedTime 拉取上次进度，没有记录返回(0, false, nil)
	FetchWatchedTime(ctx context.Context, videoID uint64) (float64, bool, error)
	// SaveWatchedTime 上报一次进度
	SaveWatchedTime(ctx context.Context, videoID uint64, watchedTime float64) error
}

// Tracker 是播放器旁边的观看进度状态机
// 播放位置的tick一秒能来好几次，不能每次都打一个HTTP请求，所以：
//   - 大跳变（|新位置-上次持久化位置| > threshold，比如拖进度条）：立刻持久化，并取消挂着的防抖
//   - 小变化：重置防抖计时器，安静debounce之后才写一次
//   - 暂停：不管差多少，立刻持久化
//   - 卸载（Close）：取消防抖，最后位置>0就同步补一笔，之后任何计时器都不允许再触发
//
// 状态显式摆在结构体里（lastPersisted + pending计时器），不靠闭包捕获
// 整个Tracker只会有一个活着的防抖计时器：每次调度前必先取消上一个
type Tracker struct {
	store   ProgressStore
	videoID uint64

	threshold float64
	debounce  time.Duration

	mu            sync.Mutex
	lastPersisted float64     // 上一次成功发起持久化时的位置标记
	lastKnown     float64     // 最近一次tick报来的位置，Close时冲刷用
	pending       *time.Timer // 挂着的防抖计时器，最多一个
	pendingSeq    uint64      // 计时器的代号，旧计时器醒来发现代号对不上就自行作废
	resumed       bool        // Resume只生效一次
	closed        bool
}

// NewTracker 创建一个绑定到某个视频的进度状态机，threshold/debounce传0用默认值
func NewTracker(store ProgressStore, videoID uint64, threshold float64, debounce time.Duration) *Tracker {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Tracker{
		store:     store,
		videoID:   videoID,
		threshold: threshold,
		debounce:  debounce,
	}
}

// Resume 拉取上次的进度，返回播放器应该seek到的位置
// 整个生命周期只生效一次：之后再怎么调用都返回0和false，外部的位置更新绝不会二次触发seek
// 拉取失败不致命：记日志，从0开始播
func (t *Tracker) Resume(ctx context.Context) (float64, bool) {
	t.mu.Lock()
	if t.resumed || t.closed {
		t.mu.Unlock()
		return 0, false
	}
	t.resumed = true
	t.mu.Unlock()

	watchedTime, found, err := t.store.FetchWatchedTime(ctx, t.videoID)
	if err != nil {
		logger.Log.WithError(err).WithField("video_id", t.videoID).Warn("拉取观看进度失败，从头开始播")
		return 0, false
	}
	if !found || watchedTime <= 0 {
		return 0, false
	}

	t.mu.Lock()
	// 恢复点就是第一个“已持久化”标记，不然开播第一个tick就会被当成大跳变
	t.lastPersisted = watchedTime
	t.lastKnown = watchedTime
	t.mu.Unlock()
	return watchedTime, true
}

// Tick 播放位置更新来了一次，决定这次要不要persist
func (t *Tracker) Tick(position float64) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.lastKnown = position

	// 大跳变：立刻持久化，标记前移，挂着的防抖作废
	if math.Abs(position-t.lastPersisted) > t.threshold {
		t.cancelPendingLocked()
		t.lastPersisted = position
		t.mu.Unlock()
		// 持久化放到goroutine里，tick路径绝不能被网络调用卡住
		go t.persist(position)
		return
	}

	// 小变化：重置防抖。先取消旧计时器再挂新的，保证同时最多一个
	t.cancelPendingLocked()
	seq := t.pendingSeq
	t.pending = time.AfterFunc(t.debounce, func() { t.firePending(seq) })
	t.mu.Unlock()
}

// Pause 明确暂停：当前位置无条件立刻persist，不看阈值，不等防抖
func (t *Tracker) Pause(position float64) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.lastKnown = position
	t.cancelPendingLocked()
	t.lastPersisted = position
	t.mu.Unlock()
	go t.persist(position)
}

// Close 播放器卸载：取消挂着的防抖，最后位置>0就同步补一笔
// 之后整个状态机死透，旧计时器迟到醒来也会发现closed直接退出
func (t *Tracker) Close() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	t.cancelPendingLocked()
	position := t.lastKnown
	needFlush := position > 0 && position != t.lastPersisted
	if needFlush {
		t.lastPersisted = position
	}
	t.mu.Unlock()

	if needFlush {
		// 卸载前同步冲刷，不能开goroutine——组件没了就没人等它了
		t.persist(position)
	}
}

// 防抖计时器到点：核对代号和closed，都没问题才persist并前移标记
// 代号不对说明这个计时器早就被新的tick或者立刻持久化取代了，直接作废
func (t *Tracker) firePending(seq uint64) {
	t.mu.Lock()
	if t.closed || seq != t.pendingSeq {
		t.mu.Unlock()
		return
	}
	t.pending = nil
	position := t.lastKnown
	t.lastPersisted = position
	t.mu.Unlock()
	t.persist(position)
}

// 取消挂着的防抖计时器；Stop失败（已触发在路上）也没关系，代号一变它醒来就会作废
func (t *Tracker) cancelPendingLocked() {
	t.pendingSeq++
	if t.pending != nil {
		t.pending.Stop()
		t.pending = nil
	}
}

// 真正的上报。失败只记日志不重试：丢一次更新没关系，下一个tick会带着更新的位置再来
func (t *Tracker) persist(position float64) {
	if err := t.store.SaveWatchedTime(context.Background(), t.videoID, position); err != nil {
		logger.Log.WithError(err).
			WithField("video_id", t.videoID).
			WithField("position", position).
			Warn("观看进度上报失败，等下一次tick")
	}
}
