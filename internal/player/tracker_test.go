package player

import (
	"Lumen_Stream/pkg/logger"
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"
)

// 假的进度存取实现：把每次Save都记下来，Fetch返回预先设定的值
type fakeStore struct {
	mu    sync.Mutex
	saves []float64

	fetchTime  float64
	fetchFound bool
	fetchErr   error
	saveErr    error
}

func (f *fakeStore) FetchWatchedTime(ctx context.Context, videoID uint64) (float64, bool, error) {
	return f.fetchTime, f.fetchFound, f.fetchErr
}

func (f *fakeStore) SaveWatchedTime(ctx context.Context, videoID uint64, watchedTime float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves = append(f.saves, watchedTime)
	return f.saveErr
}

func (f *fakeStore) savedValues() []float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]float64, len(f.saves))
	copy(out, f.saves)
	return out
}

// persist是在goroutine里发出去的，测试要等它落地
func waitForSaves(t *testing.T, store *fakeStore, want int) []float64 {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if saves := store.savedValues(); len(saves) >= want {
			return saves
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("等待%d次persist超时, 实际只有%d次", want, len(store.savedValues()))
	return nil
}

func TestMain(m *testing.M) {
	logger.InitLogger()
	code := m.Run()
	os.Remove("lumen_stream.log")
	os.Exit(code)
}

// 性质：快速tick 0,1,2,...,6，阈值5秒，只有跨过5秒差值的那个tick触发一次立即persist，
// 而不是六次
func TestTracker_RapidTicksOnlyOneImmediatePersist(t *testing.T) {
	store := &fakeStore{}
	// 防抖设成1小时，保证测试期间防抖绝不会自己触发
	tracker := NewTracker(store, 1, 5.0, time.Hour)

	for pos := 0.0; pos <= 6.0; pos++ {
		tracker.Tick(pos)
	}

	saves := waitForSaves(t, store, 1)
	if len(saves) != 1 {
		t.Fatalf("期望恰好1次persist, 实际%d次: %v", len(saves), saves)
	}
	// |5-0|=5没有超过阈值，|6-0|=6才超过
	if saves[0] != 6.0 {
		t.Errorf("persist的位置应是6.0, 实际%v", saves[0])
	}
}

// 小变化不立即persist，安静一个防抖周期之后落一次，值是最后那个tick的位置
func TestTracker_DebounceFiresWithLatestPosition(t *testing.T) {
	store := &fakeStore{}
	tracker := NewTracker(store, 1, 5.0, 30*time.Millisecond)

	tracker.Tick(1.0)
	tracker.Tick(2.0) // 重置防抖，应该取代上一个计时器

	saves := waitForSaves(t, store, 1)
	if len(saves) != 1 {
		t.Fatalf("期望恰好1次persist, 实际%d次: %v", len(saves), saves)
	}
	if saves[0] != 2.0 {
		t.Errorf("防抖应该落的是最后位置2.0, 实际%v", saves[0])
	}

	// 再等一会，确认没有第二个计时器偷偷活着
	time.Sleep(80 * time.Millisecond)
	if saves := store.savedValues(); len(saves) != 1 {
		t.Errorf("防抖之后不应再有persist, 实际%d次: %v", len(saves), saves)
	}
}

// 暂停：哪怕和上次persist只差一点点，也要立刻落，不等防抖
func TestTracker_PausePersistsImmediately(t *testing.T) {
	store := &fakeStore{}
	tracker := NewTracker(store, 1, 5.0, time.Hour)

	tracker.Tick(2.0) // 挂上一个永远不会触发的防抖
	tracker.Pause(3.0)

	saves := waitForSaves(t, store, 1)
	if saves[0] != 3.0 {
		t.Errorf("暂停应persist当前位置3.0, 实际%v", saves[0])
	}
	// 被暂停取消的防抖不能再触发
	time.Sleep(50 * time.Millisecond)
	if saves := store.savedValues(); len(saves) != 1 {
		t.Errorf("暂停后不应有额外persist, 实际%v", saves)
	}
}

// 卸载冲刷：还挂着没触发的防抖时Close，最终恰好落一次最后位置，
// 而且那个防抖计时器之后绝不能再响
func TestTracker_CloseFlushesOnceAndKillsPendingTimer(t *testing.T) {
	store := &fakeStore{}
	tracker := NewTracker(store, 1, 5.0, 30*time.Millisecond)

	tracker.Tick(4.0) // 防抖挂起，还没到30ms
	tracker.Close()   // 同步冲刷

	saves := store.savedValues() // Close是同步的，不用等
	if len(saves) != 1 || saves[0] != 4.0 {
		t.Fatalf("Close应同步persist一次4.0, 实际%v", saves)
	}

	// 睡过原定的防抖触发点，确认计时器没有跟着再落一次
	time.Sleep(80 * time.Millisecond)
	if saves := store.savedValues(); len(saves) != 1 {
		t.Errorf("Close之后防抖计时器不应再触发, 实际%v", saves)
	}
}

// 位置为0时卸载不冲刷（没看出名堂的不值得记录）
func TestTracker_CloseAtZeroDoesNotPersist(t *testing.T) {
	store := &fakeStore{}
	tracker := NewTracker(store, 1, 5.0, time.Hour)

	tracker.Close()

	if saves := store.savedValues(); len(saves) != 0 {
		t.Errorf("位置为0时Close不应persist, 实际%v", saves)
	}
}

// Close之后整个状态机死透，tick/pause全部无效
func TestTracker_IgnoresEventsAfterClose(t *testing.T) {
	store := &fakeStore{}
	tracker := NewTracker(store, 1, 5.0, 10*time.Millisecond)

	tracker.Tick(3.0)
	tracker.Close()
	tracker.Tick(100.0)
	tracker.Pause(200.0)

	time.Sleep(50 * time.Millisecond)
	saves := store.savedValues()
	if len(saves) != 1 || saves[0] != 3.0 {
		t.Errorf("Close之后的事件都该被忽略, 实际%v", saves)
	}
}

// Resume只生效一次，且恢复点会成为第一个“已持久化”标记
func TestTracker_ResumeOnce(t *testing.T) {
	store := &fakeStore{fetchTime: 42.0, fetchFound: true}
	tracker := NewTracker(store, 1, 5.0, time.Hour)

	pos, ok := tracker.Resume(context.Background())
	if !ok || pos != 42.0 {
		t.Fatalf("Resume应返回(42, true), 实际(%v, %v)", pos, ok)
	}

	// 第二次Resume必须失效：外部的位置更新不允许二次触发seek
	pos, ok = tracker.Resume(context.Background())
	if ok || pos != 0 {
		t.Errorf("第二次Resume应返回(0, false), 实际(%v, %v)", pos, ok)
	}

	// 恢复后的第一个tick落在42附近，不该被当成大跳变
	tracker.Tick(43.0)
	time.Sleep(30 * time.Millisecond)
	if saves := store.savedValues(); len(saves) != 0 {
		t.Errorf("恢复点附近的tick不应立即persist, 实际%v", saves)
	}

	// 从42跳出阈值才触发
	tracker.Tick(48.0)
	saves := waitForSaves(t, store, 1)
	if saves[0] != 48.0 {
		t.Errorf("跳变persist应是48.0, 实际%v", saves[0])
	}
}

// 拉取进度失败不致命：从0开始播
func TestTracker_ResumeFetchErrorFallsBackToZero(t *testing.T) {
	store := &fakeStore{fetchErr: errors.New("网络抽风")}
	tracker := NewTracker(store, 1, 5.0, time.Hour)

	pos, ok := tracker.Resume(context.Background())
	if ok || pos != 0 {
		t.Errorf("拉取失败应返回(0, false), 实际(%v, %v)", pos, ok)
	}
}

// persist失败只记日志，状态机继续工作，下一次跳变照常上报
func TestTracker_PersistFailureDoesNotStopTracking(t *testing.T) {
	store := &fakeStore{saveErr: errors.New("服务端打盹")}
	tracker := NewTracker(store, 1, 5.0, time.Hour)

	tracker.Tick(10.0) // 大跳变，persist失败
	waitForSaves(t, store, 1)

	tracker.Tick(20.0) // 再来一次，还是会尝试
	saves := waitForSaves(t, store, 2)
	if len(saves) != 2 {
		t.Errorf("persist失败后应继续尝试, 实际%v", saves)
	}
}
