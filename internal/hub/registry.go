package hub

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"whiteboard-relay/internal/metrics"

	"github.com/sirupsen/logrus"
)

// Registry 是进程内房间 ID 到 Room 的映射，负责创建、查找和空房间的延迟回收。
// 锁顺序固定为 Registry.mu -> Room.mu，持有房间锁时不得再获取 Registry 锁。
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*Room

	grace       time.Duration
	broadcaster *Broadcaster
	mirror      Mirror
	metrics     *metrics.Metrics
	version     atomic.Uint64
}

func NewRegistry(b *Broadcaster, m *metrics.Metrics, grace time.Duration) *Registry {
	if b == nil {
		panic("Broadcaster cannot be nil for Registry")
	}
	if m == nil {
		panic("Metrics cannot be nil for Registry")
	}
	g := &Registry{
		rooms:       make(map[string]*Room),
		grace:       grace,
		broadcaster: b,
		mirror:      NoopMirror{},
		metrics:     m,
	}
	// 以启动时间为起点，重启后的版本号仍大于上一个进程写入镜像的版本
	g.version.Store(uint64(time.Now().UnixMicro()))
	return g
}

// NextVersion 返回进程内单调递增的版本号，镜像写入据此丢弃过期数据。
func (g *Registry) NextVersion() uint64 {
	return g.version.Add(1)
}

// SetMirror 设置房间变更通知的接收方，必须在创建任何房间之前调用。
func (g *Registry) SetMirror(m Mirror) {
	if m == nil {
		m = NoopMirror{}
	}
	g.mirror = m
}

// Create 创建空房间，ID 已存在时返回 ErrRoomExists。
func (g *Registry) Create(id, ownerName string) (*Room, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.rooms[id]; ok {
		return nil, ErrRoomExists
	}
	return g.addLocked(id, ownerName), nil
}

// GetOrCreate 返回已有房间，不存在时以 ownerName 为房主创建。
func (g *Registry) GetOrCreate(id, ownerName string) (*Room, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if room, ok := g.rooms[id]; ok {
		return room, false
	}
	return g.addLocked(id, ownerName), true
}

// addLocked 在 Registry 锁内登记新房间并发出创建通知，房间在此之后才对其他连接可见。
func (g *Registry) addLocked(id, ownerName string) *Room {
	room := newRoom(id, ownerName, g.broadcaster, g.mirror, g.NextVersion)
	g.rooms[id] = room
	g.metrics.Rooms.Set(float64(len(g.rooms)))
	g.mirror.RoomCreated(room.Info())
	return room
}

func (g *Registry) Get(id string) (*Room, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	room, ok := g.rooms[id]
	return room, ok
}

// List 按创建时间返回当前全部房间。
func (g *Registry) List() []*Room {
	g.mu.RLock()
	rooms := make([]*Room, 0, len(g.rooms))
	for _, room := range g.rooms {
		rooms = append(rooms, room)
	}
	g.mu.RUnlock()
	sort.Slice(rooms, func(i, j int) bool {
		if rooms[i].createdAt.Equal(rooms[j].createdAt) {
			return rooms[i].id < rooms[j].id
		}
		return rooms[i].createdAt.Before(rooms[j].createdAt)
	})
	return rooms
}

func (g *Registry) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.rooms)
}

// ScheduleEviction 为空房间启动一次性的回收计时器。
// 不做显式取消：计时器触发时重新检查成员数和登记代号，期间有人加入则不回收。
func (g *Registry) ScheduleEviction(id string) bool {
	room, ok := g.Get(id)
	if !ok {
		return false
	}
	gen, ok := room.armEviction()
	if !ok {
		return false
	}
	logrus.WithFields(logrus.Fields{"room_id": id, "grace": g.grace.String()}).Debug("Room empty, eviction scheduled")
	time.AfterFunc(g.grace, func() { g.evict(id, room, gen) })
	return true
}

func (g *Registry) evict(id string, room *Room, gen uint64) {
	g.mu.Lock()
	if current, ok := g.rooms[id]; !ok || current != room {
		g.mu.Unlock()
		return
	}
	room.mu.Lock()
	if room.closed || len(room.members) > 0 || !room.pendingDeletion || room.evictionGen != gen {
		room.mu.Unlock()
		g.mu.Unlock()
		return
	}
	room.closed = true
	room.pendingDeletion = false
	room.strokes = nil
	delete(g.rooms, id)
	remaining := len(g.rooms)
	// 同 ID 的新房间只能在释放 Registry 锁之后创建，回收通知不会排在它的创建通知之后
	g.mirror.RoomEvicted(id, g.NextVersion())
	room.mu.Unlock()
	g.mu.Unlock()

	g.metrics.Rooms.Set(float64(remaining))
	g.metrics.Evictions.Inc()
	logrus.WithField("room_id", id).Info("Empty room evicted after grace period")
}
