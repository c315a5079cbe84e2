package hub

import (
	"sort"
	"sync"
	"time"

	"whiteboard-relay/internal/domain"
	"whiteboard-relay/internal/dto"
)

// member 是一个连接在房间中的成员身份。
type member struct {
	client      *Client
	displayName string
	userID      string
	joinedAt    time.Time
}

// Room 持有一个白板会话的成员、在线用户和 stroke log。
// 所有状态都由 mu 保护，广播和镜像通知也在持锁期间入队，以保证房间内的全序。
type Room struct {
	id             string
	ownerName      string
	createdAt      time.Time
	createdVersion uint64
	broadcaster    *Broadcaster
	mirror         Mirror
	nextVersion    func() uint64

	mu              sync.Mutex
	members         map[string]*member // key: connection id
	activeUsers     []string
	strokes         []domain.Stroke
	pendingDeletion bool
	evictionGen     uint64
	closed          bool // 已被 Registry 移除
}

func newRoom(id, ownerName string, b *Broadcaster, mirror Mirror, nextVersion func() uint64) *Room {
	return &Room{
		id:             id,
		ownerName:      ownerName,
		createdAt:      time.Now().UTC(),
		createdVersion: nextVersion(),
		broadcaster:    b,
		mirror:         mirror,
		nextVersion:    nextVersion,
		members:        make(map[string]*member),
		activeUsers:    []string{},
		strokes:        []domain.Stroke{},
	}
}

func (r *Room) ID() string           { return r.id }
func (r *Room) OwnerName() string    { return r.ownerName }
func (r *Room) CreatedAt() time.Time { return r.createdAt }

// Info 返回房间元数据，Version 是创建时分配的版本号。
func (r *Room) Info() domain.RoomInfo {
	return domain.RoomInfo{ID: r.id, OwnerName: r.ownerName, CreatedAt: r.createdAt, Version: r.createdVersion}
}

// ownerConflictLocked 只检查其他连接，同一连接重新加入自己的房间不算冲突。
func (r *Room) ownerConflictLocked(c *Client, name string) error {
	if name != r.ownerName {
		return nil
	}
	for connID, m := range r.members {
		if connID != c.ID() && m.displayName == name {
			return ErrOwnerConflict
		}
	}
	return nil
}

// Join 把连接加入房间，先向加入者发送包含完整历史的 join-room-response，
// 再向全体成员（包括加入者）广播 user-connected。
func (r *Room) Join(c *Client, name, userID string) (domain.Snapshot, domain.Presence, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return domain.Snapshot{}, domain.Presence{}, ErrRoomNotFound
	}
	if err := r.ownerConflictLocked(c, name); err != nil {
		return domain.Snapshot{}, domain.Presence{}, err
	}

	r.members[c.ID()] = &member{client: c, displayName: name, userID: userID, joinedAt: time.Now().UTC()}
	r.recomputeActiveUsersLocked()
	r.pendingDeletion = false
	r.evictionGen++
	c.setRoom(r.id, name, userID)

	snap := r.snapshotLocked()
	presence := r.presenceLocked()

	r.broadcaster.SendTo(c, dto.RoomSnapshotResponse{Type: dto.TypeJoinRoomResponse, Success: true, Room: &snap})
	r.broadcaster.BroadcastAll(r, dto.PresenceEvent{
		Type:        dto.TypeUserConnected,
		UserName:    name,
		UserCount:   presence.MemberCount,
		ActiveUsers: presence.ActiveUsers,
	})
	r.mirror.PresenceChanged(presence)
	return snap, presence, nil
}

// Leave 移除连接的成员身份。连接不在房间中时是空操作，left 为 false。
// 房间变空时只标记 pendingDeletion，由调用方通过 Registry 安排延迟回收。
func (r *Room) Leave(c *Client) (presence domain.Presence, left bool, empty bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.members[c.ID()]
	if !ok {
		return domain.Presence{}, false, false
	}
	delete(r.members, c.ID())
	r.recomputeActiveUsersLocked()
	c.clearRoomIf(r.id)
	presence = r.presenceLocked()
	r.mirror.PresenceChanged(presence)

	if len(r.members) == 0 {
		r.pendingDeletion = true
		return presence, true, true
	}
	r.broadcaster.BroadcastAll(r, dto.PresenceEvent{
		Type:        dto.TypeUserDisconnected,
		UserName:    m.displayName,
		UserCount:   presence.MemberCount,
		ActiveUsers: presence.ActiveUsers,
	})
	return presence, true, false
}

func (r *Room) appendStrokeLocked(s domain.Stroke) domain.Stroke {
	s.Seq = r.nextVersion()
	r.strokes = append(r.strokes, s)
	r.mirror.StrokeCommitted(r.id, s)
	return s
}

func (r *Room) clearLocked(clearedBy string) uint64 {
	r.strokes = []domain.Stroke{}
	v := r.nextVersion()
	r.broadcaster.BroadcastAll(r, dto.CanvasClearedEvent{Type: dto.TypeCanvasCleared, ClearedBy: clearedBy})
	r.mirror.StrokesCleared(r.id, v)
	return v
}

// withMember 在房间锁内确认 c 是成员后执行 fn。
func (r *Room) withMember(c *Client, fn func(m *member)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrRoomNotFound
	}
	m, ok := r.members[c.ID()]
	if !ok {
		return ErrNotMember
	}
	fn(m)
	return nil
}

// withLock 在房间锁内执行 fn，房间已被回收时返回 ErrRoomNotFound。
func (r *Room) withLock(fn func()) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrRoomNotFound
	}
	fn()
	return nil
}

func (r *Room) Snapshot() domain.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

func (r *Room) snapshotLocked() domain.Snapshot {
	return domain.Snapshot{
		ID:          r.id,
		OwnerName:   r.ownerName,
		ActiveUsers: append([]string{}, r.activeUsers...),
		MemberCount: len(r.members),
		Strokes:     append([]domain.Stroke{}, r.strokes...),
		CreatedAt:   r.createdAt,
	}
}

func (r *Room) Summary() domain.RoomSummary {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.summaryLocked()
}

func (r *Room) summaryLocked() domain.RoomSummary {
	return domain.RoomSummary{
		ID:          r.id,
		OwnerName:   r.ownerName,
		ActiveUsers: append([]string{}, r.activeUsers...),
		MemberCount: len(r.members),
		CreatedAt:   r.createdAt,
	}
}

// Presence 返回带新版本号的成员投影，用于周期性重新镜像。
func (r *Room) Presence() domain.Presence {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.presenceLocked()
}

func (r *Room) presenceLocked() domain.Presence {
	return domain.Presence{
		RoomID:      r.id,
		OwnerName:   r.ownerName,
		ActiveUsers: append([]string{}, r.activeUsers...),
		MemberCount: len(r.members),
		Version:     r.nextVersion(),
		At:          time.Now().UTC(),
	}
}

func (r *Room) StrokeCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.strokes)
}

// recomputeActiveUsersLocked 从 members 重新推导去重排序后的在线用户列表。
func (r *Room) recomputeActiveUsersLocked() {
	seen := make(map[string]struct{}, len(r.members))
	users := make([]string, 0, len(r.members))
	for _, m := range r.members {
		if _, ok := seen[m.displayName]; ok {
			continue
		}
		seen[m.displayName] = struct{}{}
		users = append(users, m.displayName)
	}
	sort.Strings(users)
	r.activeUsers = users
}

// armEviction 为空房间登记一次回收，返回本次登记的代号。
func (r *Room) armEviction() (uint64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed || len(r.members) > 0 {
		return 0, false
	}
	r.pendingDeletion = true
	r.evictionGen++
	return r.evictionGen, true
}
