// internal/zookeeper/lock.go
package zookeeper

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/go-zookeeper/zk"
	"github.com/pkg/errors"

	"tomatomall/internal/pkg/logger"
)

const (
	lockRoot = "/tomato_mall/locks" // 所有分布式锁的根节点
)

// Conn 是锁实现用到的 zk 连接能力子集
type Conn interface {
	Exists(path string) (bool, *zk.Stat, error)
	ExistsW(path string) (bool, *zk.Stat, <-chan zk.Event, error)
	Create(path string, data []byte, flags int32, acl []zk.ACL) (string, error)
	CreateProtectedEphemeralSequential(path string, data []byte, acl []zk.ACL) (string, error)
	Children(path string) ([]string, *zk.Stat, error)
	Delete(path string, version int32) error
}

// Connect 连接 ZooKeeper 集群，并等待会话建立
func Connect(servers []string, sessionTimeout time.Duration) (*zk.Conn, error) {
	conn, events, err := zk.Connect(servers, sessionTimeout, zk.WithLogInfo(false))
	if err != nil {
		return nil, errors.Wrap(err, "connect zookeeper")
	}
	deadline := time.After(sessionTimeout)
	for {
		select {
		case ev := <-events:
			if ev.State == zk.StateHasSession {
				return conn, nil
			}
		case <-deadline:
			conn.Close()
			return nil, errors.New("timeout waiting for zookeeper session")
		}
	}
}

// Locker 基于临时顺序节点的公平互斥锁，实现 worker.Locker
type Locker struct {
	conn Conn
}

func NewLocker(conn Conn) *Locker {
	return &Locker{conn: conn}
}

// TryLock 在 ctx 结束前尝试获取名为 name 的锁
func (l *Locker) TryLock(ctx context.Context, name string) (func() error, error) {
	lockPath := lockRoot + "/" + name
	if err := l.ensurePath(lockPath); err != nil {
		return nil, err
	}

	// 1. 在锁路径下创建一个临时顺序节点
	nodePath, err := l.conn.CreateProtectedEphemeralSequential(lockPath+"/lock-", nil, zk.WorldACL(zk.PermAll))
	if err != nil {
		return nil, errors.Wrap(err, "create sequential node")
	}
	unlock := func() error {
		if err := l.conn.Delete(nodePath, -1); err != nil && err != zk.ErrNoNode {
			return errors.Wrap(err, "delete lock node")
		}
		return nil
	}

	if err := l.waitTurn(ctx, lockPath, nodePath); err != nil {
		if cleanupErr := unlock(); cleanupErr != nil {
			logger.Ctx(ctx).Warn().Err(cleanupErr).Str("node", nodePath).Msg("failed to clean up lock node")
		}
		return nil, err
	}
	return unlock, nil
}

func (l *Locker) waitTurn(ctx context.Context, lockPath, nodePath string) error {
	myNodeName := strings.TrimPrefix(nodePath, lockPath+"/")
	for {
		// 2. 获取锁路径下的所有子节点并按序号排序
		children, _, err := l.conn.Children(lockPath)
		if err != nil {
			return errors.Wrap(err, "list lock children")
		}
		sort.Slice(children, func(i, j int) bool { return sequenceOf(children[i]) < sequenceOf(children[j]) })

		// 3. 序号最小者持有锁
		idx := -1
		for i, child := range children {
			if child == myNodeName {
				idx = i
				break
			}
		}
		switch {
		case idx < 0:
			return errors.Errorf("lock node %s disappeared", nodePath)
		case idx == 0:
			return nil
		}

		// 4. 只监听前一个节点，避免羊群效应
		prevNodePath := lockPath + "/" + children[idx-1]
		exists, _, eventChan, err := l.conn.ExistsW(prevNodePath)
		if err != nil {
			return errors.Wrap(err, "watch previous node")
		}
		if !exists {
			continue
		}

		select {
		case <-eventChan:
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), "waiting for lock")
		}
	}
}

func (l *Locker) ensurePath(path string) error {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	current := ""
	for _, p := range parts {
		current += "/" + p
		exists, _, err := l.conn.Exists(current)
		if err != nil {
			return errors.Wrapf(err, "check %s", current)
		}
		if exists {
			continue
		}
		if _, err := l.conn.Create(current, nil, 0, zk.WorldACL(zk.PermAll)); err != nil && err != zk.ErrNodeExists {
			return errors.Wrapf(err, "create %s", current)
		}
	}
	return nil
}

// sequenceOf 取出顺序节点名末尾的 10 位序号；受保护节点带有 GUID 前缀，不能直接按名字排序
func sequenceOf(node string) string {
	if len(node) < 10 {
		return node
	}
	return node[len(node)-10:]
}
