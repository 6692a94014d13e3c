// Package zookeeper watches the domain-throttle configuration node.
// The watcher delivers raw config blobs and disconnection notices to
// handler callbacks from its own goroutine; parsing and merging happen
// in the scheduler.
package zookeeper

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-zookeeper/zk"

	stperrors "github.com/muaviaUsmani/stampede/internal/errors"
	"github.com/muaviaUsmani/stampede/internal/logger"
)

const watchRetryInterval = 5 * time.Second

// ConfigHandler receives the raw config blob at startup and on every
// change. An empty blob is the wiped signal.
type ConfigHandler func(blob string)

// ErrorHandler receives a notice when the config source is lost
type ErrorHandler func(message string)

// Watcher subscribes to a ZooKeeper node and keeps a watch armed on it
type Watcher struct {
	conn     *zk.Conn
	path     string
	onConfig ConfigHandler
	onError  ErrorHandler
	log      logger.Logger

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewWatcher connects to ZooKeeper and returns a watcher for path.
// Failure to establish a session within connectTimeout is an error;
// callers are expected to treat it as fatal at startup.
func NewWatcher(hosts []string, path string, connectTimeout time.Duration, onConfig ConfigHandler, onError ErrorHandler, log logger.Logger) (*Watcher, error) {
	conn, events, err := zk.Connect(hosts, 10*time.Second, zk.WithLogInfo(false))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to zookeeper %v: %w", hosts, err)
	}

	deadline := time.NewTimer(connectTimeout)
	defer deadline.Stop()

	connected := false
	for !connected {
		select {
		case ev := <-events:
			if ev.State == zk.StateHasSession {
				connected = true
			}
		case <-deadline.C:
			conn.Close()
			return nil, fmt.Errorf("timed out establishing zookeeper session with %v", hosts)
		}
	}

	w := &Watcher{
		conn:     conn,
		path:     path,
		onConfig: onConfig,
		onError:  onError,
		log:      log,
		stop:     make(chan struct{}),
	}

	if err := w.ensurePath(); err != nil {
		conn.Close()
		return nil, err
	}

	// session events keep flowing after connect; surface losses
	w.wg.Add(1)
	go w.sessionLoop(events)

	return w, nil
}

// Start arms the watch and begins delivering config blobs. The first
// delivery happens immediately with the node's current contents.
func (w *Watcher) Start() {
	w.wg.Add(1)
	go w.watchLoop()
}

// Close stops the watch loops and closes the connection
func (w *Watcher) Close() {
	w.stopOnce.Do(func() {
		close(w.stop)
	})
	w.conn.Close()
	w.wg.Wait()
}

// ensurePath creates the watched node and its parents if missing
func (w *Watcher) ensurePath() error {
	segments := strings.Split(strings.Trim(w.path, "/"), "/")
	node := ""
	for _, seg := range segments {
		node += "/" + seg
		_, err := w.conn.Create(node, nil, 0, zk.WorldACL(zk.PermAll))
		if err != nil && err != zk.ErrNodeExists {
			return fmt.Errorf("failed to ensure zookeeper path %s: %w", node, err)
		}
	}
	return nil
}

func (w *Watcher) watchLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.stop:
			return
		default:
		}

		data, _, events, err := w.conn.GetW(w.path)
		if err != nil {
			w.deliverError(fmt.Sprintf("failed to read config node %s: %v", w.path, err))
			select {
			case <-w.stop:
				return
			case <-time.After(watchRetryInterval):
				continue
			}
		}

		w.deliverConfig(string(data))

		select {
		case ev := <-events:
			if ev.Err != nil && ev.Err != zk.ErrSessionExpired {
				w.log.Warn("Config watch fired with error", "error", ev.Err)
			}
			// loop re-arms the watch and re-reads the node
		case <-w.stop:
			return
		}
	}
}

func (w *Watcher) sessionLoop(events <-chan zk.Event) {
	defer w.wg.Done()

	for {
		select {
		case <-w.stop:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev.Type != zk.EventSession {
				continue
			}
			switch ev.State {
			case zk.StateDisconnected, zk.StateExpired:
				w.deliverError(fmt.Sprintf("zookeeper session lost: %s", ev.State))
			case zk.StateHasSession:
				w.log.Info("Zookeeper session re-established")
			}
		}
	}
}

func (w *Watcher) deliverConfig(blob string) {
	if err := stperrors.Guard(func() { w.onConfig(blob) }); err != nil {
		w.log.Error("Config handler panicked", "error", err)
	}
}

func (w *Watcher) deliverError(message string) {
	if err := stperrors.Guard(func() { w.onError(message) }); err != nil {
		w.log.Error("Error handler panicked", "error", err)
	}
}
