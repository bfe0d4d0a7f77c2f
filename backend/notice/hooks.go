package notice

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/afero"

	"github.com/b0bbywan/go-odio-powerd/cache"
	"github.com/b0bbywan/go-odio-powerd/config"
	"github.com/b0bbywan/go-odio-powerd/logger"
	"github.com/b0bbywan/go-odio-powerd/shutdown"
)

const (
	hooksCacheKey = "hooks"

	EnvMode   = "ODIO_POWER_MODE"
	EnvReason = "ODIO_POWER_REASON"
	EnvTopic  = "ODIO_POWER_TOPIC"
)

type runFunc func(ctx context.Context, path string, env []string) ([]byte, error)

// HookReceiver runs the executables of a drop-in directory in lexical order.
type HookReceiver struct {
	fs      afero.Fs
	dir     string
	timeout time.Duration
	cache   *cache.Cache[[]string]
	run     runFunc

	mu      sync.Mutex
	watcher *fsnotify.Watcher
}

// NewHookReceiver returns nil, nil when hooks are disabled.
func NewHookReceiver(cfg *config.HooksConfig) (*HookReceiver, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, nil
	}
	return newHookReceiver(afero.NewOsFs(), cfg.Dir, cfg.Timeout), nil
}

func newHookReceiver(afs afero.Fs, dir string, timeout time.Duration) *HookReceiver {
	return &HookReceiver{
		fs:      afs,
		dir:     dir,
		timeout: timeout,
		cache:   cache.New[[]string](0),
		run:     runHook,
	}
}

func (h *HookReceiver) Name() string { return "hooks" }

// Start watches the hook directory so the cached listing follows changes.
// A missing directory is not an error.
func (h *HookReceiver) Start() error {
	if ok, _ := afero.DirExists(h.fs, h.dir); !ok {
		logger.Info("[notice] hook directory %s does not exist, no hooks", h.dir)
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(h.dir); err != nil {
		if closeErr := watcher.Close(); closeErr != nil {
			logger.Info("[notice] failed to close watcher: %v", closeErr)
		}
		return err
	}

	h.mu.Lock()
	h.watcher = watcher
	h.mu.Unlock()

	logger.Info("[notice] watching hook directory %s", h.dir)
	go h.watch(watcher)
	return nil
}

func (h *HookReceiver) watch(watcher *fsnotify.Watcher) {
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			logger.Debug("[notice] hook directory changed: %s %s", event.Op, filepath.Base(event.Name))
			h.cache.Delete(hooksCacheKey)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logger.Warn("[notice] hook watcher error: %v", err)
			h.cache.Delete(hooksCacheKey)
		}
	}
}

func (h *HookReceiver) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.watcher != nil {
		if err := h.watcher.Close(); err != nil {
			logger.Warn("[notice] failed to close watcher: %v", err)
		}
		h.watcher = nil
	}
}

// Hooks returns the executable hook paths in run order.
func (h *HookReceiver) Hooks() ([]string, error) {
	return h.cache.GetOrLoad(hooksCacheKey, h.scan)
}

func (h *HookReceiver) scan() ([]string, error) {
	entries, err := afero.ReadDir(h.fs, h.dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	// afero.ReadDir sorts by name.
	var hooks []string
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, ".") || strings.HasSuffix(name, "~") {
			continue
		}
		if !e.Mode().IsRegular() || e.Mode().Perm()&0o111 == 0 {
			logger.Debug("[notice] skipping non executable %s", name)
			continue
		}
		hooks = append(hooks, filepath.Join(h.dir, name))
	}
	return hooks, nil
}

// Receive runs every hook, each bounded by the hook timeout. A failing hook
// does not stop the next one.
func (h *HookReceiver) Receive(ctx context.Context, n shutdown.Notice) error {
	hooks, err := h.Hooks()
	if err != nil {
		return err
	}

	env := append(os.Environ(),
		EnvMode+"="+n.Mode,
		EnvReason+"="+n.Reason,
		EnvTopic+"="+n.Topic,
	)

	var errs []error
	for _, hook := range hooks {
		hctx, cancel := context.WithTimeout(ctx, h.timeout)
		out, err := h.run(hctx, hook, env)
		cancel()
		if len(out) > 0 {
			logger.Debug("[notice] %s: %s", filepath.Base(hook), strings.TrimSpace(string(out)))
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", filepath.Base(hook), err))
			continue
		}
		logger.Info("[notice] hook %s done", filepath.Base(hook))
	}
	return errors.Join(errs...)
}

func runHook(ctx context.Context, path string, env []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, path)
	cmd.Env = env
	cmd.WaitDelay = time.Second
	return cmd.CombinedOutput()
}
