package schema

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/teranos/relset/errors"
	"github.com/teranos/relset/logger"
	"github.com/teranos/relset/sym"
)

// catalogFile is the on-disk YAML layout:
//
//	entity_types:
//	  pipe:
//	    material: text
//	    diameter: number
//	  structure:
//	    rim_elevation: number
type catalogFile struct {
	EntityTypes map[string]map[string]string `yaml:"entity_types"`
}

// ParseCatalog decodes a YAML field catalog and validates every value type.
func ParseCatalog(data []byte) (map[string]Fields, error) {
	var cf catalogFile
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, errors.Wrap(err, "failed to parse schema catalog")
	}
	if len(cf.EntityTypes) == 0 {
		return nil, errors.New("schema catalog declares no entity_types")
	}

	out := make(map[string]Fields, len(cf.EntityTypes))
	for typ, fields := range cf.EntityTypes {
		f := make(Fields, len(fields))
		for name, raw := range fields {
			vt := ValueType(raw)
			if !vt.IsValid() {
				return nil, errors.Newf("entity type %q field %q: unknown value type %q", typ, name, raw)
			}
			f[name] = vt
		}
		out[typ] = f
	}
	return out, nil
}

// FileRegistry is a Static registry loaded from a YAML catalog file that can
// reload itself when the file changes.
type FileRegistry struct {
	*Static

	path   string
	logger *zap.SugaredLogger

	mu             sync.Mutex
	watcher        *fsnotify.Watcher
	debounceTimer  *time.Timer
	debouncePeriod time.Duration
	onReload       []func()
}

// LoadFile reads the catalog at path.
func LoadFile(path string, log *zap.SugaredLogger) (*FileRegistry, error) {
	r := &FileRegistry{
		Static:         NewStatic(nil),
		path:           path,
		logger:         logger.OrNop(log),
		debouncePeriod: 250 * time.Millisecond,
	}
	if err := r.Reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// Path returns the catalog file path
func (r *FileRegistry) Path() string {
	return r.path
}

// Reload re-reads the catalog. On error the previous catalog stays in place.
func (r *FileRegistry) Reload() error {
	data, err := os.ReadFile(r.path)
	if err != nil {
		return errors.Wrapf(err, "failed to read schema catalog %s", r.path)
	}
	types, err := ParseCatalog(data)
	if err != nil {
		return errors.Wrapf(err, "schema catalog %s", r.path)
	}
	r.Replace(types)

	r.logger.Infow("Schema catalog loaded",
		logger.FieldSymbol, sym.Schema,
		"path", r.path,
		"entity_types", len(types))
	return nil
}

// OnReload registers fn to run after every successful reload triggered by Watch.
func (r *FileRegistry) OnReload(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onReload = append(r.onReload, fn)
}

// Watch starts reloading the catalog whenever the file is written.
// Rules created earlier are not re-validated.
func (r *FileRegistry) Watch() error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "failed to create fsnotify watcher")
	}
	// Watch the directory so editors that replace the file are seen too.
	if err := w.Add(filepath.Dir(r.path)); err != nil {
		w.Close()
		return errors.Wrapf(err, "failed to watch %s", r.path)
	}

	r.mu.Lock()
	r.watcher = w
	r.mu.Unlock()

	go r.watchLoop(w)
	return nil
}

// Stop ends watching. Safe to call without Watch.
func (r *FileRegistry) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.debounceTimer != nil {
		r.debounceTimer.Stop()
	}
	if r.watcher == nil {
		return nil
	}
	err := r.watcher.Close()
	r.watcher = nil
	return err
}

func (r *FileRegistry) watchLoop(w *fsnotify.Watcher) {
	target := filepath.Clean(r.path)
	for {
		select {
		case event, ok := <-w.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				r.scheduleReload()
			}
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			r.logger.Warnw("Schema watcher error", "error", err)
		}
	}
}

// scheduleReload debounces bursts of writes into one reload
func (r *FileRegistry) scheduleReload() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.debounceTimer != nil {
		r.debounceTimer.Stop()
	}
	r.debounceTimer = time.AfterFunc(r.debouncePeriod, func() {
		if err := r.Reload(); err != nil {
			r.logger.Errorw("Schema reload failed, keeping previous catalog", "error", err)
			return
		}
		r.mu.Lock()
		callbacks := make([]func(), len(r.onReload))
		copy(callbacks, r.onReload)
		r.mu.Unlock()
		for _, fn := range callbacks {
			fn()
		}
	})
}
