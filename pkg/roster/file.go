package roster

import (
	"context"
	"os"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/mpapenbr/pitwall-go/log"
	"github.com/mpapenbr/pitwall-go/pkg/model"
)

// FileSource reads the roster from a YAML file.
// With Watch the file is reloaded on change; an invalid file keeps the last good roster.
type FileSource struct {
	path    string
	log     *log.Logger
	mu      sync.RWMutex
	drivers []model.Driver
	onLoad  func() // called after each reload attempt
}

func NewFileSource(ctx context.Context, path string) (*FileSource, error) {
	ret := &FileSource{
		path: path,
		log:  log.GetFromContext(ctx).Named("roster"),
	}
	if err := ret.load(); err != nil {
		return nil, err
	}
	return ret, nil
}

func (f *FileSource) Drivers(context.Context) ([]model.Driver, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return cloneDrivers(f.drivers), nil
}

func (f *FileSource) load() error {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return err
	}
	drivers, err := Parse(data)
	if err != nil {
		return err
	}
	f.mu.Lock()
	f.drivers = drivers
	f.mu.Unlock()
	f.log.Info("roster loaded", log.String("file", f.path), log.Int("drivers", len(drivers)))
	return nil
}

// Watch reloads the roster whenever the file is written until ctx is done.
// It blocks, so callers usually run it in a goroutine.
func (f *FileSource) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()
	if err := watcher.Add(f.path); err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			f.log.Debug("context done, stopping roster watch")
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			f.log.Debug("change detected", log.String("file", event.Name), log.Any("op", event.Op))
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				if err := f.load(); err != nil {
					f.log.Warn("could not reload roster, keeping previous",
						log.String("file", f.path), log.ErrorField(err))
				}
				if f.onLoad != nil {
					f.onLoad()
				}
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			f.log.Error("watcher error", log.ErrorField(err))
		}
	}
}
