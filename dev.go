package main

import (
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/howeyc/fsnotify"

	"github.com/nf/syn/console"
)

// watch resets r with the contents of imageFile each time it changes.
// The returned func stops watching.
func watch(imageFile string, r *console.Runner) (stop func(), err error) {
	imageFile = filepath.Clean(imageFile)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Watch(filepath.Dir(imageFile)); err != nil {
		watcher.Close()
		return nil, err
	}

	done := make(chan bool)
	go func() {
		var reload <-chan time.Time
		for {
			select {
			case <-reload:
				reload = nil
				rom, err := os.ReadFile(imageFile)
				if err != nil {
					log.Printf("dev: %v", err)
					break
				}
				log.Printf("dev: reload %s", filepath.Base(imageFile))
				r.Reset(rom)
			case ev := <-watcher.Event:
				if filepath.Clean(ev.Name) == imageFile && !ev.IsAttrib() && !ev.IsDelete() {
					reload = time.After(100 * time.Millisecond)
				}
			case err := <-watcher.Error:
				log.Printf("dev: watcher: %v", err)
			case <-done:
				return
			}
		}
	}()
	return func() {
		close(done)
		watcher.Close()
	}, nil
}
