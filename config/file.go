/*
DESCRIPTION
  file.go provides loading of configuration variables from a YAML file, and
  watching of that file for changes.

AUTHORS
  stillcam contributors

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/ausocean/utils/logging"
)

// Load reads a YAML mapping of variable names to values from path, returning
// the values as strings suitable for Config.Update. Values must be scalars.
func Load(path string) (map[string]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read config file: %w", err)
	}
	return parse(b)
}

func parse(b []byte) (map[string]string, error) {
	var raw map[string]interface{}
	err := yaml.Unmarshal(b, &raw)
	if err != nil {
		return nil, fmt.Errorf("could not unmarshal config: %w", err)
	}

	vars := make(map[string]string, len(raw))
	for k, v := range raw {
		switch v.(type) {
		case map[string]interface{}, []interface{}:
			return nil, fmt.Errorf("config variable %s is not a scalar", k)
		case nil:
			vars[k] = ""
		default:
			vars[k] = fmt.Sprint(v)
		}
	}
	return vars, nil
}

// Watch watches the config file at path and sends the reloaded variables on
// the returned channel each time the file is written or replaced. The channel
// is closed when ctx is cancelled. Files that fail to load are logged and
// skipped.
func Watch(ctx context.Context, path string, l logging.Logger) (<-chan map[string]string, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("could not create watcher: %w", err)
	}

	// The directory is watched since editors commonly replace the file rather
	// than writing to it.
	path = filepath.Clean(path)
	err = w.Add(filepath.Dir(path))
	if err != nil {
		w.Close()
		return nil, fmt.Errorf("could not watch %s: %w", path, err)
	}

	ch := make(chan map[string]string)
	go func() {
		defer close(ch)
		defer w.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				l.Warning("config watcher error", "error", err)
			case e, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(e.Name) != path || !(e.Has(fsnotify.Write) || e.Has(fsnotify.Create)) {
					continue
				}
				vars, err := Load(path)
				if err != nil {
					l.Warning("could not reload config", "error", err)
					continue
				}
				l.Info("config file changed", "path", path)
				select {
				case ch <- vars:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return ch, nil
}
