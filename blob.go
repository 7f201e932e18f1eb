package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
)

// fileBlob stores the document as an indented JSON file. Writes go to a
// temporary file first and are renamed over the old one.
type fileBlob struct {
	path string
}

func newFileBlob(dir, name string) (*fileBlob, error) {
	if _, err := os.Stat(dir); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		if err = os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
	}
	return &fileBlob{path: filepath.Join(dir, name+".json")}, nil
}

func (o *fileBlob) Load(context.Context) ([]byte, error) {
	v, err := os.ReadFile(o.path)
	if errors.Is(err, os.ErrNotExist) {
		slog.Info("create document", "path", o.path)
		return nil, nil
	}
	return v, err
}

func (o *fileBlob) Save(_ context.Context, v []byte) error {
	tmp := o.path + ".tmp"
	if err := os.WriteFile(tmp, v, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, o.path)
}

func (o *fileBlob) String() string { return "file:" + o.path }
