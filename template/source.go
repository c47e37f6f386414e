// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package template

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"cloud.google.com/go/storage"
)

const gcsScheme = "gs://"

// Loader reads template libraries by name.
type Loader struct {
	// FS resolves local names. If nil, names are opened from the operating
	// system's file system.
	FS fs.FS
	// Storage resolves names of the form gs://bucket/object. Loading such a
	// name without a Storage client is an error.
	Storage *storage.Client
}

// Load reads each named library into lib, in order. It stops at the first
// error.
func (ld *Loader) Load(ctx context.Context, lib *Library, names ...string) error {
	for _, name := range names {
		if err := ld.loadOne(ctx, lib, name); err != nil {
			return err
		}
	}
	return nil
}

func (ld *Loader) loadOne(ctx context.Context, lib *Library, name string) error {
	rc, err := ld.open(ctx, name)
	if err != nil {
		return fmt.Errorf("template: opening library %q: %w", name, err)
	}
	defer rc.Close()
	return lib.Parse(name, rc)
}

func (ld *Loader) open(ctx context.Context, name string) (io.ReadCloser, error) {
	if strings.HasPrefix(name, gcsScheme) {
		bucket, object, err := parseGCSURI(name)
		if err != nil {
			return nil, err
		}
		if ld.Storage == nil {
			return nil, fmt.Errorf("no storage client configured for %s", name)
		}
		return ld.Storage.Bucket(bucket).Object(object).NewReader(ctx)
	}
	if ld.FS != nil {
		return ld.FS.Open(name)
	}
	return os.Open(name)
}

func parseGCSURI(uri string) (bucket, object string, err error) {
	rest := strings.TrimPrefix(uri, gcsScheme)
	bucket, object, ok := strings.Cut(rest, "/")
	if !ok || bucket == "" || object == "" {
		return "", "", fmt.Errorf("malformed storage URI %q, want gs://bucket/object", uri)
	}
	return bucket, object, nil
}

// LoadLibrary is a convenience that loads the named libraries into a new
// Library using a Loader with the given file system.
func LoadLibrary(ctx context.Context, fsys fs.FS, names ...string) (*Library, error) {
	lib := NewLibrary()
	ld := &Loader{FS: fsys}
	if err := ld.Load(ctx, lib, names...); err != nil {
		return nil, err
	}
	return lib, nil
}
