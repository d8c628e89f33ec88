// Package ingest discovers raster entries and loads them into the catalog.
package ingest

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7"
)

// Entry is one discovered raster. Group is the collection it belongs to;
// entries without a group are not catalogued.
type Entry struct {
	Locator string
	Group   string
}

// Source enumerates the entries of a data root.
type Source interface {
	Entries(ctx context.Context) ([]Entry, error)
}

// DirSource walks a directory tree. A file's group is its immediate
// parent directory, as a slash path relative to the root; files directly
// under the root have no group. Sidecar .json files are not entries
// themselves.
type DirSource struct {
	Root string
}

func (d DirSource) Entries(ctx context.Context) ([]Entry, error) {
	var out []Entry
	err := filepath.WalkDir(d.Root, func(p string, de fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if de.IsDir() || strings.HasSuffix(p, ".json") {
			return nil
		}
		rel, err := filepath.Rel(d.Root, p)
		if err != nil {
			return err
		}
		out = append(out, Entry{
			Locator: p,
			Group:   parentGroup(filepath.ToSlash(rel)),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", d.Root, err)
	}
	return out, nil
}

// ReadFile is the extract.ReadFunc for DirSource locators.
func ReadFile(_ context.Context, locator string) ([]byte, error) {
	return os.ReadFile(locator)
}

// BucketSource lists an object-storage bucket. An object's group is its
// immediate parent prefix; keys without a prefix have none.
type BucketSource struct {
	Client *minio.Client
	Bucket string
	Prefix string
}

func (b BucketSource) Entries(ctx context.Context) ([]Entry, error) {
	var out []Entry
	for obj := range b.Client.ListObjects(ctx, b.Bucket, minio.ListObjectsOptions{
		Prefix:    b.Prefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("list bucket %s: %w", b.Bucket, obj.Err)
		}
		if strings.HasSuffix(obj.Key, "/") || strings.HasSuffix(obj.Key, ".json") {
			continue
		}
		out = append(out, Entry{Locator: obj.Key, Group: parentGroup(obj.Key)})
	}
	return out, nil
}

// ReadObject returns an extract.ReadFunc fetching sidecars from the bucket.
func ReadObject(client *minio.Client, bucket string) func(ctx context.Context, locator string) ([]byte, error) {
	return func(ctx context.Context, locator string) ([]byte, error) {
		obj, err := client.GetObject(ctx, bucket, locator, minio.GetObjectOptions{})
		if err != nil {
			return nil, err
		}
		defer obj.Close()
		return io.ReadAll(obj)
	}
}

func parentGroup(p string) string {
	dir := path.Dir(p)
	if dir == "." || dir == "/" {
		return ""
	}
	return dir
}
