// Package opc reads and writes Open Packaging Convention containers: the
// ZIP archive holding the XML parts of a spreadsheet, its content-type
// table and its relationship parts.
package opc

import (
	"archive/zip"
	"bytes"
	"errors"
	"io"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"strings"

	"github.com/ukaji3/xlsxkit-go/pkg/xlsxkit/errs"
)

// entry is one part of the container: either an original archive member,
// staged bytes, or a staged generator.
type entry struct {
	name   string
	file   *zip.File
	data   []byte
	gen    func(io.Writer) error
	staged bool
}

// Container is an OPC package. Writes are staged in memory and reach the
// disk only through Finalize.
type Container struct {
	path    string
	zr      *zip.ReadCloser
	entries []*entry
	byName  map[string]*entry
	types   *ContentTypes
}

// New returns an empty container with the default content-type table.
func New() *Container {
	return &Container{
		byName: make(map[string]*entry),
		types:  NewContentTypes(),
	}
}

// Open opens the package at path and validates that the content-type
// table and the package relationships are present.
func Open(path string) (*Container, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errs.IOError(err)
	}
	probeErr := probeCompoundFile(f)
	f.Close()
	if probeErr != nil {
		return nil, probeErr
	}

	zr, err := zip.OpenReader(path)
	if err != nil {
		var pe *fs.PathError
		if errors.As(err, &pe) {
			return nil, errs.IOError(err)
		}
		return nil, errs.New(errs.Format, errs.ErrCorruptArchive, "%v", err)
	}

	c := &Container{path: path, zr: zr, byName: make(map[string]*entry)}
	var typesFile *zip.File
	for _, zf := range zr.File {
		if strings.HasSuffix(zf.Name, "/") {
			continue
		}
		if strings.EqualFold(zf.Name, ContentTypesPart) {
			typesFile = zf
			continue
		}
		key := strings.ToLower(zf.Name)
		if _, dup := c.byName[key]; dup {
			zr.Close()
			return nil, errs.New(errs.Format, errs.ErrCorruptArchive, "duplicate part %q", zf.Name)
		}
		e := &entry{name: zf.Name, file: zf}
		c.entries = append(c.entries, e)
		c.byName[key] = e
	}

	if typesFile == nil {
		zr.Close()
		return nil, errs.New(errs.Format, errs.ErrMissingPart, "").WithPart(ContentTypesPart)
	}
	rc, err := typesFile.Open()
	if err != nil {
		zr.Close()
		return nil, errs.New(errs.Format, errs.ErrCorruptArchive, "%v", err).WithPart(ContentTypesPart)
	}
	c.types, err = ParseContentTypes(rc)
	rc.Close()
	if err != nil {
		zr.Close()
		return nil, errs.Decode(err, ContentTypesPart)
	}

	if !c.HasPart(RelsPartName("")) {
		zr.Close()
		return nil, errs.New(errs.Format, errs.ErrMissingPart, "").WithPart(RelsPartName(""))
	}
	return c, nil
}

// Path returns the file the container was opened from or last finalized
// to, or "" for a new container.
func (c *Container) Path() string {
	return c.path
}

// Close releases the underlying archive.
func (c *Container) Close() error {
	if c.zr == nil {
		return nil
	}
	err := c.zr.Close()
	c.zr = nil
	return err
}

// ContentTypes returns the content-type table of the package.
func (c *Container) ContentTypes() *ContentTypes {
	return c.types
}

// ContentType returns the content type declared for a part.
func (c *Container) ContentType(name string) string {
	return c.types.Lookup(name)
}

func (c *Container) lookup(name string) *entry {
	return c.byName[strings.ToLower(strings.TrimPrefix(name, "/"))]
}

// HasPart reports whether the package contains the part.
func (c *Container) HasPart(name string) bool {
	return c.lookup(name) != nil
}

// Parts yields part names in archive order. The sequence reflects the
// container at the time each iteration starts and may be iterated again.
func (c *Container) Parts() iter.Seq[string] {
	return func(yield func(string) bool) {
		snapshot := append([]*entry(nil), c.entries...)
		for _, e := range snapshot {
			if !yield(e.name) {
				return
			}
		}
	}
}

// OpenPart streams the content of a part.
func (c *Container) OpenPart(name string) (io.ReadCloser, error) {
	e := c.lookup(name)
	if e == nil {
		return nil, errs.New(errs.Format, errs.ErrMissingPart, "").WithPart(strings.TrimPrefix(name, "/"))
	}
	switch {
	case e.gen != nil:
		var buf bytes.Buffer
		if err := e.gen(&buf); err != nil {
			return nil, err
		}
		return io.NopCloser(&buf), nil
	case e.staged:
		return io.NopCloser(bytes.NewReader(e.data)), nil
	}
	rc, err := e.file.Open()
	if err != nil {
		return nil, errs.New(errs.Format, errs.ErrCorruptArchive, "%v", err).WithPart(e.name)
	}
	return rc, nil
}

// ReadPart returns the full content of a part.
func (c *Container) ReadPart(name string) ([]byte, error) {
	rc, err := c.OpenPart(name)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, errs.New(errs.Format, errs.ErrCorruptArchive, "%v", err).WithPart(strings.TrimPrefix(name, "/"))
	}
	return data, nil
}

func (c *Container) stage(name, contentType string) *entry {
	name = strings.TrimPrefix(name, "/")
	e := c.lookup(name)
	if e == nil {
		e = &entry{name: name}
		c.entries = append(c.entries, e)
		c.byName[strings.ToLower(name)] = e
	}
	e.staged = true
	e.data = nil
	e.gen = nil
	if contentType != "" {
		c.types.SetOverride(e.name, contentType)
	}
	return e
}

// WritePart stages the content of a part for the next Finalize. An empty
// contentType keeps whatever the table already declares.
func (c *Container) WritePart(name string, data []byte, contentType string) {
	e := c.stage(name, contentType)
	e.data = append([]byte(nil), data...)
}

// StreamPart stages a generator that writes the part content during
// Finalize, so the part is never held in memory as a whole.
func (c *Container) StreamPart(name, contentType string, gen func(io.Writer) error) {
	e := c.stage(name, contentType)
	e.gen = gen
}

// CopyPart adds the part name of src to c as it is: archive members are
// copied without recompression and the content-type override goes along.
func (c *Container) CopyPart(src *Container, name string) error {
	e := src.lookup(name)
	if e == nil {
		return errs.New(errs.Format, errs.ErrMissingPart, "").WithPart(strings.TrimPrefix(name, "/"))
	}
	d := c.stage(e.name, "")
	d.staged, d.file, d.data, d.gen = e.staged, e.file, e.data, e.gen
	if ct, ok := src.types.Override(e.name); ok {
		c.types.SetOverride(e.name, ct)
	}
	return nil
}

// DeletePart removes a part and its content-type override.
func (c *Container) DeletePart(name string) {
	e := c.lookup(name)
	if e == nil {
		return
	}
	delete(c.byName, strings.ToLower(e.name))
	for i, x := range c.entries {
		if x == e {
			c.entries = append(c.entries[:i], c.entries[i+1:]...)
			break
		}
	}
	c.types.RemoveOverride(e.name)
}

// Finalize writes the package to path. The archive is built completely in
// a temporary file next to path and then renamed over it, so an existing
// file is replaced only by a complete package. On success the container
// is re-opened from path.
func (c *Container) Finalize(path string) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return errs.IOError(err)
	}
	tmpName := tmp.Name()
	cleanup := func() {
		tmp.Close()
		os.Remove(tmpName)
	}

	if err := c.writeArchive(tmp); err != nil {
		cleanup()
		return err
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return errs.IOError(err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errs.IOError(err)
	}
	if err := replaceFile(tmpName, path); err != nil {
		os.Remove(tmpName)
		return errs.IOError(err)
	}
	return c.reopen(path)
}

func (c *Container) writeArchive(w io.Writer) error {
	zw := zip.NewWriter(w)
	ctw, err := zw.CreateHeader(&zip.FileHeader{Name: ContentTypesPart, Method: zip.Deflate})
	if err != nil {
		return errs.IOError(err)
	}
	if _, err := c.types.WriteTo(ctw); err != nil {
		return errs.IOError(err)
	}

	for _, e := range c.entries {
		if !e.staged {
			if err := zw.Copy(e.file); err != nil {
				return errs.New(errs.Format, errs.ErrCorruptArchive, "%v", err).WithPart(e.name)
			}
			continue
		}
		pw, err := zw.CreateHeader(&zip.FileHeader{Name: e.name, Method: zip.Deflate})
		if err != nil {
			return errs.IOError(err)
		}
		if e.gen != nil {
			if err := e.gen(pw); err != nil {
				return errs.InPart(err, e.name)
			}
			continue
		}
		if _, err := pw.Write(e.data); err != nil {
			return errs.IOError(err)
		}
	}
	if err := zw.Close(); err != nil {
		return errs.IOError(err)
	}
	return nil
}

// reopen points the container at a freshly written archive, dropping all
// staged state.
func (c *Container) reopen(path string) error {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return errs.IOError(err)
	}
	if c.zr != nil {
		c.zr.Close()
	}
	c.zr = zr
	c.path = path
	c.entries = c.entries[:0]
	c.byName = make(map[string]*entry)
	for _, zf := range zr.File {
		if strings.EqualFold(zf.Name, ContentTypesPart) {
			continue
		}
		e := &entry{name: zf.Name, file: zf}
		c.entries = append(c.entries, e)
		c.byName[strings.ToLower(zf.Name)] = e
	}
	return nil
}

// replaceFile renames src over dst. Where rename cannot replace an
// existing file (Windows), dst is removed first.
func replaceFile(src, dst string) error {
	err := os.Rename(src, dst)
	if err == nil {
		return nil
	}
	if _, statErr := os.Stat(dst); statErr != nil {
		return err
	}
	if rmErr := os.Remove(dst); rmErr != nil {
		return err
	}
	return os.Rename(src, dst)
}
