package opc

import (
	"bytes"
	"io"
	"os"

	"github.com/richardlehane/mscfb"
	"github.com/ukaji3/xlsxkit-go/pkg/xlsxkit/errs"
)

// ole2Magic is the signature of an OLE2 compound document.
var ole2Magic = []byte{0xd0, 0xcf, 0x11, 0xe0, 0xa1, 0xb1, 0x1a, 0xe1}

// probeCompoundFile rejects files that are OLE2 compound documents rather
// than ZIP packages, naming what they contain. It returns nil for anything
// else and leaves ZIP validation to the caller.
func probeCompoundFile(f *os.File) error {
	head := make([]byte, len(ole2Magic))
	n, err := f.ReadAt(head, 0)
	if err != nil && err != io.EOF {
		return errs.IOError(err)
	}
	if n < len(ole2Magic) || !bytes.Equal(head, ole2Magic) {
		return nil
	}

	doc, err := mscfb.New(f)
	if err != nil {
		return errs.New(errs.Format, errs.ErrCorruptArchive, "unreadable compound document: %v", err)
	}
	for entry, err := doc.Next(); err == nil; entry, err = doc.Next() {
		switch entry.Name {
		case "EncryptedPackage", "EncryptionInfo":
			return errs.New(errs.Format, errs.ErrEncrypted, "password-protected workbooks are not supported")
		case "Workbook", "Book":
			return errs.New(errs.Format, errs.ErrLegacyFormat, "binary .xls workbooks are not supported")
		}
	}
	return errs.New(errs.Format, errs.ErrCorruptArchive, "compound document does not contain a workbook")
}
