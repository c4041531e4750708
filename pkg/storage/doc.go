// Package storage materializes files atomically.
//
// A PendingFile writes into a hidden temporary sibling of its destination
// (".<name>.<random>.part"). Commit fsyncs and renames it into place; Abort
// removes it. Readers of the destination path therefore see either the
// previous file or the complete new one, never a partial download.
//
// Usage:
//
//	pf, err := storage.Create(dest)
//	if err != nil {
//		return err
//	}
//	if _, err := io.Copy(pf, body); err != nil {
//		pf.Abort()
//		return err
//	}
//	return pf.Commit()
package storage
