// Package ioutils provides file system utilities.
//
// # Directory Checks
//
//	abs, err := ioutils.CheckDir("/home/me/Downloads")
//	if errors.Is(err, ioutils.ErrNotDir) {
//	    // path exists but is a file
//	}
//
// # Filename Sanitization
//
// Server-provided archive names are reduced to word characters, '.', '_',
// '(', ')', space and '-', then joined under the download directory:
//
//	name := ioutils.SanitizeFileName(`1 Song: "Live".osz`) // "1 Song Live.osz"
//	path, err := ioutils.SafeJoin(downloadDir, name)
//
// # Moving Downloads
//
//	err := ioutils.MoveFile(tempPath, path)
//
// # Auto-launch
//
// Open hands a finished archive to the OS default handler:
//
//	err := ioutils.Open(path)
package ioutils
