package snapshot

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/spf13/afero"
)

// maxEntryLen bounds a single encoded path so a corrupt length prefix cannot
// trigger a huge allocation.
const maxEntryLen = 1 << 20

// Write encodes s as two length-prefixed string lists, dirs then files.
//
// Each list is a uvarint count followed by that many strings, each a uvarint
// byte length and the raw bytes. There is no header.
func Write(w io.Writer, s Snapshot) error {
	bw := bufio.NewWriter(w)
	if err := writeList(bw, s.Dirs); err != nil {
		return err
	}
	if err := writeList(bw, s.Files); err != nil {
		return err
	}
	return bw.Flush()
}

func writeList(w *bufio.Writer, list []string) error {
	var buf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(buf[:], uint64(len(list)))
	if _, err := w.Write(buf[:n]); err != nil {
		return err
	}
	for _, s := range list {
		n = binary.PutUvarint(buf[:], uint64(len(s)))
		if _, err := w.Write(buf[:n]); err != nil {
			return err
		}
		if _, err := w.WriteString(s); err != nil {
			return err
		}
	}
	return nil
}

// Read decodes a snapshot written by Write.
func Read(r io.Reader) (Snapshot, error) {
	br := bufio.NewReader(r)
	dirs, err := readList(br)
	if err != nil {
		return Snapshot{}, fmt.Errorf("dirs: %w", err)
	}
	files, err := readList(br)
	if err != nil {
		return Snapshot{}, fmt.Errorf("files: %w", err)
	}
	if _, err := br.ReadByte(); err == nil {
		return Snapshot{}, fmt.Errorf("%w: trailing data", ErrMalformed)
	} else if err != io.EOF {
		return Snapshot{}, err
	}
	return Snapshot{Dirs: dirs, Files: files}, nil
}

func readList(r *bufio.Reader) ([]string, error) {
	count, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, malformed(err)
	}
	list := make([]string, 0, min(count, 1024))
	for i := uint64(0); i < count; i++ {
		n, err := binary.ReadUvarint(r)
		if err != nil {
			return nil, malformed(err)
		}
		if n > maxEntryLen {
			return nil, fmt.Errorf("%w: entry of %d bytes", ErrMalformed, n)
		}
		buf := make([]byte, n)
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, malformed(err)
		}
		list = append(list, string(buf))
	}
	return list, nil
}

// malformed marks a decoding failure as corrupt input.
func malformed(err error) error {
	return fmt.Errorf("%w: %w", ErrMalformed, err)
}

// Save writes s to file. A partially written file is removed on failure.
func Save(fsys afero.Fs, file string, s Snapshot) (err error) {
	f, err := fsys.Create(file)
	if err != nil {
		return fmt.Errorf("create snapshot %s: %w", file, err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("close snapshot %s: %w", file, cerr)
		}
		if err != nil {
			_ = fsys.Remove(file)
		}
	}()

	if err := Write(f, s); err != nil {
		return fmt.Errorf("write snapshot %s: %w", file, err)
	}
	return nil
}

// Load reads the snapshot stored in file.
func Load(fsys afero.Fs, file string) (Snapshot, error) {
	f, err := fsys.Open(file)
	if err != nil {
		return Snapshot{}, fmt.Errorf("open snapshot %s: %w", file, err)
	}
	defer f.Close()

	s, err := Read(f)
	if err != nil {
		return Snapshot{}, fmt.Errorf("read snapshot %s: %w", file, err)
	}
	return s, nil
}
