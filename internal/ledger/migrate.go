package ledger

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
)

// migrate rewrites a category file whose header has drifted from the current
// schema. Existing rows are reparsed respecting quoting and remapped to the
// new column order by name: columns absent from the old schema come out
// empty, columns dropped from the new schema are discarded. The original
// file is kept as a .bak copy before the rewrite.
func (w *Writer) migrate(c Category, path string, oldHeader []string) error {
	rows, err := readRows(path)
	if err != nil {
		return err
	}

	if err := copyFile(path, path+".bak"); err != nil {
		return fmt.Errorf("failed to write backup: %w", err)
	}

	newHeader := Header(c)
	oldIndex := make(map[string]int, len(oldHeader))
	for i, name := range oldHeader {
		oldIndex[name] = i
	}

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(f)
	if err := cw.Write(newHeader); err != nil {
		f.Close()
		return err
	}

	remapped := make([]string, len(newHeader))
	for _, row := range rows {
		for i, name := range newHeader {
			remapped[i] = ""
			if j, ok := oldIndex[name]; ok && j < len(row) {
				remapped[i] = row[j]
			}
		}
		if err := cw.Write(remapped); err != nil {
			f.Close()
			return err
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	return os.Rename(tmp, path)
}

// readRows returns every data row of a ledger file, excluding the header.
func readRows(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	if _, err := r.Read(); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, err
	}

	var rows [][]string
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
