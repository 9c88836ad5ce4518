package harvest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"schoology-export/internal/schoologyapi"
	"strings"
	"unicode"
	"unicode/utf8"
)

// OutputStore lays out the files written for each assignment, an assignment's file
// existing is what marks it as done.
type OutputStore struct {
	Dir    string
	Format Format
}

var unsafeFilenameChars = `/\:*?"<>|`

const (
	// most filesystems limit a single path component to 255 bytes
	maxNameBytes = 255
	// os.CreateTemp names the temporary file "." + name + "." + up to 10 digits + ".tmp"
	tempNameOverhead = len(".") + len(".") + 10 + len(".tmp")
	maxExtBytes      = len(".html")
	maxIdBytes       = 64
)

// SanitizeFilename replaces characters that are not allowed in file names on common
// filesystems, everything else (spaces, accents) is kept as is. Trailing dots and
// spaces are dropped since windows rejects them.
func SanitizeFilename(name string) string {
	out := strings.Map(func(r rune) rune {
		if unicode.IsControl(r) || strings.ContainsRune(unsafeFilenameChars, r) {
			return '_'
		}
		return r
	}, name)
	out = trimName(out)
	if out == "" {
		return "_"
	}
	return out
}

func trimName(name string) string {
	for {
		trimmed := strings.TrimRight(strings.TrimSpace(name), ".")
		if trimmed == name {
			return trimmed
		}
		name = trimmed
	}
}

// truncateBytes cuts s to at most n bytes without splitting a rune.
func truncateBytes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// assignmentName is "{title}{sep}{id}", the title is shortened so the name, its
// extension and the temporary name used while writing it all fit in one path
// component.
func assignmentName(a schoologyapi.Assignment, sep string) string {
	id := truncateBytes(SanitizeFilename(string(a.ID)), maxIdBytes)
	budget := maxNameBytes - tempNameOverhead - maxExtBytes - len(sep) - len(id)
	title := trimName(truncateBytes(SanitizeFilename(a.Title), budget))
	if title == "" {
		title = "_"
	}
	return title + sep + id
}

func (o OutputStore) ext() string {
	if o.Format == "" {
		return string(FormatPDF)
	}
	return string(o.Format)
}

// Path is "{title}-{id}.{ext}" under the output directory.
func (o OutputStore) Path(a schoologyapi.Assignment) string {
	return filepath.Join(o.Dir, fmt.Sprintf("%s.%s", assignmentName(a, "-"), o.ext()))
}

// QuestionPath is "{title} - {id}/question_set_{set}/question_{question}.pdf", both
// indices start at 1. The folder name matches what earlier exports of the question
// banks produced, so their files are picked up as done.
func (o OutputStore) QuestionPath(a schoologyapi.Assignment, set, question int) string {
	return filepath.Join(
		o.Dir,
		assignmentName(a, " - "),
		fmt.Sprintf("question_set_%d", set),
		fmt.Sprintf("question_%d.pdf", question),
	)
}

func (o OutputStore) Init() error {
	return os.MkdirAll(o.Dir, 0755)
}

func exists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, err
}

func (o OutputStore) Exists(a schoologyapi.Assignment) (bool, error) {
	return exists(o.Path(a))
}

func (o OutputStore) Write(a schoologyapi.Assignment, data []byte) error {
	return writeAtomic(o.Path(a), data)
}

// writeAtomic writes to a temporary file in the same directory and renames it into
// place, so path only ever exists with its full contents.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	err := os.MkdirAll(dir, 0755)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	err = tmp.Chmod(0644)
	if err == nil {
		_, err = tmp.Write(data)
	}
	if err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	err = tmp.Close()
	if err != nil {
		os.Remove(tmpName)
		return err
	}
	err = os.Rename(tmpName, path)
	if err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
