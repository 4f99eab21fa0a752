package manifest

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/mod/semver"

	perrors "github.com/p-blackswan/devterm/internal/errors"
)

// Part selects the version component to increment.
type Part string

const (
	PartMajor Part = "major"
	PartMinor Part = "minor"
	PartPatch Part = "patch"
)

var (
	sectionRe = regexp.MustCompile(`^\s*\[([^\]]+)\]\s*$`)
	versionRe = regexp.MustCompile(`^(\s*version\s*=\s*")([^"]*)(".*)$`)
)

// BumpVersion increments one component of the version in the Cargo
// ([package]) or pyproject ([project]) manifest under dir and returns the
// new version. Only the version
// line is touched; the rest of the file is preserved byte for byte.
func BumpVersion(dir string, part Part) (string, error) {
	switch part {
	case PartMajor, PartMinor, PartPatch:
	default:
		return "", fmt.Errorf("%w: version part %q", perrors.ErrInvalidInput, part)
	}
	kind, path, err := Detect(dir)
	if err != nil {
		return "", err
	}
	var want string
	switch {
	case kind == KindCargo:
		want = "package"
	case kind == KindPython && filepath.Base(path) == kind.Filename():
		want = "project"
	default:
		return "", fmt.Errorf("%w: %s carries no version field", perrors.ErrUnsupported, filepath.Base(path))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read manifest: %w", err)
	}
	fi, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("stat manifest: %w", err)
	}

	lines := bytes.SplitAfter(data, []byte("\n"))
	section := ""
	for i, line := range lines {
		if m := sectionRe.FindSubmatch(line); m != nil {
			section = strings.TrimSpace(string(m[1]))
			continue
		}
		if section != want {
			continue
		}
		m := versionRe.FindSubmatch(bytes.TrimRight(line, "\r\n"))
		if m == nil {
			continue
		}
		next, err := bump(string(m[2]), part)
		if err != nil {
			return "", &perrors.ManifestParseError{Path: path, Err: err}
		}
		eol := line[len(bytes.TrimRight(line, "\r\n")):]
		lines[i] = append(append(append(append([]byte{}, m[1]...), next...), m[3]...), eol...)

		if err := writeFileAtomic(path, bytes.Join(lines, nil), fi.Mode().Perm()); err != nil {
			return "", fmt.Errorf("write manifest: %w", err)
		}
		return next, nil
	}
	return "", &perrors.ManifestParseError{Path: path, Err: fmt.Errorf("no version in [%s]", want)}
}

func bump(version string, part Part) (string, error) {
	if !semver.IsValid("v" + version) {
		return "", fmt.Errorf("version %q is not semantic", version)
	}
	core := strings.SplitN(strings.SplitN(version, "-", 2)[0], "+", 2)[0]
	fields := strings.Split(core, ".")
	for len(fields) < 3 {
		fields = append(fields, "0")
	}
	nums := make([]int, 3)
	for i := range nums {
		n, err := strconv.Atoi(fields[i])
		if err != nil {
			return "", fmt.Errorf("version %q: %w", version, err)
		}
		nums[i] = n
	}

	switch part {
	case PartMajor:
		nums = []int{nums[0] + 1, 0, 0}
	case PartMinor:
		nums = []int{nums[0], nums[1] + 1, 0}
	case PartPatch:
		nums[2]++
	default:
		return "", fmt.Errorf("%w: version part %q", perrors.ErrInvalidInput, part)
	}
	return fmt.Sprintf("%d.%d.%d", nums[0], nums[1], nums[2]), nil
}

func writeFileAtomic(path string, content []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp.*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(content); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
