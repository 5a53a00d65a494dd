package clock

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// DefaultTimeNamespaceOffsets is where Linux exposes the calling process's
// time namespace offsets.
const DefaultTimeNamespaceOffsets = "/proc/self/timens_offsets"

// TimeNamespaceOffsetsPath returns the timens_offsets file of process pid.
func TimeNamespaceOffsetsPath(pid int) string {
	return "/proc/" + strconv.Itoa(pid) + "/timens_offsets"
}

// TimeNamespaceDelta returns the monotonic offset that translates this
// process's readings into the view of the namespace described by target.
// Both files are read the same way, so a target in the caller's own
// namespace yields zero.
func TimeNamespaceDelta(target, self string) (int64, error) {
	want, err := ReadTimeNamespaceOffset(target)
	if err != nil {
		return 0, err
	}
	have, err := ReadTimeNamespaceOffset(self)
	if err != nil {
		return 0, err
	}
	return want - have, nil
}

// ReadTimeNamespaceOffset returns the monotonic offset, in nanoseconds, of
// the time namespace described by the timens_offsets file at path.
//
// The file contains lines of the form "monotonic <sec> <nsec>". A missing
// file means the kernel has no time namespace support, which is reported
// as a zero offset.
func ReadTimeNamespaceOffset(path string) (int64, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) != 3 {
			continue
		}
		if fields[0] != "monotonic" && fields[0] != "1" {
			continue
		}
		sec, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			return 0, fmt.Errorf("parse seconds %q: %w", fields[1], err)
		}
		nsec, err := strconv.ParseInt(fields[2], 10, 64)
		if err != nil {
			return 0, fmt.Errorf("parse nanoseconds %q: %w", fields[2], err)
		}
		return sec*1_000_000_000 + nsec, nil
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("read %s: %w", path, err)
	}
	return 0, nil
}
