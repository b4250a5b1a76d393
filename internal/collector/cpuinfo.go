package collector

import (
	"bufio"
	"io"
	"strconv"
	"strings"
)

// ParseCPUInfo parses the /proc/cpuinfo dump of a machine into one
// attribute map per logical processor, keyed by the processor number.
// The maps enrich the processing unit nodes of the hardware landscape.
func ParseCPUInfo(r io.Reader) (map[int]map[string]string, error) {
	processors := map[int]map[string]string{}
	current := map[string]string{}

	flush := func() {
		if len(current) == 0 {
			return
		}
		if num, err := strconv.Atoi(current["processor"]); err == nil {
			processors[num] = current
		}
		current = map[string]string{}
	}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		key, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		current[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	flush()

	return processors, nil
}
