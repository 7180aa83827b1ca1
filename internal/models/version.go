package models

import (
	"strconv"
	"strings"
)

// CompareVersions сравнивает версии вида 1.2.3, нечисловые части считаются нулем
func CompareVersions(a, b string) int {
	left := strings.Split(strings.TrimPrefix(strings.TrimSpace(a), "v"), ".")
	right := strings.Split(strings.TrimPrefix(strings.TrimSpace(b), "v"), ".")
	n := len(left)
	if len(right) > n {
		n = len(right)
	}
	for i := 0; i < n; i++ {
		l := versionPart(left, i)
		r := versionPart(right, i)
		if l < r {
			return -1
		}
		if l > r {
			return 1
		}
	}
	return 0
}

func versionPart(parts []string, i int) int {
	if i >= len(parts) {
		return 0
	}
	v, err := strconv.Atoi(parts[i])
	if err != nil {
		return 0
	}
	return v
}
