package broker

import (
	"os"
	"strconv"
)

func ensureDir(dir string) error {
	return os.MkdirAll(dir, 0755)
}

func fmtInt(i int64) string {
	return strconv.FormatInt(i, 10)
}
