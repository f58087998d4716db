package provisioner

import (
	"errors"
	"fmt"
	"os"
)

// PairPresence is the all-or-nothing result of looking for a key pair on disk.
type PairPresence int

const (
	// PairAbsent means at least one half is missing. A half-present pair is
	// reported as absent and is regenerated, never repaired.
	PairAbsent PairPresence = iota
	// PairPresent means both files exist.
	PairPresent
)

func (p PairPresence) String() string {
	if p == PairPresent {
		return "present"
	}
	return "absent"
}

// CheckPair reports whether both key files exist. Missing files are not an
// error; any other stat failure is.
func CheckPair(privPath, pubPath string) (PairPresence, error) {
	privOK, err := exists(privPath)
	if err != nil {
		return PairAbsent, err
	}
	pubOK, err := exists(pubPath)
	if err != nil {
		return PairAbsent, err
	}
	if privOK && pubOK {
		return PairPresent, nil
	}
	return PairAbsent, nil
}

func exists(path string) (bool, error) {
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.IsDir() {
		return false, fmt.Errorf("%s is a directory", path)
	}
	return true, nil
}
