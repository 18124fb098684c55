package commands

import (
	"fmt"
	"log"
	"os"
	"runtime"
	"runtime/pprof"
)

// maybeStartCPUProfile starts CPU profiling to path. Returns a stop function
// that must be deferred; a no-op when path is empty.
func maybeStartCPUProfile(path string) (func(), error) {
	if path == "" {
		return func() {}, nil
	}

	profileFile, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("could not create CPU profile: %w", err)
	}

	if err := pprof.StartCPUProfile(profileFile); err != nil {
		_ = profileFile.Close()

		return nil, fmt.Errorf("could not start CPU profile: %w", err)
	}

	return func() {
		pprof.StopCPUProfile()

		_ = profileFile.Close()
	}, nil
}

// maybeWriteHeapProfile writes a heap profile to path. No-op if path is empty.
func maybeWriteHeapProfile(path string) {
	if path == "" {
		return
	}

	profileFile, err := os.Create(path)
	if err != nil {
		log.Printf("could not create heap profile: %v", err)

		return
	}
	defer profileFile.Close()

	runtime.GC()

	if err := pprof.WriteHeapProfile(profileFile); err != nil {
		log.Printf("could not write heap profile: %v", err)
	}
}
