package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"pkt.systems/netbrowser/internal/version"
)

func main() {
	var outPath string
	flag.StringVar(&outPath, "o", "", "write the version to this file as well as stdout")
	flag.Parse()

	ver := strings.TrimSpace(version.Current())
	if ver == "" {
		ver = "v0.0.0-unknown"
	}

	if outPath != "" {
		if err := writeVersionFile(outPath, ver); err != nil {
			fmt.Fprintln(os.Stderr, err.Error())
			os.Exit(1)
		}
	}

	fmt.Fprintln(os.Stdout, ver)
}

// writeVersionFile rewrites path only when the stamped version changed so
// repeated generate runs leave the tree clean.
func writeVersionFile(path string, ver string) error {
	want := ver + "\n"
	data, err := os.ReadFile(path)
	if err == nil && string(data) == want {
		return nil
	}
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("read version file: %w", err)
	}
	if err := os.WriteFile(path, []byte(want), 0o644); err != nil {
		return fmt.Errorf("write version file: %w", err)
	}
	return nil
}
