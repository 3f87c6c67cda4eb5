// Command terra-shaderc compiles WGSL shaders to SPIR-V so the Vulkan
// backend can load them without compiling at startup.
//
//	terra-shaderc assets/shaders/sprite.wgsl   # writes sprite.spv next to it
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/gogpu/naga"

	"github.com/hubastard/terra/engine/assets"
)

func main() {
	out := flag.String("o", "", "output `file` (only with a single input)")
	flag.Usage = func() {
		fmt.Fprintln(flag.CommandLine.Output(), "usage: terra-shaderc [-o out.spv] shader.wgsl...")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() == 0 || (*out != "" && flag.NArg() > 1) {
		flag.Usage()
		os.Exit(2)
	}

	failed := false
	for _, src := range flag.Args() {
		dst := *out
		if dst == "" {
			dst = spvPath(src)
		}
		if err := compile(src, dst); err != nil {
			slog.Error("compile failed", "shader", src, "error", err)
			failed = true
			continue
		}
		slog.Info("compiled", "shader", src, "output", dst)
	}
	if failed {
		os.Exit(1)
	}
}

func spvPath(src string) string {
	return strings.TrimSuffix(src, filepath.Ext(src)) + ".spv"
}

func compile(src, dst string) error {
	wgsl, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	code, err := naga.Compile(string(wgsl))
	if err != nil {
		return err
	}
	if err := assets.CheckSPIRV(code); err != nil {
		return fmt.Errorf("compiler output: %w", err)
	}
	return os.WriteFile(dst, code, 0o644)
}
